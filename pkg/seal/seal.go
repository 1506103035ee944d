package seal

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

const envAgeSecretKey = "AGE_SECRET_KEY"

// Sealer encrypts short secrets with an age X25519 identity so they can be
// stored at rest and recovered later by the holder of the secret key.
type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewSealerFromEnv initialises a Sealer from the AGE_SECRET_KEY environment variable.
func NewSealerFromEnv() (*Sealer, error) {
	secret := strings.TrimSpace(os.Getenv(envAgeSecretKey))
	if secret == "" {
		return nil, fmt.Errorf("%s must be set", envAgeSecretKey)
	}
	return NewSealer(secret)
}

// NewSealer initialises a Sealer from an age secret key string.
func NewSealer(secretKey string) (*Sealer, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(secretKey))
	if err != nil {
		return nil, fmt.Errorf("parse age identity: %w", err)
	}
	return &Sealer{identity: identity, recipient: identity.Recipient()}, nil
}

// Seal encrypts the plaintext and returns the ciphertext in base64 form.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return "", errors.New("nil sealer")
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts a base64 ciphertext previously produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil {
		return "", errors.New("nil sealer")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read sealed value: %w", err)
	}
	return string(plaintext), nil
}

// Recipient returns the age recipient string for the configured identity.
func (s *Sealer) Recipient() string {
	if s == nil {
		return ""
	}
	return s.recipient.String()
}
