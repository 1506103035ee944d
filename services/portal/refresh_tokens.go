package portal

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTokenNotFound is returned when no refresh token matches the presented value.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenExpired is returned when the matched refresh token is past its expiry.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenRevoked is returned when the matched refresh token was already revoked or rotated.
	ErrTokenRevoked = errors.New("refresh token revoked")
)

type refreshTokenStore struct {
	orm *gorm.DB
	ttl time.Duration
}

func newRefreshTokenStore(orm *gorm.DB, ttl time.Duration) (*refreshTokenStore, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if ttl <= 0 {
		ttl = defaultRefreshTokenTTL
	}
	return &refreshTokenStore{orm: orm, ttl: ttl}, nil
}

// Issue mints a fresh refresh token for the user and stores only its hash.
func (s *refreshTokenStore) Issue(ctx context.Context, userID uuid.UUID, clientIP, userAgent string) (string, time.Time, error) {
	raw, err := newRawToken()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().UTC().Add(s.ttl)
	model := refreshTokenModel{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: expiresAt,
		ClientIP:  clientIP,
		UserAgent: userAgent,
	}
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return "", time.Time{}, err
	}

	return raw, expiresAt, nil
}

// Rotate exchanges a live refresh token for a new one, revoking the old token.
// Presenting an already-rotated token revokes every live token for that user.
func (s *refreshTokenStore) Rotate(ctx context.Context, raw, clientIP, userAgent string) (uuid.UUID, string, time.Time, error) {
	var (
		userID    uuid.UUID
		newRaw    string
		expiresAt time.Time
		reused    bool
	)

	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current refreshTokenModel
		if err := tx.Where("token_hash = ?", hashToken(raw)).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		now := time.Now().UTC()
		if current.RevokedAt != nil {
			// A rotated token coming back means the raw value leaked
			// somewhere. Cut off every live session for the user, and
			// return nil so the revocation commits.
			reused = true
			return tx.Model(&refreshTokenModel{}).
				Where("user_id = ? AND revoked_at IS NULL", current.UserID).
				Update("revoked_at", now).Error
		}
		if now.After(current.ExpiresAt) {
			return ErrTokenExpired
		}

		rotated, err := newRawToken()
		if err != nil {
			return err
		}

		next := refreshTokenModel{
			ID:        uuid.New(),
			UserID:    current.UserID,
			TokenHash: hashToken(rotated),
			ExpiresAt: now.Add(s.ttl),
			ClientIP:  clientIP,
			UserAgent: userAgent,
		}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"revoked_at":       now,
			"replaced_by_hash": next.TokenHash,
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return err
		}

		userID = current.UserID
		newRaw = rotated
		expiresAt = next.ExpiresAt
		return nil
	})
	if err != nil {
		return uuid.Nil, "", time.Time{}, err
	}
	if reused {
		return uuid.Nil, "", time.Time{}, ErrTokenRevoked
	}

	return userID, newRaw, expiresAt, nil
}

// Revoke invalidates a single refresh token. Unknown tokens are not an error
// so logout stays idempotent.
func (s *refreshTokenStore) Revoke(ctx context.Context, raw string) error {
	res := s.orm.WithContext(ctx).Model(&refreshTokenModel{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(raw)).
		Update("revoked_at", time.Now().UTC())
	return res.Error
}

// RevokeAllForUser invalidates every live refresh token held by the user.
func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	res := s.orm.WithContext(ctx).Model(&refreshTokenModel{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now().UTC())
	return res.Error
}

func newRawToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
