package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func staticFile(name, kind string, body []byte, withDigest bool) File {
	f := File{
		Name: name,
		Kind: kind,
		Size: int64(len(body)),
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}
	if withDigest {
		sum := sha256.Sum256(body)
		f.SHA256 = hex.EncodeToString(sum[:])
	}
	return f
}

func TestWriteVerifyRoundtrip(t *testing.T) {
	signer := newTestSigner(t, 0x42)
	exportedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	exp := Export{
		SubmissionID: "7b5a19c2-4c6f-4e34-9dce-6f32c8b0a1fd",
		Title:        "Adaptive Mesh Refinement in Practice",
		ExportedBy:   "editor@example.org",
		ExportedAt:   exportedAt,
		Record:       map[string]any{"id": "7b5a19c2-4c6f-4e34-9dce-6f32c8b0a1fd", "status": "submitted"},
		Readme:       "Archive produced for long-term storage.\n",
		Files: []File{
			staticFile("manuscript.docx", "manuscript", []byte("pretend docx bytes"), true),
			staticFile("figures/fig1.png", "supplement", []byte("pretend png bytes"), false),
		},
	}

	var buf bytes.Buffer
	manifest, err := Write(context.Background(), &buf, signer, exp)
	require.NoError(t, err)
	require.NotEmpty(t, manifest.Signature)
	require.Equal(t, signer.PublicKeyBase64(), manifest.SigningPublicKey)

	paths := make([]string, 0, len(manifest.Artifacts))
	for _, art := range manifest.Artifacts {
		paths = append(paths, art.Path)
	}
	require.Equal(t, []string{
		"submission.json",
		"README.txt",
		"files/manuscript.docx",
		"files/figures/fig1.png",
	}, paths)

	verifier, err := NewVerifier(signer.PublicKeyBase64())
	require.NoError(t, err)

	got, err := Verify(bytes.NewReader(buf.Bytes()), verifier)
	require.NoError(t, err)
	require.Equal(t, exp.SubmissionID, got.SubmissionID)
	require.Equal(t, exp.Title, got.Title)
	require.Equal(t, manifest.Signature, got.Signature)
	require.True(t, got.CreatedAt.Equal(exportedAt))
	require.Len(t, got.Artifacts, 4)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer := newTestSigner(t, 0x42)
	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, signer, Export{
		SubmissionID: "sub-1",
		Record:       map[string]any{"id": "sub-1"},
	})
	require.NoError(t, err)

	other := newTestSigner(t, 0x07)
	verifier, err := NewVerifier(other.PublicKeyBase64())
	require.NoError(t, err)

	_, err = Verify(bytes.NewReader(buf.Bytes()), verifier)
	require.ErrorContains(t, err, "unexpected key")
}

func TestVerifyRejectsCorruptedArchive(t *testing.T) {
	signer := newTestSigner(t, 0x42)
	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, signer, Export{
		SubmissionID: "sub-1",
		Record:       map[string]any{"id": "sub-1"},
		Files:        []File{staticFile("paper.pdf", "manuscript", bytes.Repeat([]byte("x"), 4096), true)},
	})
	require.NoError(t, err)

	raw := buf.Bytes()
	raw[len(raw)-10] ^= 0xFF

	verifier, err := NewVerifier(signer.PublicKeyBase64())
	require.NoError(t, err)
	_, err = Verify(bytes.NewReader(raw), verifier)
	require.Error(t, err)
}

func TestVerifyRejectsMissingManifest(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	body := []byte("stray file")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "files/a.txt", Mode: 0o644, Size: int64(len(body))}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())

	verifier, err := NewVerifier(newTestSigner(t, 0x42).PublicKeyBase64())
	require.NoError(t, err)
	_, err = Verify(&buf, verifier)
	require.ErrorContains(t, err, "missing manifest.yaml")
}

func TestWriteRejectsDigestMismatch(t *testing.T) {
	signer := newTestSigner(t, 0x42)
	file := staticFile("paper.pdf", "manuscript", []byte("real content"), false)
	file.SHA256 = hexDigest([]byte("different content"))

	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, signer, Export{
		SubmissionID: "sub-1",
		Record:       map[string]any{},
		Files:        []File{file},
	})
	require.ErrorContains(t, err, "does not match streamed content")
}

func TestWriteRejectsSizeMismatch(t *testing.T) {
	signer := newTestSigner(t, 0x42)
	file := staticFile("paper.pdf", "manuscript", []byte("real content"), false)
	file.Size = file.Size + 5

	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, signer, Export{
		SubmissionID: "sub-1",
		Record:       map[string]any{},
		Files:        []File{file},
	})
	require.Error(t, err)
}

func TestWriteRequiresSubmissionID(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, newTestSigner(t, 0x42), Export{})
	require.ErrorContains(t, err, "submission id is required")
}

func TestArchivePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare file", in: "manuscript.docx", want: "files/manuscript.docx"},
		{name: "already under files", in: "files/x.pdf", want: "files/x.pdf"},
		{name: "nested", in: "figures/fig1.png", want: "files/figures/fig1.png"},
		{name: "manifest stays at root", in: "manifest.yaml", want: "manifest.yaml"},
		{name: "record stays at root", in: "submission.json", want: "submission.json"},
		{name: "backslashes normalised", in: `a\b.txt`, want: "files/a/b.txt"},
		{name: "traversal rejected", in: "sub/../../etc/passwd", wantErr: true},
		{name: "absolute rejected", in: "/etc/passwd", wantErr: true},
		{name: "parent rejected", in: "..", wantErr: true},
		{name: "empty rejected", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := archivePath(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
