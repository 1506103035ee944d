package bundle

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	bundleVersion    = "1"
	manifestFilename = "manifest.yaml"
	recordFilename   = "submission.json"
	readmeFilename   = "README.txt"
	filesDirName     = "files"
)

// Export describes one submission export. Record is marshalled into
// submission.json; Files are streamed into the archive in order.
type Export struct {
	SubmissionID string
	Title        string
	ExportedBy   string
	ExportedAt   time.Time
	Record       any
	Readme       string
	Files        []File
}

// File is a single stored object to include in the bundle. Open is called
// when the file's turn comes so at most one source stream is live at a
// time. Size must match the number of bytes Open yields. SHA256, when set,
// is checked against the streamed content.
type File struct {
	Name   string
	Kind   string
	Size   int64
	SHA256 string
	Open   func(ctx context.Context) (io.ReadCloser, error)
}

// Write streams a signed tar.zst bundle for the export to w. The manifest
// is written last because its artifact digests are computed while the
// files stream through.
func Write(ctx context.Context, w io.Writer, signer *Signer, exp Export) (*Manifest, error) {
	if exp.SubmissionID == "" {
		return nil, errors.New("export submission id is required")
	}
	if signer == nil {
		return nil, errors.New("nil signer")
	}

	record, err := json.MarshalIndent(exp.Record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal submission record: %w", err)
	}

	createdAt := exp.ExportedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	manifest := &Manifest{
		Version:          bundleVersion,
		CreatedAt:        createdAt,
		SubmissionID:     exp.SubmissionID,
		Title:            exp.Title,
		ExportedBy:       exp.ExportedBy,
		Signer:           "vellum-portal",
		SigningPublicKey: signer.PublicKeyBase64(),
	}

	writeBytes := func(name string, body []byte) error {
		if err := tw.WriteHeader(&tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(body)),
			ModTime: createdAt,
		}); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
		if _, err := tw.Write(body); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		manifest.Artifacts = append(manifest.Artifacts, ManifestArtifact{
			Path:   name,
			Kind:   "metadata",
			Size:   int64(len(body)),
			SHA256: hexDigest(body),
		})
		return nil
	}

	if err := writeBytes(recordFilename, record); err != nil {
		return nil, err
	}
	if exp.Readme != "" {
		if err := writeBytes(readmeFilename, []byte(exp.Readme)); err != nil {
			return nil, err
		}
	}

	for _, file := range exp.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		art, err := writeFile(ctx, tw, createdAt, file)
		if err != nil {
			return nil, err
		}
		manifest.Artifacts = append(manifest.Artifacts, art)
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	signature, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifest.Signature = signature

	manifestBytes, err := manifestYAML(manifest)
	if err != nil {
		return nil, err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    manifestFilename,
		Mode:    0o644,
		Size:    int64(len(manifestBytes)),
		ModTime: createdAt,
	}); err != nil {
		return nil, fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(manifestBytes); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zstd writer: %w", err)
	}
	return manifest, nil
}

func writeFile(ctx context.Context, tw *tar.Writer, modTime time.Time, file File) (ManifestArtifact, error) {
	name, err := archivePath(file.Name)
	if err != nil {
		return ManifestArtifact{}, err
	}
	if file.Open == nil {
		return ManifestArtifact{}, fmt.Errorf("%s: no content source", name)
	}
	body, err := file.Open(ctx)
	if err != nil {
		return ManifestArtifact{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer body.Close()

	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    file.Size,
		ModTime: modTime,
	}); err != nil {
		return ManifestArtifact{}, fmt.Errorf("write %s header: %w", name, err)
	}
	hasher := sha256.New()
	n, err := io.Copy(tw, io.TeeReader(body, hasher))
	if err != nil {
		return ManifestArtifact{}, fmt.Errorf("stream %s: %w", name, err)
	}
	if n != file.Size {
		return ManifestArtifact{}, fmt.Errorf("%s: expected %d bytes, streamed %d", name, file.Size, n)
	}
	digest := hex.EncodeToString(hasher.Sum(nil))
	if file.SHA256 != "" && !strings.EqualFold(file.SHA256, digest) {
		return ManifestArtifact{}, fmt.Errorf("%s: stored digest %s does not match streamed content", name, file.SHA256)
	}
	kind := file.Kind
	if kind == "" {
		kind = "file"
	}
	return ManifestArtifact{Path: name, Kind: kind, Size: file.Size, SHA256: digest}, nil
}

// Verify reads a bundle, checks the manifest signature against verifier and
// every artifact digest against the streamed content, and returns the
// manifest. The archive is consumed without touching disk.
func Verify(r io.Reader, verifier *Signer) (*Manifest, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer zr.Close()

	var manifest *Manifest
	type entryInfo struct {
		size   int64
		sha256 string
	}
	entries := map[string]entryInfo{}

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, err := archivePath(hdr.Name)
		if err != nil {
			return nil, err
		}
		if name == manifestFilename {
			body, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read manifest: %w", err)
			}
			manifest, err = parseManifest(body)
			if err != nil {
				return nil, err
			}
			continue
		}
		hasher := sha256.New()
		n, err := io.Copy(hasher, tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		entries[name] = entryInfo{size: n, sha256: hex.EncodeToString(hasher.Sum(nil))}
	}

	if manifest == nil {
		return nil, errors.New("bundle is missing manifest.yaml")
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := verifier.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}

	for _, art := range manifest.Artifacts {
		entry, ok := entries[art.Path]
		if !ok {
			return nil, fmt.Errorf("bundle is missing artifact %s", art.Path)
		}
		if entry.size != art.Size {
			return nil, fmt.Errorf("%s: manifest records %d bytes, bundle has %d", art.Path, art.Size, entry.size)
		}
		if !strings.EqualFold(entry.sha256, art.SHA256) {
			return nil, fmt.Errorf("%s: digest mismatch", art.Path)
		}
		delete(entries, art.Path)
	}
	if len(entries) > 0 {
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("bundle contains entries missing from manifest: %s", strings.Join(names, ", "))
	}

	return manifest, nil
}

// archivePath places a file under files/ and rejects names that would
// escape the bundle root.
func archivePath(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("invalid bundle entry name %q", name)
	}
	if path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("bundle entry %q escapes bundle root", name)
	}
	if cleaned == manifestFilename || cleaned == recordFilename || cleaned == readmeFilename {
		return cleaned, nil
	}
	if strings.HasPrefix(cleaned, filesDirName+"/") {
		return cleaned, nil
	}
	return filesDirName + "/" + cleaned, nil
}

func hexDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
