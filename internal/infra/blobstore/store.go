// Package blobstore is the owned storage for generated assets. Results hosted
// by an inference provider are copied into content-addressed blobs so that
// they outlive the provider's retention window.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxBytes caps a single archived asset.
const DefaultMaxBytes int64 = 512 << 20

// Manifest records where an archived asset came from.
type Manifest struct {
	OwnerID    string    `json:"owner_id"`
	JobID      string    `json:"job_id"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	SourceURL  string    `json:"source_url"`
	MediaType  string    `json:"media_type,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Store implements domain.Archiver over a local directory
// (blobs/ and manifests/) published under publicURL.
type Store struct {
	dir       string
	publicURL string
	maxBytes  int64
	http      *http.Client
}

// New creates a Store rooted at dir. Archived references are returned as
// publicURL + "/blobs/<name>".
func New(dir, publicURL string, hc *http.Client) *Store {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Store{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  DefaultMaxBytes,
		http:      hc,
	}
}

// SetMaxBytes overrides the per-asset size cap.
func (s *Store) SetMaxBytes(n int64) {
	if n > 0 {
		s.maxBytes = n
	}
}

// Init ensures the directory structure exists.
func (s *Store) Init() error {
	for _, d := range []string{s.BlobDir(), filepath.Join(s.dir, "manifests")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// BlobDir is the directory served under /blobs.
func (s *Store) BlobDir() string { return filepath.Join(s.dir, "blobs") }

// BlobName maps a "sha256:<hex>" digest to its file name.
func BlobName(digest string) string {
	return strings.ReplaceAll(digest, ":", "-")
}

// ManifestPath returns where a job's manifest is written.
func (s *Store) ManifestPath(ownerID, jobID string) string {
	return filepath.Join(s.dir, "manifests", safeSegment(ownerID), safeSegment(jobID)+".json")
}

// Archive downloads remoteURL into a blob and returns its owned URL.
func (s *Store) Archive(ctx context.Context, ownerID, jobID, remoteURL string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", fmt.Errorf("archive: build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("archive: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("archive: download returned %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.BlobDir(), "partial-*")
	if err != nil {
		return "", fmt.Errorf("archive: temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(resp.Body, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("archive: copy: %w", err)
	}
	if n > s.maxBytes {
		return "", fmt.Errorf("archive: asset exceeds %d bytes", s.maxBytes)
	}
	if n == 0 {
		return "", fmt.Errorf("archive: empty asset")
	}

	digest := "sha256:" + hex.EncodeToString(h.Sum(nil))
	name := BlobName(digest)
	if err := os.Rename(tmp.Name(), filepath.Join(s.BlobDir(), name)); err != nil {
		return "", fmt.Errorf("archive: store blob: %w", err)
	}

	if err := s.writeManifest(Manifest{
		OwnerID:    ownerID,
		JobID:      jobID,
		Digest:     digest,
		Size:       n,
		SourceURL:  remoteURL,
		MediaType:  resp.Header.Get("Content-Type"),
		ArchivedAt: time.Now().UTC(),
	}); err != nil {
		return "", err
	}

	return s.publicURL + "/blobs/" + name, nil
}

// LoadManifest reads the manifest written for a job.
func (s *Store) LoadManifest(ownerID, jobID string) (*Manifest, error) {
	data, err := os.ReadFile(s.ManifestPath(ownerID, jobID))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func (s *Store) writeManifest(m Manifest) error {
	path := s.ManifestPath(m.OwnerID, m.JobID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive: manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}
	return nil
}

// safeSegment keeps ids from escaping the manifests directory.
func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
