// Package blob abstracts bytes-on-disk storage of document content.
// Metadata never lives here; documents reference blobs by opaque ref.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is the opaque BlobStore capability documents delegate to.
type Store interface {
	Put(ref string, r io.Reader) error
	Open(ref string) (io.ReadCloser, error)
	Delete(ref string) error
}

// FSStore keeps blobs as flat files under a data directory.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(ref string) (string, error) {
	// Refs are generated server-side, but never trust them as paths.
	if ref == "" || strings.Contains(ref, "/") || strings.Contains(ref, "..") {
		return "", fmt.Errorf("invalid blob ref %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

func (s *FSStore) Put(ref string, r io.Reader) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *FSStore) Open(ref string) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *FSStore) Delete(ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
