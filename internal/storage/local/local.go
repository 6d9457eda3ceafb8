package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Emperor1p/nclexkeysinternational/internal/storage"
)

// Storage implements storage.Storage on the local filesystem. Keys map to
// paths under the root directory; the base URL is prepended for serving.
type Storage struct {
	root    string
	baseURL string
}

// New creates a filesystem storage rooted at the given directory.
func New(root, baseURL string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Storage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload writes the file under the key's path.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	path, err := s.safePath(input.Key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create content file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, input.Data); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write content file: %w", err)
	}

	return &storage.UploadResult{
		Key: input.Key,
		URL: s.baseURL + "/content/" + input.Key,
	}, nil
}

// Delete removes the file for the key.
func (s *Storage) Delete(_ context.Context, key string) error {
	path, err := s.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove content file: %w", err)
	}
	return nil
}

// GetURL returns the public URL for the key.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	path, err := s.safePath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat content file: %w", err)
	}
	return s.baseURL + "/content/" + key, nil
}

// safePath resolves a key inside the root, rejecting traversal.
func (s *Storage) safePath(key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	path := filepath.Join(s.root, cleaned)
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return path, nil
}
