package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage stores uploaded files on the local filesystem. In production
// this would sit behind a CDN; the interface boundary is the same either way.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes the reader's contents under the given filename and returns the
// storage path.
func (s *LocalStorage) Save(filename string, reader io.Reader) (string, error) {
	storagePath := filepath.Join(s.basePath, filepath.Base(filename))
	f, err := os.Create(storagePath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return storagePath, nil
}

// Open returns a reader for a previously saved file.
func (s *LocalStorage) Open(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Exists reports whether a saved file is present.
func (s *LocalStorage) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.basePath, filepath.Base(filename)))
	return err == nil
}
