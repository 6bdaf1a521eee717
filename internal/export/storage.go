package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage is where printed bills and workbooks are written
type Storage interface {
	// Save writes a file and returns its full path
	Save(filename string, data []byte) (string, error)
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates basePath if needed and returns a LocalStorage rooted there
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save writes data to filename. Absolute names are written as given.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := l.path(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

func (l *LocalStorage) path(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(l.basePath, filename)
}
