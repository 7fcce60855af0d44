package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toxikmusic/traxx-current-sub001/pkg/optimize"
)

// copyBuffers backs every Save; object writes happen once per ingested
// segment.
var copyBuffers = optimize.NewBytePool(32 * 1024)

// FileStorage implements Storage on the local filesystem. It backs tests and
// deployments with no object store configured.
type FileStorage struct {
	basePath string
}

func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{basePath: basePath}, nil
}

func (s *FileStorage) path(name string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(name))
}

func (s *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create object file: %w", err)
	}
	defer file.Close()

	buf := copyBuffers.Get()
	defer copyBuffers.Put(buf)
	if _, err := io.CopyBuffer(file, data, buf); err != nil {
		return fmt.Errorf("failed to write object data: %w", err)
	}
	return nil
}

func (s *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open object file: %w", err)
	}
	return file, nil
}

func (s *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return names, nil
}

func (s *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(s.path(name))
}
