package storage

import (
	"context"
	"io"
)

// Storage is the object-store abstraction the recording store mirrors into.
// Keys are slash-separated, e.g. "stream-7/segment-0.ts".
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}
