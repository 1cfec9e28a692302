package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// Store saves and loads uploaded media by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
