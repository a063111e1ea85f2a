package almalead

import (
	"context"
	"io"
)

// Upload is a resume file as received from a prospect.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Storage keeps resume blobs. A key returned by Store is committed: the
// bytes are durable before Store returns.
type Storage interface {
	Store(ctx context.Context, upload Upload) (string, error)
	URL(key string) string
	Remove(ctx context.Context, key string) error
}
