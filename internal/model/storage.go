package model

import (
	"context"
	"io"
)

// Storage is an object store for uploaded files.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// Avatar is a stored profile picture.
type Avatar struct {
	Key string `json:"avatar"`
	URL string `json:"url"`
}
