package storage

import (
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by providers when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// StorageProvider defines the behavior for any storage backend.
type StorageProvider interface {
	List(bucket, prefix string) ([]string, error)
	Get(bucket, key string) (*FileObject, error)
	Put(bucket, key string, body io.ReadSeeker, contentType, cacheControl string) error
	Delete(bucket, key string) error
	Exists(bucket, key string) (bool, error)
}

// FileObject is the provider-agnostic representation of a file.
type FileObject struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}
