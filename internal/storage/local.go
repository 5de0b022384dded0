package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalProvider struct {
	// RootPath is the directory where buckets are simulated (e.g., "./data")
	RootPath string
}

func NewLocalProvider(root string) *LocalProvider {
	_ = os.MkdirAll(root, 0755)
	return &LocalProvider{RootPath: root}
}

func (l *LocalProvider) List(bucket, prefix string) ([]string, error) {
	var keys []string
	bucketPath := filepath.Join(l.RootPath, bucket)

	err := filepath.Walk(bucketPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == bucketPath {
				return filepath.SkipDir // Empty bucket
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		// Convert OS path back to S3-style key (forward slashes)
		rel, _ := filepath.Rel(bucketPath, path)
		key := filepath.ToSlash(rel)

		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})

	return keys, err
}

func (l *LocalProvider) Get(bucket, key string) (*FileObject, error) {
	f, err := os.Open(l.path(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s/%s is a directory", ErrNotFound, bucket, key)
	}

	return &FileObject{
		Body:          f,
		ContentLength: stat.Size(),
		ContentType:   "application/octet-stream", // Local files usually don't store this
		LastModified:  stat.ModTime(),
	}, nil
}

func (l *LocalProvider) Put(bucket, key string, body io.ReadSeeker, contentType, cacheControl string) error {
	path := l.path(bucket, key)

	// Ensure sub-directories exist (e.g. bucket/stories/forest.mp3)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, body)
	return err
}

func (l *LocalProvider) Delete(bucket, key string) error {
	return os.Remove(l.path(bucket, key))
}

func (l *LocalProvider) Exists(bucket, key string) (bool, error) {
	info, err := os.Stat(l.path(bucket, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (l *LocalProvider) path(bucket, key string) string {
	return filepath.Join(l.RootPath, bucket, filepath.FromSlash(key))
}
