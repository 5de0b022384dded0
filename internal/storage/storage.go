package storage

import (
	"io"
	"strings"
	"sync"
	"time"

	"story-palace/internal/audio"
	"story-palace/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

type Client struct {
	backend       StorageProvider
	bucketLibrary string
	bucketIngest  string

	// Cache for library listings
	cache      map[string][]string
	cacheTime  map[string]time.Time
	cacheMutex sync.RWMutex
}

const CacheTTL = 1 * time.Hour

func New(cfg *config.Config) *Client {
	var backend StorageProvider

	if cfg.Storage.Provider == "s3" {
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Endpoint:         aws.String(cfg.Storage.Endpoint),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess := session.Must(session.NewSession(s3Config))
		backend = NewS3Provider(sess)
	} else {
		backend = NewLocalProvider(cfg.Storage.LocalStorage)
	}

	return NewClient(backend, cfg.Storage.BucketLibrary, cfg.Storage.BucketIngest)
}

// NewClient wires a client directly onto a backend.
func NewClient(backend StorageProvider, bucketLibrary, bucketIngest string) *Client {
	return &Client{
		backend:       backend,
		bucketLibrary: bucketLibrary,
		bucketIngest:  bucketIngest,
		cache:         make(map[string][]string),
		cacheTime:     make(map[string]time.Time),
	}
}

// --- Library Methods (Read-Only Cache) ---

func (c *Client) ListAudioFiles(prefix string) ([]string, error) {
	c.cacheMutex.RLock()
	files, ok := c.cache[prefix]
	ts := c.cacheTime[prefix]
	c.cacheMutex.RUnlock()

	if ok && time.Since(ts) < CacheTTL {
		return files, nil
	}

	keys, err := c.backend.List(c.bucketLibrary, prefix)
	if err != nil {
		return nil, err
	}

	var allKeys []string
	for _, key := range keys {
		if audio.IsSupportedFormat(key) && key != prefix {
			allKeys = append(allKeys, key)
		}
	}

	c.cacheMutex.Lock()
	c.cache[prefix] = allKeys
	c.cacheTime[prefix] = time.Now()
	c.cacheMutex.Unlock()

	return allKeys, nil
}

func (c *Client) DownloadFile(key string) (*FileObject, error) {
	return c.backend.Get(c.bucketLibrary, key)
}

// Open returns just the body of a library object.
func (c *Client) Open(key string) (io.ReadCloser, error) {
	obj, err := c.DownloadFile(key)
	if err != nil {
		return nil, err
	}
	return obj.Body, nil
}

func (c *Client) LibraryFileExists(key string) (bool, error) {
	return c.backend.Exists(c.bucketLibrary, key)
}

func (c *Client) UploadLibraryFile(key string, body io.ReadSeeker, contentType string) error {
	err := c.backend.Put(c.bucketLibrary, key, body, contentType, "public, max-age=86400")
	if err == nil {
		c.invalidate(key)
	}
	return err
}

// --- Ingest Methods ---

func (c *Client) UploadIngestFile(key string, body io.ReadSeeker, contentType string) error {
	return c.backend.Put(c.bucketIngest, key, body, contentType, "")
}

func (c *Client) ListIngestFiles() ([]string, error) {
	return c.backend.List(c.bucketIngest, "")
}

func (c *Client) DownloadIngestFile(key string) (*FileObject, error) {
	return c.backend.Get(c.bucketIngest, key)
}

func (c *Client) DeleteIngestFile(key string) error {
	return c.backend.Delete(c.bucketIngest, key)
}

// invalidate drops cached listings whose prefix covers key.
func (c *Client) invalidate(key string) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()
	for prefix := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, prefix)
			delete(c.cacheTime, prefix)
		}
	}
}
