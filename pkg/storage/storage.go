package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Storage persists uploaded files (resumes, profile documents) under opaque keys.
type Storage interface {
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns a link clients can use to download the object. Private
	// backends return a signed link valid for expiry.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config selects and configures a storage backend.
type Config struct {
	Driver    string // local | s3
	BasePath  string // local root directory
	BaseURL   string // public URL prefix
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint (R2, MinIO)
	AccessKey string
	SecretKey string
	PathStyle bool
}

// New creates a Storage implementation for the configured driver.
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

// NewKey builds a collision-free key under prefix that keeps the file extension.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 {
		ext = ""
	}
	now := time.Now().UTC()
	return path.Join(strings.Trim(prefix, "/"), now.Format("2006/01"), uuid.NewString()+ext)
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
