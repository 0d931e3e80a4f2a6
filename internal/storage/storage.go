// Package storage implements the blob store used for generation inputs and
// outputs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrObjectNotFound is returned by Fetch when nothing is stored under a ref.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// BlobStore fetches and stores artifact bytes by reference.
type BlobStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte) (string, error)
}

// Options selects and configures a blob store driver.
type Options struct {
	Driver          string
	BasePath        string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// New builds the blob store named by opts.Driver ("fs" or "s3").
func New(ctx context.Context, opts Options) (BlobStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "fs", "filesystem":
		path := opts.BasePath
		if path == "" {
			path = "./storage"
		}
		return NewFileStore(path)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          opts.Bucket,
			Region:          opts.Region,
			Endpoint:        opts.Endpoint,
			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", opts.Driver)
	}
}
