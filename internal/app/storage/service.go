/*
Package storage serves the public assets from an S3-compatible bucket.

When a bucket is configured, /public/* requests are answered with a redirect to a short-lived
presigned download URL instead of being read from the local directory. SyncDir publishes the
local directory to the bucket.
*/
package storage

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// DefaultKeyPrefix is prepended to every asset path to form the object key.
const DefaultKeyPrefix = "public/"

// ErrAssetNotFound is returned when the object does not exist in the bucket.
var ErrAssetNotFound = errors.New("storage: asset not found")

// ServiceConfig holds the configuration for connecting to the asset bucket.
type ServiceConfig struct {
	S3Endpoint        string
	S3BucketName      string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// AssetService resolves public asset paths against the bucket.
type AssetService interface {
	// Exists reports whether the asset is present.
	Exists(ctx context.Context, path string) (bool, error)

	// PresignDownload returns a URL valid for duration.
	PresignDownload(ctx context.Context, path string, duration time.Duration) (string, error)

	// SyncDir uploads every regular file of fsys, returning the number of uploaded objects.
	SyncDir(ctx context.Context, fsys fs.FS) (int, error)
}

// NewAssetService initializes the S3 client.
func NewAssetService(ctx context.Context, cfg ServiceConfig) (AssetService, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return newS3Client(ctx, cfg)
}
