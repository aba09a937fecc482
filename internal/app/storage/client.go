package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"sockchat/internal/pkg/logx"
)

// s3Client implements AssetService against S3-compatible storage.
type s3Client struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	uploader *manager.Uploader
	logger   zerolog.Logger
}

// newS3Client initializes the S3 client using a custom configuration that supports S3-compatible endpoints.
func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load sdk config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Client{
		cfg:      cfg,
		s3Client: client,
		uploader: manager.NewUploader(client),
		logger:   logx.Component("storage"),
	}, nil
}

// objectKey maps a request path to its key. Paths are cleaned so "../" cannot leave the prefix.
func (c *s3Client) objectKey(p string) string {
	return c.cfg.KeyPrefix + strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Exists implements AssetService.
func (c *s3Client) Exists(ctx context.Context, p string) (bool, error) {
	key := c.objectKey(p)

	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to get S3 object metadata")
		return false, fmt.Errorf("storage: head %s: %w", key, err)
	}

	return true, nil
}

// PresignDownload implements AssetService.
func (c *s3Client) PresignDownload(ctx context.Context, p string, duration time.Duration) (string, error) {
	key := c.objectKey(p)
	presignClient := s3.NewPresignClient(c.s3Client)

	resp, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	}, s3.WithPresignExpires(duration))
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to generate presigned URL")
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}

	return resp.URL, nil
}

// SyncDir implements AssetService.
func (c *s3Client) SyncDir(ctx context.Context, fsys fs.FS) (int, error) {
	uploaded := 0

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		key := c.objectKey(p)
		contentType := mime.TypeByExtension(path.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      &c.cfg.S3BucketName,
			Key:         &key,
			Body:        f,
			ContentType: &contentType,
		})
		if err != nil {
			return fmt.Errorf("storage: upload %s: %w", key, err)
		}

		c.logger.Debug().Str("key", key).Msg("uploaded asset")
		uploaded++
		return nil
	})

	return uploaded, err
}
