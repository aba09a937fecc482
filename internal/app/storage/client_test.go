package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *s3Client {
	t.Helper()
	svc, err := NewAssetService(context.Background(), ServiceConfig{
		S3Endpoint:        "http://localhost:9000",
		S3BucketName:      "assets",
		S3AccessKeyID:     "test-access-key",
		S3SecretAccessKey: "test-secret-key",
	})
	require.NoError(t, err)
	return svc.(*s3Client)
}

func TestObjectKeyStaysUnderPrefix(t *testing.T) {
	c := newTestClient(t)

	assert.Equal(t, "public/client.js", c.objectKey("client.js"))
	assert.Equal(t, "public/css/style.css", c.objectKey("/css/style.css"))
	assert.Equal(t, "public/etc/passwd", c.objectKey("../../etc/passwd"))
}

func TestPresignDownload(t *testing.T) {
	c := newTestClient(t)

	raw, err := c.PresignDownload(context.Background(), "client.js", 5*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/assets/public/client.js", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.True(t, strings.HasPrefix(u.Query().Get("X-Amz-Credential"), "test-access-key/"))
}
