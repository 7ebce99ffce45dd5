package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/folio/internal/config"
	"github.com/folio/internal/gallery"
	"github.com/folio/internal/logger"
)

// S3 uploads to an S3-compatible bucket (AWS, R2, MinIO).
type S3 struct {
	client    *s3.Client
	bucket    string
	publicURL string
	basePath  string
}

var _ gallery.Storage = (*S3)(nil)

// NewS3 creates an S3 store. The bucket is required.
func NewS3(cfg config.S3Config) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	opts := func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}
	client := s3.New(s3.Options{}, opts)

	log := logger.Component("objectstore")
	log.Info().
		Str("bucket", cfg.Bucket).
		Str("endpoint", cfg.Endpoint).
		Msg("S3 storage client initialized")

	basePath := strings.Trim(cfg.BasePath, "/")
	if basePath != "" {
		basePath += "/"
	}
	return &S3{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		basePath:  basePath,
	}, nil
}

// Upload implements gallery.Storage.
func (c *S3) Upload(ctx context.Context, name string, body io.Reader, contentType string, size int64) error {
	clean, err := objectName(name)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(c.basePath + clean),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := c.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

// PublicURL implements gallery.Storage. Without a public base URL the
// virtual-hosted AWS address is used.
func (c *S3) PublicURL(name string) string {
	key := c.basePath + strings.TrimLeft(name, "/")
	if c.publicURL != "" {
		return c.publicURL + "/" + escapeKey(key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, escapeKey(key))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
