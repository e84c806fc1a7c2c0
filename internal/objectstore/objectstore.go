// Package objectstore opens bulk-import dumps from local disk or from an
// S3-compatible bucket (Cloudflare R2 in production).
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"leads-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source is a parsed --source argument
type Source struct {
	Bucket string // empty for a local file
	Key    string
}

func (s Source) Remote() bool { return s.Bucket != "" }

// ParseSource accepts a file path or s3://bucket/key. A bare s3://key uses
// the configured default bucket.
func ParseSource(raw, defaultBucket string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("source is required")
	}
	if !strings.HasPrefix(raw, "s3://") {
		return Source{Key: raw}, nil
	}
	rest := strings.TrimPrefix(raw, "s3://")
	bucket, key, found := strings.Cut(rest, "/")
	if !found {
		bucket, key = defaultBucket, rest
	}
	if bucket == "" || key == "" {
		return Source{}, fmt.Errorf("source %q needs both bucket and key", raw)
	}
	return Source{Bucket: bucket, Key: key}, nil
}

// Open returns a reader over the dump. The caller closes it.
func Open(ctx context.Context, cfg *config.Config, src Source) (io.ReadCloser, error) {
	if !src.Remote() {
		return os.Open(src.Key)
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", src.Bucket, src.Key, err)
	}
	return resp.Body, nil
}

func newClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.R2.Region),
	}
	if cfg.R2.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2.AccessKey,
			cfg.R2.SecretKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure S3 client: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.R2.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.R2.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
