// Package storage fetches meeting recordings from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
)

// DownloadFilePrefix names temporary files holding downloaded recordings.
const DownloadFilePrefix = "meetmind-download-"

// ErrObjectTooLarge is returned when an object exceeds the download limit.
var ErrObjectTooLarge = errors.New("object exceeds maximum size")

// S3ClientConfig holds configuration for S3Client
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
	// MaxObjectBytes rejects larger objects before downloading. Zero disables the check.
	MaxObjectBytes int64
}

// S3Client reads recordings from an S3-compatible store (e.g., RustFS)
type S3Client struct {
	client   *s3.Client
	bucket   string
	maxBytes int64
}

// NewS3Client creates a new S3Client with the given configuration
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxObjectBytes,
	}, nil
}

// IsS3URI reports whether location uses the s3:// scheme.
func IsS3URI(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseURI splits s3://bucket/key. A location without the scheme is a key in
// the default bucket, returned with an empty bucket.
func ParseURI(location string) (bucket, key string, err error) {
	if !IsS3URI(location) {
		key = strings.TrimPrefix(location, "/")
		if key == "" {
			return "", "", fmt.Errorf("empty object key")
		}
		return "", key, nil
	}
	rest := strings.TrimPrefix(location, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q: want s3://bucket/key", location)
	}
	return bucket, key, nil
}

// Download copies the object at location into a new temporary file in dir and
// returns its path. The file keeps the object's extension; the caller removes it.
func (c *S3Client) Download(ctx context.Context, location, dir string) (string, error) {
	bucket, key, err := ParseURI(location)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		bucket = c.bucket
	}

	if c.maxBytes > 0 {
		head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return "", fmt.Errorf("failed to head object: %w", err)
		}
		if size := aws.ToInt64(head.ContentLength); size > c.maxBytes {
			return "", fmt.Errorf("%w: %s is %s, limit is %s", ErrObjectTooLarge, key,
				humanize.IBytes(uint64(size)), humanize.IBytes(uint64(c.maxBytes)))
		}
	}

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp(dir, DownloadFilePrefix+"*"+path.Ext(key))
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	var src io.Reader = out.Body
	if c.maxBytes > 0 {
		src = io.LimitReader(out.Body, c.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && c.maxBytes > 0 && n > c.maxBytes {
		err = fmt.Errorf("%w: %s", ErrObjectTooLarge, key)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to download object: %w", err)
	}

	return f.Name(), nil
}

// Upload stores body under key in the default bucket.
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
