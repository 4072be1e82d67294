package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// downloadPartSize is the range size for parallel downloads of objects that
// need random access.
const downloadPartSize = 16 * 1024 * 1024

// Client streams and downloads S3 objects.
type Client struct {
	s3Client   *s3.Client
	downloader *manager.Downloader
}

// NewClient creates a new S3 client using default AWS configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg), nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config) *Client {
	s3Client := s3.NewFromConfig(cfg)
	return &Client{
		s3Client: s3Client,
		downloader: manager.NewDownloader(s3Client, func(d *manager.Downloader) {
			d.PartSize = downloadPartSize
		}),
	}
}

// StreamObject returns the body of an S3 object as a sequential reader.
func (c *Client) StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// DownloadObject writes an S3 object to dst using parallel range requests
// and returns the number of bytes written.
func (c *Client) DownloadObject(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error) {
	n, err := c.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return n, nil
}

// ParseS3URI splits an s3://bucket/key URI. The key may be empty.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	bucket, key, _ = strings.Cut(path, "/")
	if bucket == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}
	return bucket, key, nil
}

// downloadToTemp copies an S3 object into a temporary file. The caller owns
// the file and must call the returned cleanup.
func downloadToTemp(ctx context.Context, d ObjectDownloader, bucket, key string) (*os.File, func(), error) {
	f, err := os.CreateTemp("", "csvrows-*.download")
	if err != nil {
		return nil, nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	if _, err := d.DownloadObject(ctx, bucket, key, f); err != nil {
		cleanup()
		return nil, nil, err
	}
	return f, cleanup, nil
}
