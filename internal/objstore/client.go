// Package objstore stores task payloads in and fetches raster blobs from
// S3-compatible object storage.
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/internal/raster"
)

// Config holds the object storage connection settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// Client wraps the MinIO client.
type Client struct {
	client *minio.Client
	config Config
}

// NewClient connects to the object store.
func NewClient(cfg Config) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Client{client: client, config: cfg}, nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		err = c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Put uploads an object.
func (c *Client) Put(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	_, err := c.client.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, object, err)
	}
	return nil
}

// PutJSON marshals and uploads a JSON document.
func (c *Client) PutJSON(ctx context.Context, bucket, object string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, object, err)
	}
	return c.Put(ctx, bucket, object, data, "application/json")
}

// Get downloads an object.
func (c *Client) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", provider.ErrExternalData, bucket, object, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s/%s: %v", provider.ErrExternalData, bucket, object, err)
	}
	return data, nil
}

// Fetch implements provider.RasterFetchProvider for s3://bucket/key URLs.
func (c *Client) Fetch(ctx context.Context, url string) (*raster.Raster, *geometry.BBox, error) {
	bucket, object, err := splitS3URL(url)
	if err != nil {
		return nil, nil, err
	}
	data, err := c.Get(ctx, bucket, object)
	if err != nil {
		return nil, nil, err
	}
	return provider.DecodeRasterBlob(data)
}

func splitS3URL(url string) (bucket, object string, err error) {
	trimmed, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", url)
	}
	bucket, object, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed s3 url: %s", url)
	}
	return bucket, object, nil
}

// MultiFetcher dispatches raster fetches by URL scheme: s3:// URLs go to the
// object store, everything else over HTTP.
type MultiFetcher struct {
	HTTP provider.RasterFetchProvider
	S3   *Client
}

// Fetch implements provider.RasterFetchProvider.
func (m *MultiFetcher) Fetch(ctx context.Context, url string) (*raster.Raster, *geometry.BBox, error) {
	if strings.HasPrefix(url, "s3://") {
		if m.S3 == nil {
			return nil, nil, fmt.Errorf("%w: no object store configured for %s", provider.ErrExternalData, url)
		}
		return m.S3.Fetch(ctx, url)
	}
	return m.HTTP.Fetch(ctx, url)
}
