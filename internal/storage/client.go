package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("object not found")

type Config struct {
	Endpoint        string
	Access          string
	Secret          string
	OriginalsBucket string
	VariantsBucket  string
	UseSSL          bool
}

type VariantPut struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
	Tags         map[string]string
}

type Client struct {
	minio     *minio.Client
	originals string
	variants  string
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.OriginalsBucket) == "" {
		return nil, fmt.Errorf("originals bucket is required")
	}
	if strings.TrimSpace(cfg.VariantsBucket) == "" {
		return nil, fmt.Errorf("variants bucket is required")
	}

	return &Client{
		minio:     mc,
		originals: cfg.OriginalsBucket,
		variants:  cfg.VariantsBucket,
	}, nil
}

func (c *Client) OriginalsBucket() string {
	return c.originals
}

func (c *Client) VariantsBucket() string {
	return c.variants
}

func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.originals, c.variants} {
		if err := c.ensureBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.minio.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (c *Client) ReadOriginal(ctx context.Context, objectKey string) ([]byte, string, error) {
	obj, err := c.minio.GetObject(ctx, c.originals, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get original %s: %w", objectKey, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("original %s: %w", objectKey, ErrObjectNotFound)
		}
		return nil, "", fmt.Errorf("stat original %s: %w", objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read original %s: %w", objectKey, err)
	}
	return data, stat.ContentType, nil
}

func (c *Client) VariantExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.minio.StatObject(ctx, c.variants, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat variant %s: %w", objectKey, err)
}

func (c *Client) WriteVariant(ctx context.Context, objectKey string, data []byte, put VariantPut) error {
	_, err := c.minio.PutObject(
		ctx,
		c.variants,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  put.ContentType,
			CacheControl: put.CacheControl,
			UserMetadata: put.Metadata,
			UserTags:     put.Tags,
		},
	)
	if err != nil {
		return fmt.Errorf("put variant %s: %w", objectKey, err)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" || resp.Code == "NoSuchBucket"
}
