package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrArtifactNotFound = errors.New("artifact not found")

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
	// Prefix is the key prefix artifacts live under; DefaultPrefix when empty.
	Prefix string
}

// Client stores invocation artifacts (result JSON, .cube LUTs) in a bucket.
type Client struct {
	minio  *minio.Client
	bucket string
	prefix string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Client{minio: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) Key(invocationID, name string) string {
	return ArtifactKey(c.prefix, invocationID, name)
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// PutArtifact uploads one artifact and returns the key it was stored under.
func (c *Client) PutArtifact(ctx context.Context, a Artifact) (string, error) {
	opts, err := putOptions(a)
	if err != nil {
		return "", err
	}
	key := c.Key(a.InvocationID, a.Name)
	if _, err := c.minio.PutObject(ctx, c.bucket, key, bytes.NewReader(a.Data), int64(len(a.Data)), opts); err != nil {
		return "", fmt.Errorf("put artifact %s: %w", key, err)
	}
	return key, nil
}

// ArtifactURL returns a presigned GET link for a stored artifact, or
// ErrArtifactNotFound when the object is absent.
func (c *Client) ArtifactURL(ctx context.Context, invocationID, name string, expiry time.Duration) (string, error) {
	key := c.Key(invocationID, name)
	if _, err := c.minio.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMissing(err) {
			return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
		}
		return "", fmt.Errorf("stat artifact %s: %w", key, err)
	}

	u, err := c.minio.PresignedGetObject(ctx, c.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign artifact %s: %w", key, err)
	}
	return u.String(), nil
}

func putOptions(a Artifact) (minio.PutObjectOptions, error) {
	if strings.TrimSpace(a.InvocationID) == "" {
		return minio.PutObjectOptions{}, errors.New("artifact invocation id is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return minio.PutObjectOptions{}, errors.New("artifact name is required")
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(a.Name)
	}
	return minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "private, max-age=3600",
		UserMetadata: artifactMetadata(a),
	}, nil
}

func isMissing(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
