// Package blobstore is the BLOB tier for dataset and attribute payloads too
// large to be worth inlining into a relational or core-backed container,
// adapted from the teacher's aws-sdk-go-v2 S3 client.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/contdb/queryview/internal/container"
)

// Store wraps an S3 (or S3-compatible, e.g. MinIO) client scoped to one
// bucket. It satisfies container.BlobReader and container.BlobWriter.
type Store struct {
	client *s3.Client
	bucket string
}

var (
	_ container.BlobReader = (*Store)(nil)
	_ container.BlobWriter = (*Store)(nil)
)

// New creates a blob store for the given endpoint. For MinIO, set useSSL to
// false and pass the MinIO endpoint (e.g. "http://localhost:9002").
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("blobstore: bucket name is required")
	}

	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		if !useSSL {
			o.EndpointOptions.DisableHTTPS = true
		}
	})

	return &Store{client: client, bucket: bucket}, nil
}

// WriteBlob uploads a dataset or attribute payload. If size is negative,
// ContentLength is omitted and the SDK streams without a pre-declared
// length.
func (s *Store) WriteBlob(ctx context.Context, key string, r io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("blobstore: write %q: %w", key, err)
	}
	return nil
}

// ReadBlob returns a reader for the payload at key. The caller must close
// it.
func (s *Store) ReadBlob(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %q: %w", key, err)
	}
	return out.Body, nil
}

// DeleteBlob removes a payload, used when a materialized view's host
// container is torn down.
func (s *Store) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete %q: %w", key, err)
	}
	return nil
}

// DatasetKey builds the object key for a dataset's offloaded payload.
// Format: containers/{containerName}/datasets{objectPath}
func (s *Store) DatasetKey(containerName, objectPath string) string {
	return path.Join("containers", containerName, "datasets", objectPath)
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }
