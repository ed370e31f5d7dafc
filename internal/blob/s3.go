// Package blob provides the content-addressed binary object store backed
// by S3 or an S3-compatible endpoint.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dverhagen/pharmsync/internal/config"
)

// Store is a thin wrapper around the S3 API with the semantics the
// pipeline needs: put, existence check by path prefix, and get.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewStore creates an S3-backed object store from configuration. A custom
// endpoint switches to path-style addressing for S3-compatible services.
func NewStore(ctx context.Context, cfg config.Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
			o.UsePathStyle = true
		}
	})

	return &Store{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: strings.Trim(cfg.S3Prefix, "/"),
	}, nil
}

// key joins the configured prefix with an object path.
func (s *Store) key(objectPath string) string {
	if s.prefix == "" {
		return objectPath
	}
	return path.Join(s.prefix, objectPath)
}

// Put uploads the object at path. Callers are expected to have checked
// existence first; content-addressed paths make a double write harmless.
func (s *Store) Put(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) error {
	key := s.key(objectPath)
	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          body,
		ContentLength: &size,
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// ExistsPrefix reports whether any object exists under the given path
// prefix.
func (s *Store) ExistsPrefix(ctx context.Context, pathPrefix string) (bool, error) {
	key := s.key(pathPrefix)
	one := int32(1)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &s.bucket,
		Prefix:  &key,
		MaxKeys: &one,
	})
	if err != nil {
		return false, fmt.Errorf("list objects %s: %w", key, err)
	}
	return len(out.Contents) > 0, nil
}

// Get downloads an object for verification. The caller owns the returned
// reader.
func (s *Store) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	key := s.key(objectPath)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return out.Body, nil
}
