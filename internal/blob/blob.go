// Package blob is the object-store access layer: whole-object puts and gets
// plus prefix listing, on any S3-compatible backend.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"go-hicp-pipeline/internal/config"
)

// Store talks to one bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// Item is one listed object.
type Item struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
}

// New builds a Store from the pipeline config. A non-empty EndpointURL
// switches to path-style addressing (MinIO and similar services need it).
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.EndpointURL != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes one whole object, overwriting any previous version.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Get reads one whole object.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// List returns every object under prefix with its last-modified timestamp.
func (s *Store) List(ctx context.Context, prefix string) ([]Item, error) {
	var items []Item

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			item := Item{Key: aws.ToString(obj.Key)}
			if obj.LastModified != nil {
				item.LastModified = *obj.LastModified
			}
			items = append(items, item)
		}
	}

	return items, nil
}

// Latest returns the key under prefix with the newest last-modified
// timestamp, or "" when the prefix is empty.
func (s *Store) Latest(ctx context.Context, prefix string) (string, error) {
	items, err := s.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	latest := ""
	var latestAt time.Time
	for _, item := range items {
		if latest == "" || item.LastModified.After(latestAt) {
			latest = item.Key
			latestAt = item.LastModified
		}
	}
	return latest, nil
}
