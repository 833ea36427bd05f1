// Package s3 provides a write-through sink that stores each store key as one
// JSON object in an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// DriverName identifies the s3 sink in logs and configuration.
	DriverName    = "s3"
	defaultRegion = "us-east-1"
	defaultPrefix = "procurecore/"
	objectSuffix  = ".json"
	contentType   = "application/json"
)

// Config holds explicit construction parameters. Credentials come from the
// default AWS chain.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; enables a custom endpoint such as MinIO
	PathStyle bool
	Prefix    string
}

// Sink persists store keys as objects under a bucket prefix.
type Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 sink from cfg.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newSink(client, cfg.Bucket, cfg.Prefix), nil
}

func newSink(client *s3.Client, bucket, prefix string) *Sink {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Sink{client: client, bucket: bucket, prefix: prefix}
}

// Driver implements store.Sink.
func (s *Sink) Driver() string { return DriverName }

// Bucket returns the configured bucket.
func (s *Sink) Bucket() string { return s.bucket }

// Prefix returns the object key prefix.
func (s *Sink) Prefix() string { return s.prefix }

func (s *Sink) objectKey(key string) string {
	return s.prefix + key + objectSuffix
}

func (s *Sink) storeKey(objectKey string) (string, bool) {
	rest, ok := strings.CutPrefix(objectKey, s.prefix)
	if !ok || strings.Contains(rest, "/") {
		return "", false
	}
	return strings.CutSuffix(rest, objectSuffix)
}

func (s *Sink) list(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &s.prefix, ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(keys)
	return keys, nil
}

// Load implements store.Sink.
func (s *Sink) Load(ctx context.Context) (map[string][]byte, error) {
	objects, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(objects))
	for _, obj := range objects {
		key, ok := s.storeKey(obj)
		if !ok {
			continue
		}
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(obj)})
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", obj, err)
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", obj, err)
		}
		out[key] = data
	}
	return out, nil
}

// Save implements store.Sink. Existing objects are overwritten.
func (s *Sink) Save(ctx context.Context, key string, payload []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete implements store.Sink.
func (s *Sink) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: aws.String(s.objectKey(key))}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear implements store.Sink. Objects outside the prefix are untouched.
func (s *Sink) Clear(ctx context.Context) error {
	objects, err := s.list(ctx)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: aws.String(obj)}); err != nil {
			return fmt.Errorf("delete %s: %w", obj, err)
		}
	}
	return nil
}
