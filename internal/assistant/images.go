package assistant

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageStore persists uploaded images and returns where they live.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// S3API is the subset of the S3 client used by S3ImageStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ImageStore writes images to a bucket.
type S3ImageStore struct {
	client S3API
	bucket string
}

// NewS3ImageStore returns nil when the bucket or client is missing.
func NewS3ImageStore(client S3API, bucket string) *S3ImageStore {
	if client == nil || bucket == "" {
		return nil
	}
	return &S3ImageStore{client: client, bucket: bucket}
}

func (s *S3ImageStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("assistant: s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// MemoryImageStore keeps images in process; used in development and tests.
type MemoryImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{objects: make(map[string][]byte)}
}

func (m *MemoryImageStore) Put(_ context.Context, key, _ string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return "memory://" + key, nil
}

// Get returns a stored object.
func (m *MemoryImageStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}
