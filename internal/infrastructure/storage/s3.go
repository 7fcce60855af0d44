package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage implements Storage on an S3 bucket; this is the recording mirror
// backend.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Storage(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// NewS3StorageFromEnv builds the client from the default AWS credential chain.
func NewS3StorageFromEnv(ctx context.Context, region, bucket, prefix string) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Storage(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

func (s *S3Storage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", s.prefix, name)
}

func (s *S3Storage) Save(ctx context.Context, name string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read object data: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *S3Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return result.Body, nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	result, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects from S3: %w", err)
	}

	var names []string
	for _, obj := range result.Contents {
		key := aws.ToString(obj.Key)
		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix+"/")
		}
		names = append(names, key)
	}
	return names, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}
