package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore uploads original PDF bytes to S3. The store is strictly
// best-effort for callers: upload intake logs a failure and continues
// without a pdf_url.
type BlobStore struct {
	client *awss3.Client
	bucket string
	region string
}

func New(ctx context.Context, accessKey, secretKey, region, bucket string) (*BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config failed: %w", err)
	}
	return &BlobStore{
		client: awss3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
	}, nil
}

// Store puts the object under key and returns its public URL.
func (s *BlobStore) Store(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("put object failed: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
