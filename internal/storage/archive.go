// Package storage wraps an S3-compatible object store used as a
// best-effort archival mirror for generated image bytes, ahead of
// content-addressed pinning.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveClient mirrors raw image bytes into an S3-compatible bucket.
// It is optional: the gateway runs fine with it unconfigured, in which
// case NewArchiveClient returns (nil, error) and callers treat archival
// as disabled rather than fatal.
type ArchiveClient struct {
	client     *s3.Client
	bucketName string
}

// NewArchiveClient builds a client from R2_ACCOUNT_ID / R2_ACCESS_KEY_ID /
// R2_SECRET_ACCESS_KEY / R2_BUCKET_NAME. Returns an error if any are unset.
func NewArchiveClient() (*ArchiveClient, error) {
	accountID := os.Getenv("R2_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("R2_SECRET_ACCESS_KEY")
	bucketName := os.Getenv("R2_BUCKET_NAME")

	if accountID == "" || accessKeyID == "" || secretAccessKey == "" || bucketName == "" {
		return nil, fmt.Errorf("missing archive storage configuration")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	})

	return &ArchiveClient{client: client, bucketName: bucketName}, nil
}

// Put mirrors data under key. Errors are the caller's to decide whether to
// treat as fatal; the CAU never does.
func (a *ArchiveClient) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive put %s: %w", key, err)
	}
	return nil
}

// Get retrieves previously archived bytes.
func (a *ArchiveClient) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive get %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("archive read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
