package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds S3/MinIO configuration
type S3Config struct {
	Endpoint        string // e.g., "http://localhost:9000" for MinIO
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
}

// S3Storage archives raw import files in an S3-compatible bucket
type S3Storage struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewS3Storage creates a new S3 storage client
func NewS3Storage(cfg S3Config) *S3Storage {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		UsePathStyle: true, // Required for MinIO
	})

	return &S3Storage{client: client, bucket: cfg.Bucket, now: time.Now}
}

// ArchiveInput is one raw upload to keep
type ArchiveInput struct {
	NewsletterID string
	Filename     string // Original filename, used for the extension
	ContentType  string
	Body         []byte
}

// ArchiveOutput describes the stored object
type ArchiveOutput struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archive stores the raw file under imports/<newsletter>/<date>/<uuid><ext>
func (s *S3Storage) Archive(ctx context.Context, in ArchiveInput) (*ArchiveOutput, error) {
	ext := path.Ext(in.Filename)
	if ext == "" {
		ext = extensionFor(in.ContentType)
	}
	now := s.now().UTC()
	key := ObjectKey(in.NewsletterID, now, uuid.NewString(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Body),
		ContentType:   aws.String(in.ContentType),
		ContentLength: aws.Int64(int64(len(in.Body))),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading to s3: %w", err)
	}

	return &ArchiveOutput{Key: key, Size: int64(len(in.Body)), ArchivedAt: now}, nil
}

// Delete removes an archived file
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting from s3: %w", err)
	}
	return nil
}

// ObjectKey builds the archive key for an upload
func ObjectKey(newsletterID string, at time.Time, id, ext string) string {
	return fmt.Sprintf("imports/%s/%s/%s%s", newsletterID, at.Format("2006/01/02"), id, ext)
}

// extensionFor returns a file extension based on content type
func extensionFor(contentType string) string {
	switch contentType {
	case "text/csv":
		return ".csv"
	case "text/tab-separated-values":
		return ".tsv"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	default:
		return ""
	}
}
