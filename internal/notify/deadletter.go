package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

// DeadLetter keeps notifications that could not be delivered.
type DeadLetter interface {
	Store(ctx context.Context, n domain.Notification) error
}

// LogDeadLetter records undeliverable notifications in the error log.
type LogDeadLetter struct{}

func (LogDeadLetter) Store(_ context.Context, n domain.Notification) error {
	logger.Error("notification dead-lettered",
		"id", n.ID, "to", n.To, "subject", n.Subject, "body", n.Body,
		"attempts", n.Attempts, "last_error", n.LastError)
	return nil
}

// S3API is the part of the S3 client S3DeadLetter uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3DeadLetter archives undeliverable notifications as JSON objects.
type S3DeadLetter struct {
	client S3API
	bucket string
}

// NewS3DeadLetter writes into bucket.
func NewS3DeadLetter(client S3API, bucket string) *S3DeadLetter {
	return &S3DeadLetter{client: client, bucket: bucket}
}

// Key returns the object key for n.
func (d *S3DeadLetter) Key(n domain.Notification) string {
	return fmt.Sprintf("dead-letter/notifications/%s/%s.json", n.CreatedAt.UTC().Format("2006/01/02"), n.ID)
}

func (d *S3DeadLetter) Store(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.Key(n)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting dead letter to S3: %w", err)
	}
	return nil
}
