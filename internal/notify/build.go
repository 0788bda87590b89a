package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/sparklebrand/brand-api/internal/config"
	"github.com/sparklebrand/brand-api/internal/pkg/httpretry"
)

// New builds the notifier described by cfg. rdb is required only for the
// redis queue; rec may be nil.
func New(ctx context.Context, cfg config.NotifyConfig, rdb *redis.Client, rec Recorder) (Runner, error) {
	opts := Options{
		OwnerEmail:  cfg.OwnerEmail,
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay(),
		MaxDelay:    cfg.MaxDelay(),
		Recorder:    rec,
	}

	var sink Sink
	switch cfg.Sink {
	case "log", "":
		sink = LogSink{}
	case "ses":
		c, err := loadAWSConfig(ctx, cfg.SES)
		if err != nil {
			return nil, err
		}
		from := cfg.FromEmail
		if from == "" {
			from = opts.OwnerEmail
		}
		sink = NewSESSink(sesv2.NewFromConfig(c), from)
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("notify.webhook_url is required for the webhook sink")
		}
		client := httpretry.NewRetryClient(nil, 2, httpretry.WithDelays(cfg.BaseDelay(), cfg.MaxDelay()))
		sink = NewWebhookSink(client, cfg.WebhookURL)
	default:
		return nil, fmt.Errorf("unknown notify sink %q", cfg.Sink)
	}

	if cfg.DeadLetterBucket != "" {
		client, err := DeadLetterClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts.DeadLetter = NewS3DeadLetter(client, cfg.DeadLetterBucket)
	}

	if cfg.Mode == "sync" {
		return NewSync(sink, opts), nil
	}

	var queue Queue
	switch cfg.Queue {
	case "memory", "":
		queue = NewChannelQueue(cfg.QueueSize)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("notify.queue redis needs redis.addr")
		}
		queue = NewRedisQueue(rdb, "")
	default:
		return nil, fmt.Errorf("unknown notify queue %q", cfg.Queue)
	}
	return NewDispatcher(queue, sink, opts), nil
}

// DeadLetterClient builds the S3 client for notify.dead_letter_bucket from the
// notify AWS settings. Anything probing that bucket should use it too.
func DeadLetterClient(ctx context.Context, cfg config.NotifyConfig) (*s3.Client, error) {
	c, err := loadAWSConfig(ctx, cfg.SES)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(c), nil
}

// loadAWSConfig uses static credentials when both keys are set and the
// default chain otherwise.
func loadAWSConfig(ctx context.Context, ses config.SESConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(ses.Region)}
	if ses.AccessKey != "" && ses.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ses.AccessKey, ses.SecretKey, "")))
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return c, nil
}
