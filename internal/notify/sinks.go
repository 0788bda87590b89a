package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/httpretry"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

// LogSink writes the notification to the structured log. Addresses are
// written in full since the owner acts on them.
type LogSink struct{}

func (LogSink) Send(_ context.Context, n domain.Notification) error {
	logger.Record("owner notification", "id", n.ID, "to", n.To, "subject", n.Subject, "body", n.Body)
	return nil
}

// SESAPI is the part of the SES v2 client SESSink uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSink sends plain-text mail through AWS SES.
type SESSink struct {
	client SESAPI
	from   string
}

// NewSESSink creates an SES sink sending from the given address.
func NewSESSink(client SESAPI, from string) *SESSink {
	return &SESSink{client: client, from: from}
}

func (s *SESSink) Send(ctx context.Context, n domain.Notification) error {
	if s.client == nil {
		return errors.New("SES client not initialized")
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{n.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(n.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(n.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("notification_id"), Value: aws.String(n.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	logger.Debug("SES notification sent", "id", n.ID, "to", n.To, "message_id", aws.ToString(out.MessageId))
	return nil
}

// WebhookSink POSTs the notification as JSON.
type WebhookSink struct {
	client httpretry.HTTPDoer
	url    string
}

// NewWebhookSink posts to url through client, normally a RetryClient.
func NewWebhookSink(client httpretry.HTTPDoer, url string) *WebhookSink {
	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Send(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
