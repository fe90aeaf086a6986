package relay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/zulandar/reputation/internal/events"
)

// maxRetries is the max number of retries for rate-limited webhook calls.
const maxRetries = 3

// webhookPoster matches slackapi.PostWebhookContext, replaced in tests.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Slack posts notifications to a Slack incoming webhook.
type Slack struct {
	url     string
	post    webhookPoster
	backoff time.Duration
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{url: webhookURL, post: slackapi.PostWebhookContext, backoff: time.Second}
}

func (s *Slack) Publish(ctx context.Context, e events.Envelope) error {
	msg := buildWebhookMessage(Format(e))
	err := s.retryOnRateLimit(ctx, func() error {
		return s.post(ctx, s.url, msg)
	})
	if err != nil {
		return fmt.Errorf("relay: slack post %s: %w", e.ID, err)
	}
	return nil
}

func buildWebhookMessage(m Message) *slackapi.WebhookMessage {
	fields := make([]slackapi.AttachmentField, 0, len(m.Fields))
	for _, f := range m.Fields {
		fields = append(fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true})
	}
	return &slackapi.WebhookMessage{
		Text: m.Title,
		Attachments: []slackapi.Attachment{{
			Color:  m.Color,
			Text:   m.Text,
			Fields: fields,
		}},
	}
}

// retryOnRateLimit calls fn and retries after the server's Retry-After, or
// with exponential backoff, on Slack rate limit errors.
func (s *Slack) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * s.backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
