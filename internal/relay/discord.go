package relay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zulandar/reputation/internal/events"
)

// webhookExecutor abstracts the discordgo.Session method we use, enabling
// test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts notifications to a Discord webhook as embeds.
type Discord struct {
	sess       webhookExecutor
	webhookID  string
	token      string
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewDiscord builds a relay for one webhook. Webhook execution needs no bot
// token, so the session is created without one.
func NewDiscord(webhookID, token string) (*Discord, error) {
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("relay: discord session: %w", err)
	}
	return &Discord{
		sess:       sess,
		webhookID:  webhookID,
		token:      token,
		backoff:    2 * time.Second,
		maxBackoff: 30 * time.Second,
	}, nil
}

func (d *Discord) Publish(ctx context.Context, e events.Envelope) error {
	params := buildWebhookParams(Format(e))
	err := d.retryOnRateLimit(ctx, func() error {
		_, execErr := d.sess.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("relay: discord execute %s: %w", e.ID, err)
	}
	return nil
}

func buildWebhookParams(m Message) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{
		Title:       m.Title,
		Description: m.Text,
		Color:       hexColor(m.Color),
	}
	for _, f := range m.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	return &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
}

// hexColor converts "#rrggbb" to Discord's integer color.
func hexColor(c string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(c, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// 429 responses.
func (d *Discord) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * d.backoff
		if wait > d.maxBackoff {
			wait = d.maxBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
