package relay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"

	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/record"
)

func feedbackEvent() events.Envelope {
	return events.OfNewFeedback(1700000000, events.NewFeedback{
		AgentID:       7,
		ClientID:      record.Identity{0xcc, 0x01},
		FeedbackIndex: 3,
		Score:         88,
		FileURI:       "ipfs://fb",
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name      string
		e         events.Envelope
		wantTitle string
		wantText  string
		wantColor string
	}{
		{
			name:      "new feedback",
			e:         feedbackEvent(),
			wantTitle: "New feedback for agent 7",
			wantText:  "Score 88/100",
			wantColor: ColorFeedback,
		},
		{
			name:      "revoked",
			e:         events.OfFeedbackRevoked(1, events.FeedbackRevoked{AgentID: 9, FeedbackIndex: 2}),
			wantTitle: "Feedback revoked for agent 9",
			wantText:  "revoked feedback #2",
			wantColor: ColorRevoked,
		},
		{
			name:      "response",
			e:         events.OfResponseAppended(1, events.ResponseAppended{AgentID: 4, ResponseIndex: 1, ResponseURI: "ipfs://r"}),
			wantTitle: "Response on agent 4 feedback",
			wantText:  "replied to",
			wantColor: ColorResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Format(tt.e)
			if m.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", m.Title, tt.wantTitle)
			}
			if !strings.Contains(m.Text, tt.wantText) {
				t.Errorf("Text = %q, want to contain %q", m.Text, tt.wantText)
			}
			if m.Color != tt.wantColor {
				t.Errorf("Color = %q, want %q", m.Color, tt.wantColor)
			}
		})
	}

	m := Format(feedbackEvent())
	if len(m.Fields) != 3 || m.Fields[2].Value != "ipfs://fb" {
		t.Errorf("Fields = %+v", m.Fields)
	}
	if m.Fields[0].Value != "cc0100…0000" {
		t.Errorf("short client = %q", m.Fields[0].Value)
	}
}

func TestFilter(t *testing.T) {
	var got []events.Type
	sink := events.SinkFunc(func(_ context.Context, e events.Envelope) error {
		got = append(got, e.Type)
		return nil
	})
	f := Filter{Types: []string{"feedback_revoked"}, Sink: sink}
	ctx := context.Background()

	_ = f.Publish(ctx, feedbackEvent())
	_ = f.Publish(ctx, events.OfFeedbackRevoked(1, events.FeedbackRevoked{}))
	if len(got) != 1 || got[0] != events.TypeFeedbackRevoked {
		t.Errorf("delivered = %v, want [feedback_revoked]", got)
	}

	all := Filter{Sink: sink}
	_ = all.Publish(ctx, feedbackEvent())
	if len(got) != 2 {
		t.Errorf("empty filter should pass everything, delivered = %v", got)
	}
}

func TestSlack_Publish(t *testing.T) {
	var gotURL string
	var gotMsg *slackapi.WebhookMessage
	s := &Slack{
		url: "https://hooks.example/T/B/X",
		post: func(_ context.Context, url string, msg *slackapi.WebhookMessage) error {
			gotURL, gotMsg = url, msg
			return nil
		},
	}

	if err := s.Publish(context.Background(), feedbackEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if gotURL != "https://hooks.example/T/B/X" {
		t.Errorf("url = %q", gotURL)
	}
	if gotMsg.Text != "New feedback for agent 7" {
		t.Errorf("Text = %q", gotMsg.Text)
	}
	if len(gotMsg.Attachments) != 1 || gotMsg.Attachments[0].Color != ColorFeedback {
		t.Errorf("Attachments = %+v", gotMsg.Attachments)
	}
	if len(gotMsg.Attachments[0].Fields) != 3 {
		t.Errorf("Fields = %+v", gotMsg.Attachments[0].Fields)
	}
}

func TestSlack_RetriesRateLimit(t *testing.T) {
	calls := 0
	s := &Slack{
		post: func(context.Context, string, *slackapi.WebhookMessage) error {
			calls++
			if calls < 3 {
				return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
			}
			return nil
		},
		backoff: time.Millisecond,
	}
	if err := s.Publish(context.Background(), feedbackEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSlack_OtherErrorsNotRetried(t *testing.T) {
	calls := 0
	s := &Slack{
		post: func(context.Context, string, *slackapi.WebhookMessage) error {
			calls++
			return errors.New("invalid_payload")
		},
		backoff: time.Millisecond,
	}
	err := s.Publish(context.Background(), feedbackEvent())
	if err == nil || !strings.Contains(err.Error(), "relay: slack post") {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	fail   int
	params *discordgo.WebhookParams
	id     string
	token  string
}

func (m *mockExecutor) WebhookExecute(webhookID, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.id, m.token, m.params = webhookID, token, data
	if m.calls <= m.fail {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: 429}}
	}
	return &discordgo.Message{}, nil
}

func newTestDiscord(exec *mockExecutor) *Discord {
	return &Discord{
		sess:       exec,
		webhookID:  "123",
		token:      "tok",
		backoff:    time.Millisecond,
		maxBackoff: 5 * time.Millisecond,
	}
}

func TestDiscord_Publish(t *testing.T) {
	exec := &mockExecutor{}
	d := newTestDiscord(exec)

	if err := d.Publish(context.Background(), feedbackEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if exec.id != "123" || exec.token != "tok" {
		t.Errorf("webhook = %s/%s", exec.id, exec.token)
	}
	if len(exec.params.Embeds) != 1 {
		t.Fatalf("Embeds = %d, want 1", len(exec.params.Embeds))
	}
	embed := exec.params.Embeds[0]
	if embed.Title != "New feedback for agent 7" {
		t.Errorf("Title = %q", embed.Title)
	}
	if embed.Color != 0x36a64f {
		t.Errorf("Color = %x, want 36a64f", embed.Color)
	}
	if len(embed.Fields) != 3 || !embed.Fields[0].Inline {
		t.Errorf("Fields = %+v", embed.Fields)
	}
}

func TestDiscord_RateLimitRetry(t *testing.T) {
	exec := &mockExecutor{fail: 2}
	d := newTestDiscord(exec)
	if err := d.Publish(context.Background(), feedbackEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if exec.calls != 3 {
		t.Errorf("calls = %d, want 3", exec.calls)
	}

	exec = &mockExecutor{fail: 10}
	d = newTestDiscord(exec)
	if err := d.Publish(context.Background(), feedbackEvent()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if exec.calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", exec.calls, maxRetries+1)
	}
}

func TestHexColor(t *testing.T) {
	if got := hexColor("#e53935"); got != 0xe53935 {
		t.Errorf("hexColor = %x", got)
	}
	if got := hexColor("nope"); got != 0 {
		t.Errorf("hexColor(bad) = %d, want 0", got)
	}
}

func TestRun_DeliversAndLogsFailures(t *testing.T) {
	bus := events.NewBus()
	sub, cancel := bus.Subscribe(8)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var delivered int
	sink := events.SinkFunc(func(_ context.Context, e events.Envelope) error {
		delivered++
		if e.Type == events.TypeFeedbackRevoked {
			return errors.New("webhook down")
		}
		return nil
	})

	ctx := context.Background()
	_ = bus.Publish(ctx, feedbackEvent())
	_ = bus.Publish(ctx, events.OfFeedbackRevoked(1, events.FeedbackRevoked{}))
	cancel()

	if err := Run(ctx, sub, sink, logger); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if !strings.Contains(buf.String(), "relay delivery failed") {
		t.Errorf("log = %q, want delivery failure", buf.String())
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	bus := events.NewBus()
	sub, cancel := bus.Subscribe(1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	if err := Run(ctx, sub, events.Discard, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
