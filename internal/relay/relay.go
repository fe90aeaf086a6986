// Package relay forwards ledger notifications to chat webhooks.
//
// Relays subscribe to the in-process event bus and deliver in their own
// goroutine, so a slow or failing webhook never holds up a ledger
// operation.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zulandar/reputation/internal/events"
)

// Color constants per notification type.
const (
	ColorFeedback = "#36a64f"
	ColorRevoked  = "#e53935"
	ColorResponse = "#2196f3"
)

// Field is one name/value line of a formatted message.
type Field struct {
	Name  string
	Value string
}

// Message is a notification rendered for chat.
type Message struct {
	Title  string
	Text   string
	Color  string
	Fields []Field
}

// Format renders an envelope for humans.
func Format(e events.Envelope) Message {
	switch {
	case e.NewFeedback != nil:
		p := e.NewFeedback
		m := Message{
			Title: fmt.Sprintf("New feedback for agent %d", p.AgentID),
			Text:  fmt.Sprintf("Score %d/100", p.Score),
			Color: ColorFeedback,
			Fields: []Field{
				{"Client", short(p.ClientID.String())},
				{"Index", fmt.Sprintf("%d", p.FeedbackIndex)},
			},
		}
		if p.FileURI != "" {
			m.Fields = append(m.Fields, Field{"File", p.FileURI})
		}
		return m
	case e.FeedbackRevoked != nil:
		p := e.FeedbackRevoked
		return Message{
			Title: fmt.Sprintf("Feedback revoked for agent %d", p.AgentID),
			Text:  fmt.Sprintf("Client %s revoked feedback #%d", short(p.ClientID.String()), p.FeedbackIndex),
			Color: ColorRevoked,
		}
	case e.ResponseAppended != nil:
		p := e.ResponseAppended
		m := Message{
			Title: fmt.Sprintf("Response on agent %d feedback", p.AgentID),
			Text:  fmt.Sprintf("%s replied to %s #%d", short(p.Responder.String()), short(p.ClientID.String()), p.FeedbackIndex),
			Color: ColorResponse,
			Fields: []Field{
				{"Response", fmt.Sprintf("%d", p.ResponseIndex)},
			},
		}
		if p.ResponseURI != "" {
			m.Fields = append(m.Fields, Field{"URI", p.ResponseURI})
		}
		return m
	}
	return Message{Title: string(e.Type), Color: ColorResponse}
}

// short abbreviates a 64-character hex identity.
func short(hex string) string {
	if len(hex) <= 12 {
		return hex
	}
	return hex[:6] + "…" + hex[len(hex)-4:]
}

// Filter passes only the listed event types to Sink. An empty list passes
// everything.
type Filter struct {
	Types []string
	Sink  events.Sink
}

func (f Filter) Publish(ctx context.Context, e events.Envelope) error {
	if !f.allows(e.Type) {
		return nil
	}
	return f.Sink.Publish(ctx, e)
}

func (f Filter) allows(t events.Type) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, name := range f.Types {
		if strings.EqualFold(name, string(t)) {
			return true
		}
	}
	return false
}

// Run delivers envelopes from sub to sink until ctx is done or sub closes.
// Delivery errors are logged, not returned.
func Run(ctx context.Context, sub <-chan events.Envelope, sink events.Sink, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			if err := sink.Publish(ctx, e); err != nil {
				logger.Warn("relay delivery failed", "id", e.ID, "type", string(e.Type), "error", err)
			}
		}
	}
}
