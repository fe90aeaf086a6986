// Package events carries ledger notifications to downstream consumers.
//
// The ledger publishes one Envelope per committed operation. Publishing
// happens after commit and is best-effort: a failing sink never undoes a
// committed write.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zulandar/reputation/internal/record"
)

// Type names a notification.
type Type string

const (
	TypeNewFeedback      Type = "new_feedback"
	TypeFeedbackRevoked  Type = "feedback_revoked"
	TypeResponseAppended Type = "response_appended"
)

// NewFeedback is emitted when feedback is submitted.
type NewFeedback struct {
	AgentID       uint64          `json:"agent_id"`
	ClientID      record.Identity `json:"client_id"`
	FeedbackIndex uint64          `json:"feedback_index"`
	Score         uint8           `json:"score"`
	Tag1          record.Bytes32  `json:"tag1"`
	Tag2          record.Bytes32  `json:"tag2"`
	FileURI       string          `json:"file_uri"`
	FileHash      record.Bytes32  `json:"file_hash"`
}

// FeedbackRevoked is emitted when the author revokes feedback.
type FeedbackRevoked struct {
	AgentID       uint64          `json:"agent_id"`
	ClientID      record.Identity `json:"client_id"`
	FeedbackIndex uint64          `json:"feedback_index"`
}

// ResponseAppended is emitted when a response joins a feedback thread.
type ResponseAppended struct {
	AgentID       uint64          `json:"agent_id"`
	ClientID      record.Identity `json:"client_id"`
	FeedbackIndex uint64          `json:"feedback_index"`
	ResponseIndex uint64          `json:"response_index"`
	Responder     record.Identity `json:"responder"`
	ResponseURI   string          `json:"response_uri"`
	ResponseHash  record.Bytes32  `json:"response_hash"`
}

// Envelope wraps exactly one payload with an id, its type and the Unix time
// of the committing operation.
type Envelope struct {
	ID               string            `json:"id"`
	Type             Type              `json:"type"`
	At               int64             `json:"at"`
	NewFeedback      *NewFeedback      `json:"new_feedback,omitempty"`
	FeedbackRevoked  *FeedbackRevoked  `json:"feedback_revoked,omitempty"`
	ResponseAppended *ResponseAppended `json:"response_appended,omitempty"`
}

func newEnvelope(t Type, at int64) Envelope {
	return Envelope{ID: uuid.NewString(), Type: t, At: at}
}

// OfNewFeedback wraps a NewFeedback payload.
func OfNewFeedback(at int64, p NewFeedback) Envelope {
	e := newEnvelope(TypeNewFeedback, at)
	e.NewFeedback = &p
	return e
}

// OfFeedbackRevoked wraps a FeedbackRevoked payload.
func OfFeedbackRevoked(at int64, p FeedbackRevoked) Envelope {
	e := newEnvelope(TypeFeedbackRevoked, at)
	e.FeedbackRevoked = &p
	return e
}

// OfResponseAppended wraps a ResponseAppended payload.
func OfResponseAppended(at int64, p ResponseAppended) Envelope {
	e := newEnvelope(TypeResponseAppended, at)
	e.ResponseAppended = &p
	return e
}

// AgentID returns the agent the payload concerns.
func (e Envelope) AgentID() uint64 {
	switch {
	case e.NewFeedback != nil:
		return e.NewFeedback.AgentID
	case e.FeedbackRevoked != nil:
		return e.FeedbackRevoked.AgentID
	case e.ResponseAppended != nil:
		return e.ResponseAppended.AgentID
	}
	return 0
}

// Sink receives published envelopes.
type Sink interface {
	Publish(ctx context.Context, e Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Envelope) error

func (f SinkFunc) Publish(ctx context.Context, e Envelope) error { return f(ctx, e) }

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every envelope.
var Discard Sink = SinkFunc(func(context.Context, Envelope) error { return nil })

// Log writes one structured line per envelope.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Publish(ctx context.Context, e Envelope) error {
	l.Logger.InfoContext(ctx, "ledger event",
		"id", e.ID,
		"type", string(e.Type),
		"agent_id", e.AgentID(),
		"at", e.At,
	)
	return nil
}
