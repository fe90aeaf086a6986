package events

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gorm.io/gorm"

	"github.com/zulandar/reputation/internal/models"
)

// encMode produces deterministic CBOR so a replayed payload is byte-for-byte
// what was stored.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Outbox appends envelopes to the events table, where indexers can replay
// them in commit order.
type Outbox struct {
	db *gorm.DB
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// Stored is an outbox row: its sequence number and decoded envelope.
type Stored struct {
	Seq      uint64   `json:"seq"`
	Envelope Envelope `json:"envelope"`
}

func (o *Outbox) Publish(ctx context.Context, e Envelope) error {
	payload, err := encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", e.ID, err)
	}
	row := models.Event{
		ID:        e.ID,
		Type:      string(e.Type),
		AgentID:   models.AgentKey(e.AgentID()),
		Payload:   payload,
		CreatedAt: time.Unix(e.At, 0).UTC(),
	}
	if err := o.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("events: append %s: %w", e.ID, err)
	}
	return nil
}

// Replay returns up to limit envelopes with a sequence number greater than
// after, oldest first.
func (o *Outbox) Replay(ctx context.Context, after uint64, limit int) ([]Stored, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	if after >= math.MaxInt64 {
		return []Stored{}, nil
	}
	var rows []models.Event
	if err := o.db.WithContext(ctx).Where("seq > ?", after).Order("seq ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("events: replay after %d: %w", after, err)
	}
	out := make([]Stored, 0, len(rows))
	for _, row := range rows {
		var e Envelope
		if err := cbor.Unmarshal(row.Payload, &e); err != nil {
			return nil, fmt.Errorf("events: decode seq %d: %w", row.Seq, err)
		}
		out = append(out, Stored{Seq: row.Seq, Envelope: e})
	}
	return out, nil
}
