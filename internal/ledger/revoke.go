package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/reputation/internal/address"
	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
)

// RevokeFeedback identifies the feedback to revoke and who is asking.
// Only the author (Caller == ClientID) may revoke.
type RevokeFeedback struct {
	AgentID       uint64
	ClientID      record.Identity
	FeedbackIndex uint64
	Caller        record.Identity
}

// Revoke marks feedback revoked and removes its score from the aggregate.
// The record stays; its index is never reused.
func (l *Ledger) Revoke(ctx context.Context, req RevokeFeedback) (record.Feedback, error) {
	start := time.Now()
	fb, at, err := l.revoke(ctx, req)
	l.metrics.observe("revoke", start, err)
	if err != nil {
		return record.Feedback{}, err
	}

	l.logger.Debug("feedback revoked", "agent_id", fb.AgentID, "client_id", fb.ClientID, "index", fb.FeedbackIndex)
	l.publish(ctx, events.OfFeedbackRevoked(at, events.FeedbackRevoked{
		AgentID:       fb.AgentID,
		ClientID:      fb.ClientID,
		FeedbackIndex: fb.FeedbackIndex,
	}))
	return fb, nil
}

// revoke returns the revoked record and the time written to the aggregate.
func (l *Ledger) revoke(ctx context.Context, req RevokeFeedback) (record.Feedback, int64, error) {
	var (
		fb  record.Feedback
		now int64
	)
	err := l.update(ctx, func(txn store.Txn) error {
		now = l.now().Unix()

		fbKey := address.Feedback(req.AgentID, req.ClientID, req.FeedbackIndex)
		found, err := load(txn, fbKey, &fb)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if fb.ClientID != req.Caller {
			return ErrUnauthorized
		}
		if fb.IsRevoked {
			return ErrAlreadyRevoked
		}

		fb.IsRevoked = true
		if err := save(txn, fbKey, fb); err != nil {
			return err
		}

		repKey := address.Reputation(req.AgentID)
		rep := record.Reputation{AgentID: req.AgentID}
		if _, err := load(txn, repKey, &rep); err != nil {
			return err
		}
		if err := removeScore(&rep, fb.Score, now); err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
		return save(txn, repKey, rep)
	})
	if err != nil {
		return record.Feedback{}, 0, fmt.Errorf("ledger: revoke agent %d client %s index %d: %w", req.AgentID, req.ClientID, req.FeedbackIndex, err)
	}
	return fb, now, nil
}
