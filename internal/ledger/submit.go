package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/reputation/internal/address"
	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
)

// SubmitFeedback is a feedback submission. ClientID is the caller.
// FeedbackIndex must be the client's next index for the agent (see
// NextFeedbackIndex). Score is an int so out-of-range input, negative
// included, is rejected rather than truncated.
type SubmitFeedback struct {
	AgentID       uint64
	ClientID      record.Identity
	FeedbackIndex uint64
	Score         int
	Tag1          record.Bytes32
	Tag2          record.Bytes32
	FileURI       string
	FileHash      record.Bytes32
	// Auth is required only when the ledger enforces feedback auth.
	Auth *FeedbackAuth
}

// Submit records feedback and folds its score into the agent's aggregate in
// one transaction.
func (l *Ledger) Submit(ctx context.Context, req SubmitFeedback) (record.Feedback, error) {
	start := time.Now()
	fb, err := l.submit(ctx, req)
	l.metrics.observe("submit", start, err)
	if err != nil {
		return record.Feedback{}, err
	}

	l.logger.Debug("feedback submitted", "agent_id", fb.AgentID, "client_id", fb.ClientID, "index", fb.FeedbackIndex, "score", fb.Score)
	l.publish(ctx, events.OfNewFeedback(fb.CreatedAt, events.NewFeedback{
		AgentID:       fb.AgentID,
		ClientID:      fb.ClientID,
		FeedbackIndex: fb.FeedbackIndex,
		Score:         fb.Score,
		Tag1:          fb.Tag1,
		Tag2:          fb.Tag2,
		FileURI:       fb.FileURI,
		FileHash:      fb.FileHash,
	}))
	return fb, nil
}

func (l *Ledger) submit(ctx context.Context, req SubmitFeedback) (record.Feedback, error) {
	exists, err := l.oracle.AgentExists(ctx, req.AgentID)
	if err != nil {
		return record.Feedback{}, fmt.Errorf("ledger: check agent %d: %w", req.AgentID, err)
	}
	if !exists {
		return record.Feedback{}, fmt.Errorf("ledger: submit: %w: %d", ErrAgentNotFound, req.AgentID)
	}
	if req.Score < 0 || req.Score > 100 {
		return record.Feedback{}, fmt.Errorf("ledger: submit: %w: %d", ErrInvalidScore, req.Score)
	}
	if len(req.FileURI) > record.MaxURILength {
		return record.Feedback{}, fmt.Errorf("ledger: submit: %w: %d bytes", ErrURITooLong, len(req.FileURI))
	}
	if l.requireAuth {
		if err := l.verifyAuth(ctx, req, l.now().Unix()); err != nil {
			return record.Feedback{}, fmt.Errorf("ledger: submit: %w", err)
		}
	}

	var fb record.Feedback
	err = l.update(ctx, func(txn store.Txn) error {
		now := l.now().Unix()

		ciKey := address.ClientIndex(req.AgentID, req.ClientID)
		ci := record.ClientIndex{AgentID: req.AgentID, ClientID: req.ClientID}
		if _, err := load(txn, ciKey, &ci); err != nil {
			return err
		}
		if req.FeedbackIndex != ci.NextIndex {
			return fmt.Errorf("%w: got %d, next is %d", ErrWrongIndex, req.FeedbackIndex, ci.NextIndex)
		}

		fb = record.Feedback{
			AgentID:       req.AgentID,
			ClientID:      req.ClientID,
			FeedbackIndex: req.FeedbackIndex,
			Score:         uint8(req.Score),
			Tag1:          req.Tag1,
			Tag2:          req.Tag2,
			FileURI:       req.FileURI,
			FileHash:      req.FileHash,
			CreatedAt:     now,
		}
		err := create(txn, address.Feedback(req.AgentID, req.ClientID, req.FeedbackIndex), fb)
		if errors.Is(err, store.ErrExists) {
			return fmt.Errorf("%w: %d", ErrDuplicateFeedback, req.FeedbackIndex)
		}
		if err != nil {
			return err
		}

		next, err := increment(ci.NextIndex)
		if err != nil {
			return fmt.Errorf("client index: %w", err)
		}
		ci.NextIndex = next
		if err := save(txn, ciKey, ci); err != nil {
			return err
		}

		repKey := address.Reputation(req.AgentID)
		rep := record.Reputation{AgentID: req.AgentID}
		if _, err := load(txn, repKey, &rep); err != nil {
			return err
		}
		if err := addScore(&rep, fb.Score, now); err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
		return save(txn, repKey, rep)
	})
	if err != nil {
		return record.Feedback{}, fmt.Errorf("ledger: submit agent %d client %s index %d: %w", req.AgentID, req.ClientID, req.FeedbackIndex, err)
	}
	return fb, nil
}
