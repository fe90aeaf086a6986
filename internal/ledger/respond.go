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

// AppendResponse adds to the thread of the feedback at (AgentID, ClientID,
// FeedbackIndex). Anyone may respond, to revoked feedback too.
type AppendResponse struct {
	AgentID       uint64
	ClientID      record.Identity
	FeedbackIndex uint64
	ResponseURI   string
	ResponseHash  record.Bytes32
	Responder     record.Identity
}

// Respond appends a response at the thread's next index.
func (l *Ledger) Respond(ctx context.Context, req AppendResponse) (record.Response, error) {
	start := time.Now()
	resp, err := l.respond(ctx, req)
	l.metrics.observe("respond", start, err)
	if err != nil {
		return record.Response{}, err
	}

	l.logger.Debug("response appended", "agent_id", resp.AgentID, "client_id", resp.ClientID, "index", resp.FeedbackIndex, "response_index", resp.ResponseIndex)
	l.publish(ctx, events.OfResponseAppended(resp.CreatedAt, events.ResponseAppended{
		AgentID:       resp.AgentID,
		ClientID:      resp.ClientID,
		FeedbackIndex: resp.FeedbackIndex,
		ResponseIndex: resp.ResponseIndex,
		Responder:     resp.Responder,
		ResponseURI:   resp.ResponseURI,
		ResponseHash:  resp.ResponseHash,
	}))
	return resp, nil
}

func (l *Ledger) respond(ctx context.Context, req AppendResponse) (record.Response, error) {
	if len(req.ResponseURI) > record.MaxURILength {
		return record.Response{}, fmt.Errorf("ledger: respond: %w: %d bytes", ErrResponseURITooLong, len(req.ResponseURI))
	}

	var resp record.Response
	err := l.update(ctx, func(txn store.Txn) error {
		var fb record.Feedback
		found, err := load(txn, address.Feedback(req.AgentID, req.ClientID, req.FeedbackIndex), &fb)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}

		riKey := address.ResponseIndex(req.AgentID, req.ClientID, req.FeedbackIndex)
		ri := record.ResponseIndex{AgentID: req.AgentID, ClientID: req.ClientID, FeedbackIndex: req.FeedbackIndex}
		if _, err := load(txn, riKey, &ri); err != nil {
			return err
		}

		resp = record.Response{
			AgentID:       req.AgentID,
			ClientID:      req.ClientID,
			FeedbackIndex: req.FeedbackIndex,
			ResponseIndex: ri.NextIndex,
			Responder:     req.Responder,
			ResponseURI:   req.ResponseURI,
			ResponseHash:  req.ResponseHash,
			CreatedAt:     l.now().Unix(),
		}
		err = create(txn, address.Response(req.AgentID, req.ClientID, req.FeedbackIndex, ri.NextIndex), resp)
		if errors.Is(err, store.ErrExists) {
			// A response past the recorded end of the thread means the
			// counter and the slots disagree.
			return fmt.Errorf("response slot %d already occupied", ri.NextIndex)
		}
		if err != nil {
			return err
		}

		next, err := increment(ri.NextIndex)
		if err != nil {
			return fmt.Errorf("response index: %w", err)
		}
		ri.NextIndex = next
		return save(txn, riKey, ri)
	})
	if err != nil {
		return record.Response{}, fmt.Errorf("ledger: respond agent %d client %s index %d: %w", req.AgentID, req.ClientID, req.FeedbackIndex, err)
	}
	return resp, nil
}
