package ledger

import (
	"context"
	"fmt"

	"github.com/zulandar/reputation/internal/address"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
)

// Feedback returns one feedback record, revoked or not.
func (l *Ledger) Feedback(ctx context.Context, agentID uint64, client record.Identity, index uint64) (record.Feedback, error) {
	var fb record.Feedback
	err := l.store.View(ctx, func(r store.Reader) error {
		found, err := load(r, address.Feedback(agentID, client, index), &fb)
		if err == nil && !found {
			err = ErrNotFound
		}
		return err
	})
	if err != nil {
		return record.Feedback{}, fmt.Errorf("ledger: feedback agent %d client %s index %d: %w", agentID, client, index, err)
	}
	return fb, nil
}

// Reputation returns the agent's aggregate. An agent without feedback has
// the zero aggregate.
func (l *Ledger) Reputation(ctx context.Context, agentID uint64) (record.Reputation, error) {
	rep := record.Reputation{AgentID: agentID}
	err := l.store.View(ctx, func(r store.Reader) error {
		_, err := load(r, address.Reputation(agentID), &rep)
		return err
	})
	if err != nil {
		return record.Reputation{}, fmt.Errorf("ledger: reputation agent %d: %w", agentID, err)
	}
	return rep, nil
}

// NextFeedbackIndex returns the index the client's next submission for the
// agent must use.
func (l *Ledger) NextFeedbackIndex(ctx context.Context, agentID uint64, client record.Identity) (uint64, error) {
	var ci record.ClientIndex
	err := l.store.View(ctx, func(r store.Reader) error {
		_, err := load(r, address.ClientIndex(agentID, client), &ci)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: next index agent %d client %s: %w", agentID, client, err)
	}
	return ci.NextIndex, nil
}

// ResponseCount returns the length of a feedback item's response thread.
func (l *Ledger) ResponseCount(ctx context.Context, agentID uint64, client record.Identity, index uint64) (uint64, error) {
	var ri record.ResponseIndex
	err := l.store.View(ctx, func(r store.Reader) error {
		_, err := load(r, address.ResponseIndex(agentID, client, index), &ri)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: response count agent %d client %s index %d: %w", agentID, client, index, err)
	}
	return ri.NextIndex, nil
}

// Response returns one response from a thread.
func (l *Ledger) Response(ctx context.Context, agentID uint64, client record.Identity, index, responseIndex uint64) (record.Response, error) {
	var resp record.Response
	err := l.store.View(ctx, func(r store.Reader) error {
		found, err := load(r, address.Response(agentID, client, index, responseIndex), &resp)
		if err == nil && !found {
			err = ErrResponseNotFound
		}
		return err
	})
	if err != nil {
		return record.Response{}, fmt.Errorf("ledger: response %d of agent %d client %s index %d: %w", responseIndex, agentID, client, index, err)
	}
	return resp, nil
}

// Responses returns a whole thread in submission order, read from one
// snapshot. A missing feedback item yields ErrNotFound.
func (l *Ledger) Responses(ctx context.Context, agentID uint64, client record.Identity, index uint64) ([]record.Response, error) {
	var out []record.Response
	err := l.store.View(ctx, func(r store.Reader) error {
		var fb record.Feedback
		found, err := load(r, address.Feedback(agentID, client, index), &fb)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}

		var ri record.ResponseIndex
		if _, err := load(r, address.ResponseIndex(agentID, client, index), &ri); err != nil {
			return err
		}
		out = make([]record.Response, 0, min(ri.NextIndex, 256))
		for i := uint64(0); i < ri.NextIndex; i++ {
			var resp record.Response
			found, err := load(r, address.Response(agentID, client, index, i), &resp)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("response %d missing below thread end %d", i, ri.NextIndex)
			}
			out = append(out, resp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: responses agent %d client %s index %d: %w", agentID, client, index, err)
	}
	return out, nil
}
