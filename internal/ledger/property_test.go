package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zulandar/reputation/internal/identity"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
)

// model is the reference the ledger is checked against: per client, the
// scores in index order and whether each is revoked.
type model struct {
	scores  map[record.Identity][]uint8
	revoked map[record.Identity][]bool
}

// applyOp decodes op into a submit or revoke by one of three clients and
// runs it against both the ledger and the model. It reports false when the
// two disagree on the outcome.
func applyOp(ctx context.Context, l *Ledger, m *model, op int) bool {
	client := record.Identity{byte(op%3 + 1)}
	arg := op / 6
	if op%2 == 0 {
		score := arg%111 - 5
		index := uint64(len(m.scores[client]))
		_, err := l.Submit(ctx, SubmitFeedback{AgentID: agent, ClientID: client, FeedbackIndex: index, Score: score})
		if score < 0 || score > 100 {
			return errors.Is(err, ErrInvalidScore)
		}
		if err != nil {
			return false
		}
		m.scores[client] = append(m.scores[client], uint8(score))
		m.revoked[client] = append(m.revoked[client], false)
		return true
	}

	index := arg % 8
	_, err := l.Revoke(ctx, RevokeFeedback{AgentID: agent, ClientID: client, FeedbackIndex: uint64(index), Caller: client})
	switch {
	case index >= len(m.scores[client]):
		return errors.Is(err, ErrNotFound)
	case m.revoked[client][index]:
		return errors.Is(err, ErrAlreadyRevoked)
	case err != nil:
		return false
	}
	m.revoked[client][index] = true
	return true
}

func TestProperty_AggregateMatchesRecords(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("aggregate equals the non-revoked feedback and indices are gap-free", prop.ForAll(
		func(ops []int) bool {
			ctx := context.Background()
			l := New(store.NewMemory(), identity.Static{agent: owner})
			m := &model{scores: map[record.Identity][]uint8{}, revoked: map[record.Identity][]bool{}}

			for _, op := range ops {
				if !applyOp(ctx, l, m, op) {
					return false
				}
			}

			var count, sum uint64
			for client, scores := range m.scores {
				next, err := l.NextFeedbackIndex(ctx, agent, client)
				if err != nil || next != uint64(len(scores)) {
					return false
				}
				for i, score := range scores {
					fb, err := l.Feedback(ctx, agent, client, uint64(i))
					if err != nil || fb.Score != score || fb.IsRevoked != m.revoked[client][i] {
						return false
					}
					if !fb.IsRevoked {
						count++
						sum += uint64(score)
					}
				}
			}

			rep, err := l.Reputation(ctx, agent)
			if err != nil {
				return false
			}
			return rep.TotalFeedbacks == count &&
				rep.TotalScoreSum == sum &&
				rep.AverageScore == average(sum, count)
		},
		gen.SliceOf(gen.IntRange(0, 5999)),
	))

	properties.TestingRun(t)
}

func TestProperty_ResponsesAnyRevocationState(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("responses append in order whether or not feedback is revoked", prop.ForAll(
		func(revoke bool, n int) bool {
			ctx := context.Background()
			l := New(store.NewMemory(), identity.Static{agent: owner})
			if _, err := l.Submit(ctx, SubmitFeedback{AgentID: agent, ClientID: clientC, Score: 70}); err != nil {
				return false
			}
			if revoke {
				if _, err := l.Revoke(ctx, RevokeFeedback{AgentID: agent, ClientID: clientC, Caller: clientC}); err != nil {
					return false
				}
			}
			for i := 0; i < n; i++ {
				resp, err := l.Respond(ctx, AppendResponse{AgentID: agent, ClientID: clientC, Responder: record.Identity{byte(i)}})
				if err != nil || resp.ResponseIndex != uint64(i) {
					return false
				}
			}
			thread, err := l.Responses(ctx, agent, clientC, 0)
			if err != nil || len(thread) != n {
				return false
			}
			for i, resp := range thread {
				if resp.ResponseIndex != uint64(i) || resp.Responder != (record.Identity{byte(i)}) {
					return false
				}
			}
			return true
		},
		gen.Bool(),
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}
