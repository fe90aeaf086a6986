package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/reputation/internal/db"
	"github.com/zulandar/reputation/internal/models"
	"github.com/zulandar/reputation/internal/record"
)

func sampleFeedback() Envelope {
	return OfNewFeedback(1700000000, NewFeedback{
		AgentID:       7,
		ClientID:      record.Identity{0xcc},
		FeedbackIndex: 2,
		Score:         90,
		Tag1:          record.Bytes32{1},
		FileURI:       "ipfs://fb",
		FileHash:      record.Bytes32{9},
	})
}

func TestEnvelope_Constructors(t *testing.T) {
	fb := sampleFeedback()
	assert.Equal(t, TypeNewFeedback, fb.Type)
	assert.Len(t, fb.ID, 36)
	assert.Equal(t, uint64(7), fb.AgentID())

	rv := OfFeedbackRevoked(1, FeedbackRevoked{AgentID: 8})
	assert.Equal(t, TypeFeedbackRevoked, rv.Type)
	assert.Equal(t, uint64(8), rv.AgentID())
	assert.Nil(t, rv.NewFeedback)

	ra := OfResponseAppended(1, ResponseAppended{AgentID: 9, ResponseIndex: 3})
	assert.Equal(t, TypeResponseAppended, ra.Type)
	assert.Equal(t, uint64(9), ra.AgentID())

	assert.NotEqual(t, fb.ID, sampleFeedback().ID)
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()
	assert.Equal(t, 2, bus.Subscribers())

	e := sampleFeedback()
	require.NoError(t, bus.Publish(context.Background(), e))
	assert.Equal(t, e.ID, (<-a).ID)
	assert.Equal(t, e.ID, (<-b).ID)
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, sampleFeedback()))
	require.NoError(t, bus.Publish(ctx, sampleFeedback()))

	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())
	assert.NoError(t, bus.Publish(context.Background(), sampleFeedback()))
}

func TestMulti_JoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	var delivered int
	m := Multi{
		SinkFunc(func(context.Context, Envelope) error { return errA }),
		SinkFunc(func(context.Context, Envelope) error { delivered++; return nil }),
	}
	err := m.Publish(context.Background(), sampleFeedback())
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 1, delivered)
}

func TestLog_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	sink := Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sink.Publish(context.Background(), sampleFeedback()))
	out := buf.String()
	assert.Contains(t, out, "type=new_feedback")
	assert.Contains(t, out, "agent_id=7")
}

func TestOutbox_PublishReplay(t *testing.T) {
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	outbox := NewOutbox(gdb)
	ctx := context.Background()

	first := sampleFeedback()
	second := OfFeedbackRevoked(1700000100, FeedbackRevoked{AgentID: 7, ClientID: record.Identity{0xcc}, FeedbackIndex: 2})
	third := OfResponseAppended(1700000200, ResponseAppended{AgentID: 7, ResponseURI: "ipfs://r", Responder: record.Identity{0xdd}})
	for _, e := range []Envelope{first, second, third} {
		require.NoError(t, outbox.Publish(ctx, e))
	}

	all, err := outbox.Replay(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first, all[0].Envelope)
	assert.Equal(t, second, all[1].Envelope)
	assert.Equal(t, third, all[2].Envelope)
	assert.Less(t, all[0].Seq, all[1].Seq)

	rest, err := outbox.Replay(ctx, all[0].Seq, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, second.ID, rest[0].Envelope.ID)

	// Duplicate ids are rejected by the unique index.
	assert.Error(t, outbox.Publish(ctx, first))
}

func TestOutbox_HighBitAgentID(t *testing.T) {
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	outbox := NewOutbox(gdb)
	ctx := context.Background()

	e := OfFeedbackRevoked(1700000000, FeedbackRevoked{AgentID: math.MaxUint64, FeedbackIndex: 1})
	require.NoError(t, outbox.Publish(ctx, e))

	var row models.Event
	require.NoError(t, gdb.Where("agent_id = ?", models.AgentKey(math.MaxUint64)).Take(&row).Error)
	assert.Equal(t, e.ID, row.ID)

	all, err := outbox.Replay(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint64(math.MaxUint64), all[0].Envelope.AgentID())

	none, err := outbox.Replay(ctx, math.MaxUint64, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
