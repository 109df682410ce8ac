package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/orgchart/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&MemberEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	return NewOutbox(OutboxParams{DB: db, GenID: node, Clock: fake}), db, fake
}

func TestPublishTxRollsBackWithTransaction(t *testing.T) {
	outbox, db, _ := newTestOutbox(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, outbox.PublishTx(ctx, tx, Event{MemberID: "m1", Type: EventMemberReparented}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPublishRejectsIncompleteEvent(t *testing.T) {
	outbox, _, _ := newTestOutbox(t)

	assert.ErrorIs(t, outbox.Publish(context.Background(), Event{Type: EventMemberCreated}), ErrInvalidEvent)
	assert.ErrorIs(t, outbox.Publish(context.Background(), Event{MemberID: "m1"}), ErrInvalidEvent)
}

func TestPendingAndMarkPublished(t *testing.T) {
	outbox, _, fake := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, outbox.Publish(ctx, Event{MemberID: "m1", Type: EventMemberCreated, Payload: map[string]any{"role": "staff"}}))
	fake.Advance(time.Second)
	require.NoError(t, outbox.Publish(ctx, Event{MemberID: "m1", Type: EventMemberReparented}))

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, EventMemberCreated, pending[0].EventType)
	assert.Equal(t, "staff", pending[0].Payload["role"])

	require.NoError(t, outbox.MarkPublished(ctx, []snowflake.ID{pending[0].ID}))

	pending, err = outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, EventMemberReparented, pending[0].EventType)
}

type recordingSink struct {
	delivered []string
	failOn    string
}

func (s *recordingSink) Deliver(ctx context.Context, event MemberEvent) error {
	if event.EventType == s.failOn {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, event.EventType)
	return nil
}

func TestRelayDrainStopsAtFirstFailure(t *testing.T) {
	outbox, _, fake := newTestOutbox(t)
	ctx := context.Background()

	for _, typ := range []string{EventMemberCreated, EventMemberActiveChanged, EventMemberReparented} {
		require.NoError(t, outbox.Publish(ctx, Event{MemberID: "m1", Type: typ}))
		fake.Advance(time.Second)
	}

	sink := &recordingSink{failOn: EventMemberActiveChanged}
	relay := NewRelay(outbox, sink, zaptest.NewLogger(t))

	n, err := relay.Drain(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{EventMemberCreated}, sink.delivered)

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	sink.failOn = ""
	n, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLogSinkDelivers(t *testing.T) {
	sink := NewLogSink(zaptest.NewLogger(t))
	assert.NoError(t, sink.Deliver(context.Background(), MemberEvent{ID: 1, MemberID: "m1", EventType: EventMemberCreated}))
}
