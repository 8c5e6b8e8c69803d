package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithClock(t, nil)
}

func newTestStoreWithClock(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	conn, err := db.NewTest(&Event{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewStore(conn, node, clk)
}

func TestPublishAndDrain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Publish(ctx, "collab.invite.created", map[string]string{"invite_id": "1"}))
	require.NoError(t, s.Publish(ctx, "other.topic", map[string]string{"x": "y"}))

	pending, err := s.Pending(ctx, "collab.invite.created", 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"invite_id":"1"}`, string(pending[0].Payload))

	require.NoError(t, s.MarkPublished(ctx, pending[0].ID, time.Now(), ""))
	pending, err = s.Pending(ctx, "collab.invite.created", 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkFailedStopsAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Publish(ctx, "t", map[string]int{"n": 1}))

	pending, err := s.Pending(ctx, "t", 10, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	require.NoError(t, s.MarkFailed(ctx, id, errors.New("boom")))
	pending, err = s.Pending(ctx, "t", 10, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "boom", pending[0].LastError)

	require.NoError(t, s.MarkFailed(ctx, id, errors.New("boom again")))
	pending, err = s.Pending(ctx, "t", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPublishRejectsEmptyTopic(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Publish(context.Background(), "  ", nil))
}

func TestPublishStampsInjectedClock(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	s := newTestStoreWithClock(t, clk)

	require.NoError(t, s.Publish(ctx, "t", map[string]int{"n": 2}))
	clk.Advance(-time.Minute)
	require.NoError(t, s.Publish(ctx, "t", map[string]int{"n": 1}))

	pending, err := s.Pending(ctx, "t", 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.JSONEq(t, `{"n":1}`, string(pending[0].Payload))
	assert.True(t, start.Add(-time.Minute).Equal(pending[0].CreatedAt))
	assert.True(t, start.Equal(pending[1].CreatedAt))

	tx := s.WithTx(s.db).(*Store)
	assert.Same(t, clk, tx.clock)
}
