package identity

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTracksSessionAndPublishes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	h := NewHub(clock.NewFakeClock(now))

	sub, err := h.Subscribe("client-1")
	require.NoError(t, err)
	defer sub.Close()
	other, err := h.Subscribe("client-2")
	require.NoError(t, err)
	defer other.Close()

	_, err = h.Apply("client-1", "user-1", SignedIn)
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, SignedIn, ev.Type)
		require.NotNil(t, ev.Session)
		assert.Equal(t, "user-1", ev.Session.UserID)
		assert.True(t, ev.Session.SignedInAt.Equal(now))
	case <-time.After(time.Second):
		t.Fatal("expected sign-in event")
	}
	select {
	case <-other.Events():
		t.Fatal("other client must not receive the event")
	default:
	}

	session, err := h.CurrentSession(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "user-1", session.UserID)

	_, err = h.Apply("client-1", "", SignedOut)
	require.NoError(t, err)
	session, err = h.CurrentSession(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestApplyValidation(t *testing.T) {
	h := NewHub(nil)

	_, err := h.Apply("", "user", SignedIn)
	assert.ErrorIs(t, err, ErrInvalidClient)
	_, err = h.Apply("c", " ", SignedIn)
	assert.ErrorIs(t, err, ErrInvalidUser)
	_, err = h.Apply("c", "u", EventType("TOKEN_REFRESHED"))
	assert.ErrorIs(t, err, ErrInvalidEventType)
}

func TestParseEventType(t *testing.T) {
	typ, err := ParseEventType(" signed_in ")
	require.NoError(t, err)
	assert.Equal(t, SignedIn, typ)

	_, err = ParseEventType("nope")
	assert.ErrorIs(t, err, ErrInvalidEventType)
}

func TestCloseReleasesSubscription(t *testing.T) {
	h := NewHub(nil)
	sub, err := h.Subscribe("client-1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.subscribers("client-1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.subscribers("client-1"))

	_, err = h.Apply("client-1", "user-1", SignedIn)
	require.NoError(t, err)
	select {
	case <-sub.Events():
		t.Fatal("closed subscription received an event")
	default:
	}
}

func TestCurrentSessionRespectsContext(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.CurrentSession(ctx, "client-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func (h *Hub) subscribers(clientID string) int {
	h.mu.RLock()
	stream := h.streams[clientID]
	h.mu.RUnlock()
	if stream == nil {
		return 0
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return len(stream.subs)
}

func TestSessionLapsesAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	h := NewHubWithTTL(clk, time.Hour)

	_, err := h.Apply("client-1", "user-1", SignedIn)
	require.NoError(t, err)

	clk.Advance(59 * time.Minute)
	session, err := h.CurrentSession(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, session)

	_, err = h.Apply("client-1", "user-1", SignedIn)
	require.NoError(t, err)
	clk.Advance(30 * time.Minute)
	session, err = h.CurrentSession(ctx, "client-1")
	require.NoError(t, err)
	assert.NotNil(t, session)

	clk.Advance(30 * time.Minute)
	session, err = h.CurrentSession(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Empty(t, h.sessions)
}

func TestSweepDropsExpiredSessions(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	h := NewHubWithTTL(clk, time.Hour)

	_, err := h.Apply("client-1", "user-1", SignedIn)
	require.NoError(t, err)
	clk.Advance(45 * time.Minute)
	_, err = h.Apply("client-2", "user-2", SignedIn)
	require.NoError(t, err)

	clk.Advance(20 * time.Minute)
	assert.Equal(t, 1, h.Sweep())
	assert.Equal(t, 0, h.Sweep())

	session, err := h.CurrentSession(context.Background(), "client-2")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "user-2", session.UserID)
}

func TestStartStopSweeper(t *testing.T) {
	h := NewHub(nil)
	h.Start()
	h.Stop()
	h.Stop()
}
