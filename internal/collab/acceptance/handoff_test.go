package acceptance

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHandoffHoldsOneToken(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandoff(clock.NewFakeClock(time.Now()), time.Hour)

	require.NoError(t, h.Set(ctx, "c", "first"))
	require.NoError(t, h.Set(ctx, "c", "second"))

	token, ok, err := h.Consume(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", token)

	_, ok, err = h.Consume(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryHandoffExpires(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Now())
	h := NewMemoryHandoff(clk, time.Minute)

	require.NoError(t, h.Set(ctx, "c", "tok"))
	clk.Advance(time.Minute)
	_, ok, err := h.Consume(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryHandoffClearAndValidation(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHandoff(nil, 0)

	require.NoError(t, h.Set(ctx, "c", "tok"))
	require.NoError(t, h.Clear(ctx, "c"))
	_, ok := h.peek("c")
	assert.False(t, ok)

	assert.ErrorIs(t, h.Set(ctx, " ", "tok"), ErrInvalidClient)
	assert.Error(t, h.Set(ctx, "c", ""))
}

func TestNewHandoffWithoutRedisUsesMemory(t *testing.T) {
	h := NewHandoff(Config{}, nil, clock.SystemClock{})
	_, ok := h.(*MemoryHandoff)
	assert.True(t, ok)
}

// peek reads the slot without consuming it.
func (h *MemoryHandoff) peek(clientID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.slots[clientID]
	if !ok || !h.clock.Now().Before(m.expiresAt) {
		return "", false
	}
	return m.token, true
}
