package acceptance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/eventcrew/internal/clock"
)

const handoffKeyPrefix = "eventcrew:collab:pending_token:"

// Handoff holds at most one pending invite token per client context across
// a sign-in redirect.
type Handoff interface {
	Set(ctx context.Context, clientID, token string) error
	// Consume returns the token and clears the slot in one step.
	Consume(ctx context.Context, clientID string) (string, bool, error)
	Clear(ctx context.Context, clientID string) error
}

// NewHandoff uses Redis when a client is configured and process memory otherwise.
func NewHandoff(cfg Config, client *redis.Client, clk clock.Clock) Handoff {
	cfg = cfg.withDefaults()
	if client != nil {
		return NewRedisHandoff(client, cfg.MarkerTTL)
	}
	return NewMemoryHandoff(clk, cfg.MarkerTTL)
}

type MemoryHandoff struct {
	mu    sync.Mutex
	clock clock.Clock
	ttl   time.Duration
	slots map[string]marker
}

type marker struct {
	token     string
	expiresAt time.Time
}

func NewMemoryHandoff(clk clock.Clock, ttl time.Duration) *MemoryHandoff {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultMarkerTTL
	}
	return &MemoryHandoff{clock: clk, ttl: ttl, slots: make(map[string]marker)}
}

func (h *MemoryHandoff) Set(ctx context.Context, clientID, token string) error {
	id, err := handoffClient(clientID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("empty pending token")
	}
	h.mu.Lock()
	h.slots[id] = marker{token: token, expiresAt: h.clock.Now().Add(h.ttl)}
	h.mu.Unlock()
	return nil
}

func (h *MemoryHandoff) Consume(ctx context.Context, clientID string) (string, bool, error) {
	id, err := handoffClient(clientID)
	if err != nil {
		return "", false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.slots[id]
	if !ok {
		return "", false, nil
	}
	delete(h.slots, id)
	if !h.clock.Now().Before(m.expiresAt) {
		return "", false, nil
	}
	return m.token, true, nil
}

func (h *MemoryHandoff) Clear(ctx context.Context, clientID string) error {
	id, err := handoffClient(clientID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.slots, id)
	h.mu.Unlock()
	return nil
}

type RedisHandoff struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHandoff(client *redis.Client, ttl time.Duration) *RedisHandoff {
	if ttl <= 0 {
		ttl = DefaultMarkerTTL
	}
	return &RedisHandoff{client: client, ttl: ttl}
}

func (h *RedisHandoff) Set(ctx context.Context, clientID, token string) error {
	id, err := handoffClient(clientID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("empty pending token")
	}
	return h.client.Set(ctx, handoffKeyPrefix+id, token, h.ttl).Err()
}

func (h *RedisHandoff) Consume(ctx context.Context, clientID string) (string, bool, error) {
	id, err := handoffClient(clientID)
	if err != nil {
		return "", false, err
	}
	token, err := h.client.GetDel(ctx, handoffKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, token != "", nil
}

func (h *RedisHandoff) Clear(ctx context.Context, clientID string) error {
	id, err := handoffClient(clientID)
	if err != nil {
		return err
	}
	return h.client.Del(ctx, handoffKeyPrefix+id).Err()
}

func handoffClient(clientID string) (string, error) {
	id := strings.TrimSpace(clientID)
	if id == "" {
		return "", ErrInvalidClient
	}
	return id, nil
}
