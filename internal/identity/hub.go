// Package identity tracks the signed-in session of each client context and
// fans session changes out to subscribers.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(newHubFromConfig),
	fx.Invoke(registerLifecycle),
)

type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

const (
	DefaultSubscriberBuffer = 16
	DefaultSessionTTL       = 12 * time.Hour
)

var (
	ErrHubUnavailable   = errors.New("hub_unavailable")
	ErrInvalidClient    = errors.New("invalid_client_id")
	ErrInvalidUser      = errors.New("invalid_user_id")
	ErrInvalidEventType = errors.New("invalid_event_type")
)

type Session struct {
	UserID     string    `json:"user_id"`
	SignedInAt time.Time `json:"signed_in_at"`
}

// Event is a session change for one client context.
type Event struct {
	ClientID string    `json:"client_id"`
	Type     EventType `json:"type"`
	Session  *Session  `json:"session,omitempty"`
}

type Hub struct {
	mu               sync.RWMutex
	clock            clock.Clock
	sessions         map[string]Session
	streams          map[string]*stream
	subscriberBuffer int
	sessionTTL       time.Duration

	stop chan struct{}
	done chan struct{}
}

type stream struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub      *Hub
	clientID string
	id       uint64
	ch       chan Event
	once     sync.Once
}

func NewHub(clk clock.Clock) *Hub {
	return NewHubWithTTL(clk, DefaultSessionTTL)
}

// NewHubWithTTL returns a hub whose sessions lapse ttl after sign-in unless
// refreshed by another SIGNED_IN.
func NewHubWithTTL(clk clock.Clock, ttl time.Duration) *Hub {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Hub{
		clock:            clk,
		sessions:         make(map[string]Session),
		streams:          make(map[string]*stream),
		subscriberBuffer: DefaultSubscriberBuffer,
		sessionTTL:       ttl,
	}
}

func newHubFromConfig(cfg config.Config, clk clock.Clock) *Hub {
	return NewHubWithTTL(clk, cfg.SessionTTL)
}

func registerLifecycle(lc fx.Lifecycle, h *Hub) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			h.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			h.Stop()
			return nil
		},
	})
}

func ParseEventType(raw string) (EventType, error) {
	switch EventType(strings.ToUpper(strings.TrimSpace(raw))) {
	case SignedIn:
		return SignedIn, nil
	case SignedOut:
		return SignedOut, nil
	default:
		return "", ErrInvalidEventType
	}
}

// CurrentSession returns the client's session, or nil when signed out.
func (h *Hub) CurrentSession(ctx context.Context, clientID string) (*Session, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return nil, nil
	}

	h.mu.RLock()
	session, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if h.expired(session) {
		h.mu.Lock()
		if current, ok := h.sessions[id]; ok && h.expired(current) {
			delete(h.sessions, id)
		}
		h.mu.Unlock()
		return nil, nil
	}
	return &session, nil
}

func (h *Hub) expired(s Session) bool {
	return !h.clock.Now().Before(s.SignedInAt.Add(h.sessionTTL))
}

// Sweep drops sessions past their TTL and returns how many were removed.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, s := range h.sessions {
		if h.expired(s) {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

// Start runs the session sweeper until Stop.
func (h *Hub) Start() {
	stop := make(chan struct{})
	done := make(chan struct{})
	h.stop, h.done = stop, done
	interval := h.sessionTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.Sweep()
			}
		}
	}()
}

func (h *Hub) Stop() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	<-h.done
	h.stop = nil
}

// Apply records a session change and publishes it to the client's subscribers.
func (h *Hub) Apply(clientID, userID string, typ EventType) (Event, error) {
	if h == nil {
		return Event{}, ErrHubUnavailable
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return Event{}, ErrInvalidClient
	}

	event := Event{ClientID: id, Type: typ}
	switch typ {
	case SignedIn:
		user := strings.TrimSpace(userID)
		if user == "" {
			return Event{}, ErrInvalidUser
		}
		session := Session{UserID: user, SignedInAt: h.clock.Now()}
		h.mu.Lock()
		h.sessions[id] = session
		h.mu.Unlock()
		event.Session = &session
	case SignedOut:
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
	default:
		return Event{}, ErrInvalidEventType
	}

	h.publish(id, event)
	return event, nil
}

func (h *Hub) publish(clientID string, event Event) {
	h.mu.RLock()
	stream := h.streams[clientID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	subs := make([]chan Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(clientID string) (*Subscription, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return nil, ErrInvalidClient
	}

	stream := h.ensureStream(id)
	stream.mu.Lock()
	subID := stream.nextID
	stream.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	stream.subs[subID] = ch
	stream.mu.Unlock()

	return &Subscription{hub: h, clientID: id, id: subID, ch: ch}, nil
}

func (h *Hub) ensureStream(clientID string) *stream {
	h.mu.RLock()
	current := h.streams[clientID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[clientID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan Event)}
		h.streams[clientID] = current
	}
	return current
}

func (h *Hub) unsubscribe(clientID string, id uint64) {
	h.mu.RLock()
	stream := h.streams[clientID]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[clientID]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, clientID)
	}
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

// Close stops delivery. The events channel is left open; callers select on
// their own context.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.clientID, s.id)
	})
}
