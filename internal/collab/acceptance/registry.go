package acceptance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Service  domain.Service
	Sessions Sessions
	Handoff  Handoff
	Clock    clock.Clock
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
	Cfg      Config
}

// Registry holds at most one mounted page per client context.
type Registry struct {
	d   *deps
	log *zap.Logger

	mu    sync.Mutex
	pages map[string]*entry

	baseCtx context.Context
	stop    context.CancelFunc
	done    chan struct{}
}

type entry struct {
	flow     *Flow
	lastSeen time.Time
}

func NewRegistry(p Params) *Registry {
	cfg := p.Cfg.withDefaults()
	log := p.Log.Named("collab.acceptance")
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		d: &deps{
			service:  p.Service,
			sessions: p.Sessions,
			handoff:  p.Handoff,
			clock:    p.Clock,
			log:      log,
			metrics:  p.Metrics,
			cfg:      cfg,
		},
		log:     log,
		pages:   make(map[string]*entry),
		baseCtx: ctx,
		stop:    cancel,
	}
}

// Open returns the client's page for token, mounting a new one and
// unmounting any page it replaces.
func (r *Registry) Open(clientID, token string) (*Flow, error) {
	clientID = strings.TrimSpace(clientID)
	token = strings.TrimSpace(token)
	if clientID == "" {
		return nil, ErrInvalidClient
	}
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	if err := r.baseCtx.Err(); err != nil {
		return nil, ErrPageClosed
	}

	r.mu.Lock()
	current := r.pages[clientID]
	if current != nil && current.flow.token == token && current.flow.Mounted() {
		current.lastSeen = r.d.clock.Now()
		r.mu.Unlock()
		return current.flow, nil
	}

	flow := newFlow(r.d, clientID, token)
	if err := flow.Mount(r.baseCtx); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.pages[clientID] = &entry{flow: flow, lastSeen: r.d.clock.Now()}
	r.mu.Unlock()

	if current != nil {
		current.flow.Unmount()
	}
	return flow, nil
}

// Lookup finds the mounted page for the client and token.
func (r *Registry) Lookup(clientID, token string) (*Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.pages[strings.TrimSpace(clientID)]
	if current == nil || current.flow.token != strings.TrimSpace(token) {
		return nil, ErrPageNotFound
	}
	current.lastSeen = r.d.clock.Now()
	return current.flow, nil
}

// Close unmounts the client's page for token.
func (r *Registry) Close(clientID, token string) error {
	r.mu.Lock()
	id := strings.TrimSpace(clientID)
	current := r.pages[id]
	if current == nil || current.flow.token != strings.TrimSpace(token) {
		r.mu.Unlock()
		return ErrPageNotFound
	}
	delete(r.pages, id)
	r.mu.Unlock()

	current.flow.Unmount()
	return nil
}

// Sweep unmounts pages idle for longer than the page TTL.
func (r *Registry) Sweep() int {
	cutoff := r.d.clock.Now().Add(-r.d.cfg.PageTTL)

	r.mu.Lock()
	var expired []*Flow
	for id, e := range r.pages {
		if e.lastSeen.Before(cutoff) || !e.flow.Mounted() {
			expired = append(expired, e.flow)
			delete(r.pages, id)
		}
	}
	r.mu.Unlock()

	for _, flow := range expired {
		flow.Unmount()
	}
	if len(expired) > 0 {
		r.log.Debug("idle pages unmounted", zap.Int("count", len(expired)))
	}
	return len(expired)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// Start runs the idle sweeper until Stop.
func (r *Registry) Start() {
	r.done = make(chan struct{})
	interval := r.d.cfg.PageTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.baseCtx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Stop unmounts every page and refuses new ones.
func (r *Registry) Stop() {
	r.stop()
	if r.done != nil {
		<-r.done
	}

	r.mu.Lock()
	flows := make([]*Flow, 0, len(r.pages))
	for id, e := range r.pages {
		flows = append(flows, e.flow)
		delete(r.pages, id)
	}
	r.mu.Unlock()

	for _, flow := range flows {
		flow.Unmount()
	}
}
