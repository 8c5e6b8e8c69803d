package acceptance

import (
	"context"
	"errors"
	"sync"

	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/identity"
	"github.com/smallbiznis/eventcrew/internal/observability/metrics"
	"go.uber.org/zap"
)

// Sessions is the identity surface a page depends on.
type Sessions interface {
	CurrentSession(ctx context.Context, clientID string) (*identity.Session, error)
	Subscribe(clientID string) (*identity.Subscription, error)
}

type deps struct {
	service  domain.Service
	sessions Sessions
	handoff  Handoff
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics
	cfg      Config
}

// Flow is one mounted acceptance page. Actions and listener callbacks hold
// mu, so at most one of them runs at a time.
type Flow struct {
	clientID string
	token    string
	d        *deps
	log      *zap.Logger
	stream   *Stream

	mu       sync.Mutex
	snapshot Snapshot
	loaded   bool

	lifeMu  sync.Mutex
	mounted bool
	ctx     context.Context
	cancel  context.CancelFunc
	sub     *identity.Subscription
	wg      sync.WaitGroup
}

func newFlow(d *deps, clientID, token string) *Flow {
	return &Flow{
		clientID: clientID,
		token:    token,
		d:        d,
		log:      d.log.With(zap.String("client_id", clientID)),
		stream:   NewStream(),
		snapshot: Snapshot{Step: StepLoading},
	}
}

func (f *Flow) Token() string    { return f.token }
func (f *Flow) ClientID() string { return f.clientID }

// Mount starts the sign-in listener. The page lives until Unmount or until
// ctx ends.
func (f *Flow) Mount(ctx context.Context) error {
	f.lifeMu.Lock()
	defer f.lifeMu.Unlock()
	if f.mounted {
		return nil
	}
	if f.ctx != nil {
		return ErrPageClosed
	}

	sub, err := f.d.sessions.Subscribe(f.clientID)
	if err != nil {
		return err
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.sub = sub
	f.mounted = true

	f.wg.Add(1)
	go f.listen(f.ctx, sub)
	return nil
}

// Unmount releases the listener and ends every watch. It waits for pending
// callbacks and is safe to call more than once.
func (f *Flow) Unmount() {
	f.lifeMu.Lock()
	if !f.mounted {
		f.lifeMu.Unlock()
		f.stream.Close()
		return
	}
	f.mounted = false
	cancel, sub := f.cancel, f.sub
	f.lifeMu.Unlock()

	cancel()
	sub.Close()
	f.wg.Wait()
	f.stream.Close()
}

func (f *Flow) Mounted() bool {
	f.lifeMu.Lock()
	defer f.lifeMu.Unlock()
	return f.mounted
}

// spawn runs fn on the page context unless the page is already unmounted.
func (f *Flow) spawn(fn func(ctx context.Context)) bool {
	f.lifeMu.Lock()
	defer f.lifeMu.Unlock()
	if !f.mounted {
		return false
	}
	ctx := f.ctx
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn(ctx)
	}()
	return true
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Flow) Watch() *Watch {
	return f.stream.Watch()
}

// Load resolves the token and runs the initial transition. Later calls
// return the current snapshot without touching the invite.
func (f *Flow) Load(ctx context.Context) (Snapshot, error) {
	if !f.Mounted() {
		return Snapshot{}, ErrPageClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return f.snapshot, nil
	}
	f.loaded = true
	f.setSnapshot(Snapshot{Step: StepLoading})

	view, err := f.d.service.GetByToken(ctx, f.token)
	if err != nil {
		if errors.Is(err, domain.ErrInviteNotFound) {
			f.setSnapshot(Snapshot{Step: StepInvalid})
		} else {
			f.log.Error("invite lookup failed", zap.Error(err))
			f.setSnapshot(Snapshot{Step: StepInvalid, Error: ErrorLookupFailed})
		}
		return f.snapshot, nil
	}

	switch view.Status {
	case domain.StatusAccepted:
		f.setSnapshot(Snapshot{Step: StepDone, Invite: summarize(view)})
		return f.snapshot, nil
	case domain.StatusDeclined:
		f.setSnapshot(Snapshot{Step: StepDeclined, Invite: summarize(view)})
		return f.snapshot, nil
	}

	session, err := f.d.sessions.CurrentSession(ctx, f.clientID)
	if err != nil {
		f.log.Warn("session lookup failed, continuing signed out", zap.Error(err))
		session = nil
	}
	if session != nil {
		// A marker left by an earlier signed-out preview must not outlive
		// this acceptance.
		if err := f.d.handoff.Clear(ctx, f.clientID); err != nil {
			f.log.Warn("clear pending token failed", zap.Error(err))
		}
		f.acceptWithSession(ctx, session.UserID)
		return f.snapshot, nil
	}

	if err := f.d.handoff.Set(ctx, f.clientID, f.token); err != nil {
		f.log.Error("store pending token failed", zap.Error(err))
	}
	f.setSnapshot(Snapshot{Step: StepPreview, Invite: summarize(view)})
	return f.snapshot, nil
}

func (f *Flow) acceptWithSession(ctx context.Context, userID string) {
	view, err := f.d.service.Accept(ctx, domain.AcceptRequest{Token: f.token, UserID: userID})
	if err != nil {
		if errors.Is(err, domain.ErrInviteAlreadyResolved) && view != nil {
			f.log.Warn("invite resolved before acceptance", zap.String("status", string(view.Status)))
			f.setSnapshot(Snapshot{Step: stepForStatus(view.Status), Invite: summarize(view)})
			return
		}
		f.log.Error("accept invite failed", zap.Error(err))
		f.setSnapshot(Snapshot{Step: StepInvalid, Error: ErrorAcceptFailed})
		return
	}

	dest := DashboardPath(view.EventID.String())
	f.setSnapshot(Snapshot{Step: StepAcceptedRedirect, Invite: summarize(view), RedirectTo: dest})

	timer := f.d.clock.After(f.d.cfg.RedirectDelay)
	f.spawn(func(pageCtx context.Context) {
		select {
		case <-timer:
			f.navigate(Navigation{To: dest, Reason: ReasonAccepted})
		case <-pageCtx.Done():
		}
	})
}

// Decline resolves a previewed invite as declined. It never consults the
// session.
func (f *Flow) Decline(ctx context.Context) (Snapshot, error) {
	if !f.Mounted() {
		return Snapshot{}, ErrPageClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot.Step != StepPreview {
		return f.snapshot, ErrActionNotAllowed
	}

	view, err := f.d.service.Decline(ctx, f.token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInviteAlreadyResolved) && view != nil:
			f.setSnapshot(Snapshot{Step: stepForStatus(view.Status), Invite: summarize(view)})
		case errors.Is(err, domain.ErrInviteNotFound):
			f.setSnapshot(Snapshot{Step: StepInvalid})
		}
		return f.snapshot, err
	}

	if err := f.d.handoff.Clear(ctx, f.clientID); err != nil {
		f.log.Warn("clear pending token failed", zap.Error(err))
	}
	f.setSnapshot(Snapshot{Step: StepDeclined, Invite: summarize(view)})
	return f.snapshot, nil
}

// Accept sends a previewed page to sign-in. The listener finishes the
// acceptance once a session appears.
func (f *Flow) Accept(ctx context.Context) (Navigation, error) {
	if !f.Mounted() {
		return Navigation{}, ErrPageClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot.Step != StepPreview {
		return Navigation{}, ErrActionNotAllowed
	}

	if err := f.d.handoff.Set(ctx, f.clientID, f.token); err != nil {
		f.log.Warn("refresh pending token failed", zap.Error(err))
	}
	nav := Navigation{To: SignInURL(f.d.cfg.SignInPath, AcceptPath(f.token)), Reason: ReasonSignIn}
	f.navigate(nav)
	return nav, nil
}

func (f *Flow) listen(ctx context.Context, sub *identity.Subscription) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			if ev.Type != identity.SignedIn || ev.Session == nil {
				continue
			}
			f.onSignIn(ctx, ev.Session.UserID)
		}
	}
}

// onSignIn completes acceptance for the marker's token, which may belong to
// a different page load than this one.
func (f *Flow) onSignIn(ctx context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token, ok, err := f.d.handoff.Consume(ctx, f.clientID)
	if err != nil {
		f.log.Error("consume pending token failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	f.d.metrics.IncMarkerConsumed()

	if _, err := f.d.service.Accept(ctx, domain.AcceptRequest{Token: token, UserID: userID}); err != nil {
		if errors.Is(err, domain.ErrInviteAlreadyResolved) {
			f.log.Warn("pending invite already resolved", zap.Error(err))
		} else {
			f.log.Error("accept pending invite failed", zap.Error(err))
		}
		f.navigate(Navigation{To: f.d.cfg.ListingPath, Reason: ReasonFallback})
		return
	}

	view, err := f.d.service.GetByToken(ctx, token)
	if err != nil {
		f.log.Warn("re-resolve accepted invite failed", zap.Error(err))
		f.navigate(Navigation{To: f.d.cfg.ListingPath, Reason: ReasonFallback})
		return
	}

	dest := DashboardPath(view.EventID.String())
	if token == f.token {
		f.setSnapshot(Snapshot{Step: StepAcceptedRedirect, Invite: summarize(view), RedirectTo: dest})
	}
	f.navigate(Navigation{To: dest, Reason: ReasonAccepted})
}

// setSnapshot must be called with mu held.
func (f *Flow) setSnapshot(s Snapshot) {
	f.snapshot = s
	f.d.metrics.IncAcceptStep(string(s.Step))
	snap := s
	f.stream.Publish(PageEvent{Type: EventSnapshot, Snapshot: &snap})
}

func (f *Flow) navigate(nav Navigation) {
	f.log.Debug("page navigation", zap.String("to", nav.To), zap.String("reason", nav.Reason))
	n := nav
	f.stream.Publish(PageEvent{Type: EventNavigate, Navigation: &n})
}

func stepForStatus(status domain.Status) Step {
	switch status {
	case domain.StatusAccepted:
		return StepDone
	case domain.StatusDeclined:
		return StepDeclined
	default:
		return StepPreview
	}
}
