// Package dispatch delivers invite-created outbox events to the issuer.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/config"
	"github.com/smallbiznis/eventcrew/internal/lock"
	"github.com/smallbiznis/eventcrew/internal/observability/metrics"
	"github.com/smallbiznis/eventcrew/internal/outbox"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKey = "eventcrew:collab:dispatch"

const (
	OutcomeSent       = "sent"
	OutcomeDeadLetter = "dead_letter"
	OutcomeFailed     = "failed"
	OutcomeSkipped    = "skipped"
)

type Issuer interface {
	Issue(ctx context.Context, inviteID string) error
}

type Queue interface {
	Pending(ctx context.Context, topic string, limit, maxAttempts int) ([]outbox.Event, error)
	MarkPublished(ctx context.Context, id snowflake.ID, at time.Time, note string) error
	MarkFailed(ctx context.Context, id snowflake.ID, cause error) error
}

type Config struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Interval:    5 * time.Second,
		BatchSize:   25,
		MaxAttempts: 5,
		LockTTL:     30 * time.Second,
	}
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Dispatch.Enabled,
		Interval:    cfg.Dispatch.Interval,
		BatchSize:   cfg.Dispatch.BatchSize,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		LockTTL:     cfg.Dispatch.LockTTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Queue   Queue
	Issuer  Issuer
	Clock   clock.Clock
	Locker  *lock.Locker     `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
	Config  Config           `optional:"true"`
}

type Dispatcher struct {
	log     *zap.Logger
	queue   Queue
	issuer  Issuer
	clock   clock.Clock
	locker  *lock.Locker
	metrics *metrics.Metrics
	cfg     Config
}

func New(p Params) (*Dispatcher, error) {
	if p.Log == nil || p.Queue == nil || p.Issuer == nil || p.Clock == nil {
		return nil, errors.New("dispatch: missing dependency")
	}
	return &Dispatcher{
		log:     p.Log.Named("collab.dispatch"),
		queue:   p.Queue,
		issuer:  p.Issuer,
		clock:   p.Clock,
		locker:  p.Locker,
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
	}, nil
}

// Result summarizes one dispatch pass.
type Result struct {
	Sent       int
	DeadLetter int
	Failed     int
}

// RunOnce drains at most one batch. With a locker configured, a pass that
// cannot take the lock does nothing.
func (d *Dispatcher) RunOnce(ctx context.Context) (Result, error) {
	token, ok, err := d.locker.TryLock(ctx, lockKey, d.cfg.LockTTL)
	if err != nil {
		return Result{}, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		d.metrics.IncDispatch(OutcomeSkipped)
		return Result{}, nil
	}
	defer func() {
		if err := d.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			d.log.Warn("release dispatch lock failed", zap.Error(err))
		}
	}()

	events, err := d.queue.Pending(ctx, domain.InviteCreatedTopic, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return Result{}, fmt.Errorf("load pending invites: %w", err)
	}

	var res Result
	var errs error
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, errors.Join(errs, err)
		}
		outcome, err := d.deliver(ctx, ev)
		d.metrics.IncDispatch(outcome)
		switch outcome {
		case OutcomeSent:
			res.Sent++
		case OutcomeDeadLetter:
			res.DeadLetter++
		default:
			res.Failed++
		}
		errs = errors.Join(errs, err)
	}
	return res, errs
}

// deliver returns an error only when the outbox row itself could not be updated.
func (d *Dispatcher) deliver(ctx context.Context, ev outbox.Event) (string, error) {
	log := d.log.With(zap.String("outbox_id", ev.ID.String()), zap.Int("attempts", ev.Attempts))

	var payload domain.InviteCreatedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.InviteID == "" {
		log.Warn("malformed invite payload retired")
		return OutcomeDeadLetter, d.queue.MarkPublished(ctx, ev.ID, d.clock.Now(), "malformed_payload")
	}
	log = log.With(zap.String("invite_id", payload.InviteID))

	err := d.issuer.Issue(ctx, payload.InviteID)
	switch {
	case err == nil:
		return OutcomeSent, d.queue.MarkPublished(ctx, ev.ID, d.clock.Now(), "")
	case errors.Is(err, domain.ErrInviteNotFound):
		log.Warn("invite missing, outbox event retired")
		return OutcomeDeadLetter, d.queue.MarkPublished(ctx, ev.ID, d.clock.Now(), err.Error())
	default:
		if ev.Attempts+1 >= d.cfg.MaxAttempts {
			log.Error("invite email abandoned", zap.Error(err))
		} else {
			log.Warn("invite email failed", zap.Error(err))
		}
		return OutcomeFailed, d.queue.MarkFailed(ctx, ev.ID, err)
	}
}

func (d *Dispatcher) RunForever(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		res, err := d.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			d.log.Warn("dispatch pass failed", zap.Error(err))
		}
		if res.Sent+res.DeadLetter+res.Failed > 0 {
			d.log.Info("dispatch pass finished",
				zap.Int("sent", res.Sent),
				zap.Int("dead_letter", res.DeadLetter),
				zap.Int("failed", res.Failed),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
