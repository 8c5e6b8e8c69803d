// Package collabtest wires an in-memory collab stack for package tests.
package collabtest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/collab/repository"
	"github.com/smallbiznis/eventcrew/internal/collab/service"
	"github.com/smallbiznis/eventcrew/internal/outbox"
	"github.com/smallbiznis/eventcrew/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type Fixture struct {
	DB      *gorm.DB
	Node    *snowflake.Node
	Clock   *clock.FakeClock
	Repo    domain.Repository
	Outbox  *outbox.Store
	Service domain.Service
}

func New(t *testing.T) *Fixture {
	t.Helper()

	conn, err := db.NewTest(&domain.Event{}, &domain.Collaborator{}, &outbox.Event{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	clk := clock.NewFakeClock(Epoch)
	repo := repository.NewRepository(conn)
	store := outbox.NewStore(conn, node, clk)
	svc := service.NewService(service.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Repo:      repo,
		Publisher: store,
		GenID:     node,
		Clock:     clk,
	})

	return &Fixture{DB: conn, Node: node, Clock: clk, Repo: repo, Outbox: store, Service: svc}
}

// SeedEvent inserts an event and returns it.
func (f *Fixture) SeedEvent(t *testing.T, name, date, venue string) domain.Event {
	t.Helper()
	ev := domain.Event{
		ID:        f.Node.Generate(),
		Name:      name,
		Date:      date,
		VenueName: venue,
		CreatedAt: Epoch,
	}
	require.NoError(t, f.DB.Create(&ev).Error)
	return ev
}

// SeedInvite inserts a collaborator row with a fixed token and status.
func (f *Fixture) SeedInvite(t *testing.T, eventID snowflake.ID, email, role, token string, status domain.Status) domain.Collaborator {
	t.Helper()
	c := domain.Collaborator{
		ID:          f.Node.Generate(),
		EventID:     eventID,
		Email:       email,
		Role:        role,
		InviteToken: token,
		Status:      status,
		CreatedAt:   Epoch,
		UpdatedAt:   Epoch,
	}
	require.NoError(t, f.DB.Create(&c).Error)
	return c
}

// Invite reads the persisted row for token.
func (f *Fixture) Invite(t *testing.T, token string) *domain.InviteView {
	t.Helper()
	view, err := f.Repo.FindByToken(context.Background(), token)
	require.NoError(t, err)
	return view
}
