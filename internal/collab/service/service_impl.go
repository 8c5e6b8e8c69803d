package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/outbox"
	"github.com/smallbiznis/eventcrew/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const inviteTokenSize = 32

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Publisher outbox.Publisher
	GenID     *snowflake.Node
	Clock     clock.Clock
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	publisher outbox.Publisher
	genID     *snowflake.Node
	clock     clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("collab.service"),
		repo:      p.Repo,
		publisher: p.Publisher,
		genID:     p.GenID,
		clock:     p.Clock,
	}
}

func (s *service) Invite(ctx context.Context, req domain.InviteRequest) (*domain.InviteResponse, error) {
	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil || eventID == 0 {
		return nil, domain.ErrInvalidEvent
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	exists, err := s.repo.EventExists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrEventNotFound
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	invite := domain.Collaborator{
		ID:          s.genID.Generate(),
		EventID:     eventID,
		Email:       email,
		Role:        role,
		InviteToken: token,
		Status:      domain.StatusPending,
		InvitedBy:   strings.TrimSpace(req.InvitedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pending, err := repo.HasPendingInvite(ctx, eventID, email)
		if err != nil {
			return err
		}
		if pending {
			return domain.ErrInviteExists
		}
		if err := repo.CreateCollaborator(ctx, invite); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrInviteExists
			}
			return err
		}
		return s.publisher.WithTx(tx).Publish(ctx, domain.InviteCreatedTopic, domain.InviteCreatedPayload{
			InviteID: invite.ID.String(),
			EventID:  eventID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("collaborator invited",
		zap.String("invite_id", invite.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.String("role", role),
	)

	return &domain.InviteResponse{
		ID:        invite.ID.String(),
		EventID:   eventID.String(),
		Email:     email,
		Role:      role,
		Status:    invite.Status,
		CreatedAt: now,
	}, nil
}

func (s *service) GetByToken(ctx context.Context, token string) (*domain.InviteView, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInviteNotFound
	}
	return s.repo.FindByToken(ctx, token)
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.InviteView, error) {
	inviteID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || inviteID == 0 {
		return nil, domain.ErrInviteNotFound
	}
	return s.repo.FindByID(ctx, inviteID)
}

func (s *service) Accept(ctx context.Context, req domain.AcceptRequest) (*domain.InviteView, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, domain.ErrInviteNotFound
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}

	now := s.clock.Now()
	return s.transition(ctx, token, domain.StatusPatch{
		Status:     domain.StatusAccepted,
		AcceptedAt: &now,
		UserID:     &userID,
	})
}

func (s *service) Decline(ctx context.Context, token string) (*domain.InviteView, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInviteNotFound
	}
	return s.transition(ctx, token, domain.StatusPatch{Status: domain.StatusDeclined})
}

// transition writes patch only while the invite is pending. A repeat of the
// same terminal status succeeds without writing; the opposite one fails.
func (s *service) transition(ctx context.Context, token string, patch domain.StatusPatch) (*domain.InviteView, error) {
	changed, err := s.repo.TransitionByToken(ctx, token, patch)
	if err != nil {
		return nil, err
	}

	view, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("invite resolved",
			zap.String("invite_id", view.ID.String()),
			zap.String("status", string(view.Status)),
		)
		return view, nil
	}

	if view.Status == patch.Status {
		return view, nil
	}
	s.log.Warn("invite transition refused",
		zap.String("invite_id", view.ID.String()),
		zap.String("status", string(view.Status)),
		zap.String("requested", string(patch.Status)),
	)
	return view, domain.ErrInviteAlreadyResolved
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address == "" {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func newInviteToken() (string, error) {
	buf := make([]byte, inviteTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
