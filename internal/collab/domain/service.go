package domain

import (
	"context"
	"time"
)

const InviteCreatedTopic = "collab.invite.created"

type Service interface {
	Invite(ctx context.Context, req InviteRequest) (*InviteResponse, error)
	GetByToken(ctx context.Context, token string) (*InviteView, error)
	GetByID(ctx context.Context, id string) (*InviteView, error)
	// Accept is idempotent for an already-accepted invite and refuses a declined one.
	Accept(ctx context.Context, req AcceptRequest) (*InviteView, error)
	// Decline is idempotent for an already-declined invite and refuses an accepted one.
	Decline(ctx context.Context, token string) (*InviteView, error)
}

type InviteRequest struct {
	EventID   string
	Email     string
	Role      string
	InvitedBy string
}

type InviteResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type AcceptRequest struct {
	Token  string
	UserID string
}

// InviteCreatedPayload is the outbox payload for InviteCreatedTopic.
type InviteCreatedPayload struct {
	InviteID string `json:"invite_id"`
	EventID  string `json:"event_id"`
}
