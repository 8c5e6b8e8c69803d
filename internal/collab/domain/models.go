// Package domain contains the collaboration-invite models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// Event is the owning event of a staff roster. Read-only for this service.
type Event struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Date      string       `gorm:"type:text;not null" json:"date"`
	VenueName string       `gorm:"column:venue_name;type:text" json:"venue_name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Event) TableName() string { return "events" }

// Collaborator is one invite to an event's staff roster.
type Collaborator struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	EventID     snowflake.ID `gorm:"not null;index" json:"event_id"`
	Email       string       `gorm:"type:text;not null" json:"email"`
	Role        string       `gorm:"type:text;not null" json:"role"`
	InviteToken string       `gorm:"column:invite_token;type:text;not null;uniqueIndex:ux_event_collaborators_invite_token" json:"-"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	AcceptedAt  *time.Time   `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	UserID      *string      `gorm:"column:user_id;type:text" json:"user_id,omitempty"`
	InvitedBy   string       `gorm:"column:invited_by;type:text" json:"invited_by,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Collaborator) TableName() string { return "event_collaborators" }

// InviteView is an invite joined with the display fields of its event.
type InviteView struct {
	ID          snowflake.ID
	EventID     snowflake.ID
	Email       string
	Role        string
	InviteToken string
	Status      Status
	AcceptedAt  *time.Time
	UserID      *string
	EventName   string
	EventDate   string
	VenueName   string
}

// StatusPatch is the partial update applied when an invite leaves pending.
type StatusPatch struct {
	Status     Status
	AcceptedAt *time.Time
	UserID     *string
}
