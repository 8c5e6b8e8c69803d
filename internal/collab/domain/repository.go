package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCollaborator(ctx context.Context, c Collaborator) error
	HasPendingInvite(ctx context.Context, eventID snowflake.ID, email string) (bool, error)
	EventExists(ctx context.Context, eventID snowflake.ID) (bool, error)
	FindByToken(ctx context.Context, token string) (*InviteView, error)
	FindByID(ctx context.Context, id snowflake.ID) (*InviteView, error)
	// TransitionByToken applies patch only while the invite is still pending
	// and reports whether a row changed.
	TransitionByToken(ctx context.Context, token string, patch StatusPatch) (bool, error)
	TransitionByID(ctx context.Context, id snowflake.ID, patch StatusPatch) (bool, error)
}
