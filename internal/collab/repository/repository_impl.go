package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"gorm.io/gorm"
)

const inviteViewQuery = `SELECT c.id, c.event_id, c.email, c.role, c.invite_token, c.status, c.accepted_at, c.user_id,
	e.name AS event_name, e.date AS event_date, e.venue_name AS venue_name
	FROM event_collaborators c
	JOIN events e ON e.id = c.event_id`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateCollaborator(ctx context.Context, c domain.Collaborator) error {
	return r.db.WithContext(ctx).Create(&c).Error
}

func (r *repository) HasPendingInvite(ctx context.Context, eventID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Collaborator{}).
		Where("event_id = ? AND email = ? AND status = ?", eventID, email, string(domain.StatusPending)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) EventExists(ctx context.Context, eventID snowflake.ID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByToken(ctx context.Context, token string) (*domain.InviteView, error) {
	return r.findOne(ctx, inviteViewQuery+` WHERE c.invite_token = ?`, token)
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.InviteView, error) {
	return r.findOne(ctx, inviteViewQuery+` WHERE c.id = ?`, id)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*domain.InviteView, error) {
	var view domain.InviteView
	res := r.db.WithContext(ctx).Raw(query+` LIMIT 1`, arg).Scan(&view)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrInviteNotFound
	}
	return &view, nil
}

func (r *repository) TransitionByToken(ctx context.Context, token string, patch domain.StatusPatch) (bool, error) {
	return r.transition(ctx, "invite_token = ?", token, patch)
}

func (r *repository) TransitionByID(ctx context.Context, id snowflake.ID, patch domain.StatusPatch) (bool, error) {
	return r.transition(ctx, "id = ?", id, patch)
}

func (r *repository) transition(ctx context.Context, where string, key any, patch domain.StatusPatch) (bool, error) {
	updates := map[string]any{"status": string(patch.Status)}
	if patch.AcceptedAt != nil {
		updates["accepted_at"] = patch.AcceptedAt.UTC()
	}
	if patch.UserID != nil {
		updates["user_id"] = *patch.UserID
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Collaborator{}).
		Where(where, key).
		Where("status = ?", string(domain.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
