// Package outbox stores domain events in the same transaction as the state
// change that produced them, for later asynchronous delivery.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/clock"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var Module = fx.Module("outbox",
	fx.Provide(NewStore),
	fx.Provide(func(s *Store) Publisher { return s }),
)

// Event is one pending or delivered outbox row.
type Event struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	Topic       string         `gorm:"type:text;not null;index:ix_outbox_events_pending,priority:1" json:"topic"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	Published   bool           `gorm:"not null;default:false;index:ix_outbox_events_pending,priority:2" json:"published"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   string         `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	PublishedAt *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
}

func (Event) TableName() string { return "outbox_events" }

type Publisher interface {
	WithTx(tx *gorm.DB) Publisher
	Publish(ctx context.Context, topic string, payload any) error
}

type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewStore(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Store{db: db, genID: genID, clock: clk}
}

func (s *Store) WithTx(tx *gorm.DB) Publisher {
	return &Store{db: tx, genID: s.genID, clock: s.clock}
}

func (s *Store) Publish(ctx context.Context, topic string, payload any) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("missing outbox topic")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&Event{
		ID:        s.genID.Generate(),
		Topic:     topic,
		Payload:   datatypes.JSON(data),
		CreatedAt: s.clock.Now().UTC(),
	}).Error
}

// Pending lists undelivered events for topic, oldest first, skipping rows
// that exhausted maxAttempts.
func (s *Store) Pending(ctx context.Context, topic string, limit, maxAttempts int) ([]Event, error) {
	var events []Event
	q := s.db.WithContext(ctx).
		Where("topic = ? AND published = ?", topic, false).
		Order("created_at ASC, id ASC").
		Limit(limit)
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkPublished closes an event. A non-empty note records why the event was
// retired without delivery.
func (s *Store) MarkPublished(ctx context.Context, id snowflake.ID, at time.Time, note string) error {
	return s.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).Updates(map[string]any{
		"published":    true,
		"published_at": at.UTC(),
		"last_error":   note,
	}).Error
}

func (s *Store) MarkFailed(ctx context.Context, id snowflake.ID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).Updates(map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": msg,
	}).Error
}
