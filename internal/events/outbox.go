package events

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgchart/internal/clock"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidEvent = errors.New("invalid_event")

// Publisher writes events in the caller's transaction so they commit or roll
// back together with the change they describe.
type Publisher interface {
	PublishTx(ctx context.Context, tx *gorm.DB, event Event) error
}

type OutboxParams struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{db: p.DB, genID: p.GenID, clock: p.Clock}
}

func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.PublishTx(ctx, o.db, event)
}

func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	event.MemberID = strings.TrimSpace(event.MemberID)
	event.Type = strings.TrimSpace(event.Type)
	if event.MemberID == "" || event.Type == "" {
		return ErrInvalidEvent
	}

	payload := datatypes.JSONMap{}
	for k, v := range event.Payload {
		payload[k] = v
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO member_events (id, member_id, event_type, payload, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.genID.Generate(),
		event.MemberID,
		event.Type,
		payload,
		false,
		o.clock.Now(),
	).Error
}

// Pending returns unpublished events oldest first.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]MemberEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []MemberEvent
	err := o.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return o.db.WithContext(ctx).Exec(
		`UPDATE member_events SET published = ? WHERE id IN ?`,
		true,
		ids,
	).Error
}

var _ Publisher = (*Outbox)(nil)
