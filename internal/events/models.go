package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventMemberCreated       = "member.created"
	EventMemberReparented    = "member.reparented"
	EventMemberActiveChanged = "member.active_changed"
)

// MemberEvent is one row of the member outbox.
type MemberEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	MemberID  string            `gorm:"type:text;not null;index" json:"member_id"`
	EventType string            `gorm:"type:text;not null" json:"event_type"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null" json:"payload"`
	Published bool              `gorm:"not null;default:false" json:"published"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MemberEvent) TableName() string { return "member_events" }

type Event struct {
	MemberID string
	Type     string
	Payload  map[string]any
}
