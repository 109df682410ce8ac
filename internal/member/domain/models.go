package domain

import (
	"strings"
	"time"

	"github.com/smallbiznis/orgchart/internal/orgtree"
)

// Member is a row of the profiles table.
type Member struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	FullName  string    `gorm:"type:text;not null" json:"full_name"`
	Email     string    `gorm:"type:text;not null;uniqueIndex:ux_profiles_email" json:"email"`
	Role      string    `gorm:"type:text;not null;default:staff" json:"role"`
	ReportsTo *string   `gorm:"type:text;index" json:"reports_to"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Member) TableName() string { return "profiles" }

// Snapshot converts the row into the tree builder's input.
func (m Member) Snapshot() orgtree.Member {
	reportsTo := ""
	if m.ReportsTo != nil {
		reportsTo = strings.TrimSpace(*m.ReportsTo)
	}
	return orgtree.Member{
		ID:        m.ID,
		FullName:  m.FullName,
		Email:     m.Email,
		Role:      orgtree.Role(m.Role),
		ReportsTo: reportsTo,
		IsActive:  m.IsActive,
	}
}

func Snapshots(members []Member) []orgtree.Member {
	out := make([]orgtree.Member, 0, len(members))
	for _, m := range members {
		out = append(out, m.Snapshot())
	}
	return out
}
