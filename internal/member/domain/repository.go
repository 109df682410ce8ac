package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/orgchart/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListMemberFilter struct {
	Role       string
	ActiveOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Member, error)
	List(ctx context.Context, db *gorm.DB, filter ListMemberFilter, page pagination.Pagination) ([]*Member, error)
	// ListAll returns every profile in creation order.
	ListAll(ctx context.Context, db *gorm.DB) ([]Member, error)
	UpdateReportsTo(ctx context.Context, db *gorm.DB, id string, reportsTo *string, updatedAt time.Time) error
	UpdateActive(ctx context.Context, db *gorm.DB, id string, active bool, updatedAt time.Time) error
}
