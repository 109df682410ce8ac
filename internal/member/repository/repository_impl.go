package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/orgchart/internal/member/domain"
	"github.com/smallbiznis/orgchart/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO profiles (id, full_name, email, role, reports_to, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.FullName,
		member.Email,
		member.Role,
		member.ReportsTo,
		member.IsActive,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, full_name, email, role, reports_to, is_active, created_at, updated_at
		 FROM profiles WHERE id = ?`,
		id,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == "" {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListMemberFilter, page pagination.Pagination) ([]*domain.Member, error) {
	var members []*domain.Member
	stmt := db.WithContext(ctx).Model(&domain.Member{})
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at > ? OR (created_at = ? AND id > ?))", createdAt, createdAt, cursor.ID)
	}

	err := stmt.
		Order("created_at asc, id asc").
		Limit(page.Limit() + 1).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Member, error) {
	var members []domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, full_name, email, role, reports_to, is_active, created_at, updated_at
		 FROM profiles ORDER BY created_at ASC, id ASC`,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) UpdateReportsTo(ctx context.Context, db *gorm.DB, id string, reportsTo *string, updatedAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE profiles SET reports_to = ?, updated_at = ? WHERE id = ?`,
		reportsTo,
		updatedAt,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) UpdateActive(ctx context.Context, db *gorm.DB, id string, active bool, updatedAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE profiles SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		updatedAt,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
