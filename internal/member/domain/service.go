package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/smallbiznis/orgchart/pkg/db/pagination"
)

type ListMemberRequest struct {
	PageToken  string
	PageSize   int
	Role       string
	ActiveOnly bool
}

type ListMemberResponse struct {
	pagination.PageInfo
	Members []Member `json:"members"`
}

type CreateMemberRequest struct {
	FullName  string
	Email     string
	Role      string
	ReportsTo *string
}

type SetActiveRequest struct {
	ID       string
	IsActive bool
}

// ReparentRequest moves MemberID under ReportsTo. A nil or empty ReportsTo
// promotes the member to the top of its own branch.
type ReparentRequest struct {
	MemberID  string
	ReportsTo *string
}

//go:generate mockgen -source=service.go -destination=mock/mock_service.go -package=mock
type Service interface {
	List(context.Context, ListMemberRequest) (ListMemberResponse, error)
	Get(ctx context.Context, id string) (Member, error)
	Create(context.Context, CreateMemberRequest) (Member, error)
	SetActive(context.Context, SetActiveRequest) (Member, error)

	// Tree derives the reporting tree from the current profiles. It returns a
	// nil tree when there are no members.
	Tree(ctx context.Context) (*orgtree.Tree, error)
	ValidateReparent(context.Context, ReparentRequest) error
	Reparent(context.Context, ReparentRequest) (*orgtree.Tree, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidManager     = errors.New("invalid_manager")
	ErrDuplicateEmail     = errors.New("duplicate_email")
	ErrNotFound           = errors.New("not_found")
	ErrReparentInProgress = errors.New("reparent_in_progress")
)
