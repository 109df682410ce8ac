package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

//go:generate mockgen -source=service.go -destination=mock/mock_service.go -package=mock
type Service interface {
	// Authorize checks whether the member identified by actorID may perform
	// action on object. The member's role is read from profiles.
	Authorize(ctx context.Context, actorID string, object string, action string) error
}
