package orgtree

import (
	"errors"
	"fmt"
)

var (
	ErrSelfParent    = errors.New("self_parent")
	ErrCycleDetected = errors.New("cycle_detected")
	ErrUnknownMember = errors.New("unknown_member")
)

// ValidateReparent checks that moving memberID under newParentID keeps the
// structure a tree. An empty newParentID promotes the member to a root
// candidate. members must reflect the state before the move.
func ValidateReparent(memberID, newParentID string, members []Member) error {
	if newParentID != "" && newParentID == memberID {
		return ErrSelfParent
	}

	byID := make(map[string]Member, len(members))
	for _, m := range members {
		if _, ok := byID[m.ID]; !ok {
			byID[m.ID] = m
		}
	}

	if _, ok := byID[memberID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, memberID)
	}
	if newParentID == "" {
		return nil
	}
	if _, ok := byID[newParentID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, newParentID)
	}

	cur := newParentID
	for steps := 0; steps < len(members); steps++ {
		m, ok := byID[cur]
		if !ok || !m.HasManager() {
			return nil
		}
		if m.ReportsTo == memberID {
			return ErrCycleDetected
		}
		cur = m.ReportsTo
	}

	return nil
}
