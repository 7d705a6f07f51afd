// Package workflow governs the lifecycle of a single stage within an
// asset: which statuses exist, which identities may set them, and how a
// stage is gated by the completion of its predecessor. It is pure; callers
// apply accepted transitions themselves.
package workflow

import (
	"fmt"

	"assetline/internal/domain"
)

// Role is the caller's relationship to one stage of an asset.
type Role int

const (
	RoleObserver Role = iota
	RoleAssignee
	RoleReviewer
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAssignee:
		return "assignee"
	case RoleReviewer:
		return "reviewer"
	default:
		return "observer"
	}
}

// PermissionError indicates the actor's role may not set the target status.
type PermissionError struct {
	Role   Role
	Target domain.Status
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("%s may not set status %s", e.Role, e.Target)
}

// LockedError indicates a gated stage rejected an assignee transition.
type LockedError struct {
	Stage string
}

func (e LockedError) Error() string {
	return fmt.Sprintf("stage %s is locked until its predecessor is done", e.Stage)
}

// RoleOf determines the actor's role for one stage. Admin wins only when
// the actor is the administrator identity and currently authenticated;
// reviewer outranks assignee when the same identity holds both.
func RoleOf(actor string, d domain.StageDetail, adminID string, adminAuthed bool) Role {
	if actor == adminID && adminAuthed {
		return RoleAdmin
	}
	if actor != "" && d.Reviewer == actor {
		return RoleReviewer
	}
	if actor != "" && d.AssignedTo == actor {
		return RoleAssignee
	}
	return RoleObserver
}

// Locked reports whether the stage is gated: its immediate predecessor in
// the asset's sequence exists and is not done. The first stage is never
// locked. A stage absent from the sequence is treated as unlocked; callers
// reject unknown stages before transitioning.
func Locked(a domain.Asset, stage string) bool {
	for i, s := range a.Stages {
		if s != stage {
			continue
		}
		if i == 0 {
			return false
		}
		prev := a.Detail(a.Stages[i-1])
		return prev.Status != domain.StatusDone
	}
	return false
}

// AllowedTargets returns the set of statuses the role may set on a stage
// with the given lock state and current status. This is the single source
// of truth for both the selectable affordances and the defensive
// server-side check. A done stage is finished work for its assignee: only
// a reviewer or the admin may reopen it.
func AllowedTargets(role Role, locked bool, current domain.Status) []domain.Status {
	switch role {
	case RoleAdmin:
		return append([]domain.Status(nil), domain.Statuses...)
	case RoleReviewer:
		// Reviewers audit out of order; the lock does not apply to them.
		return []domain.Status{domain.StatusReview, domain.StatusNeedsFix, domain.StatusDone}
	case RoleAssignee:
		if locked || current == domain.StatusDone {
			return nil
		}
		return []domain.Status{domain.StatusTodo, domain.StatusWIP, domain.StatusReview}
	default:
		return nil
	}
}

// Authorize validates a transition attempt. It mirrors AllowedTargets but
// reports why the transition is refused.
func Authorize(role Role, stage string, locked bool, current, target domain.Status) error {
	if role == RoleAdmin {
		return nil
	}
	if role == RoleAssignee && locked {
		return LockedError{Stage: stage}
	}
	for _, s := range AllowedTargets(role, locked, current) {
		if s == target {
			return nil
		}
	}
	return PermissionError{Role: role, Target: target}
}

// AllDone reports whether every stage in the asset's sequence is done.
// An asset with no stages is never considered done by derivation.
func AllDone(a domain.Asset) bool {
	if len(a.Stages) == 0 {
		return false
	}
	for _, s := range a.Stages {
		if a.Detail(s).Status != domain.StatusDone {
			return false
		}
	}
	return true
}

// DeriveStatus computes the asset-level status after a stage change: the
// overall status becomes done exactly when every stage is done, and
// otherwise keeps its previously stored value.
func DeriveStatus(a domain.Asset) domain.Status {
	if AllDone(a) {
		return domain.StatusDone
	}
	return a.Status
}
