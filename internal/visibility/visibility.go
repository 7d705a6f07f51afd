// Package visibility computes which assets an acting identity may see.
// It is pure and is the single source of truth for anything rendered or
// exported on behalf of a user.
package visibility

import (
	"sort"

	"assetline/internal/domain"
	"assetline/internal/workflow"
)

// Filter narrows the asset set before role-based visibility applies.
// Empty fields mean "any".
type Filter struct {
	Category string
	Status   domain.Status
	Assignee string
}

func (f Filter) match(a domain.Asset) bool {
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Assignee != "" && a.AssignedTo != f.Assignee {
		return false
	}
	return true
}

// Item is one visible asset plus whether it is visible only through
// administrator escalation (neither assignee nor reviewer rules match).
type Item struct {
	Asset     domain.Asset
	Escalated bool
}

// View returns the assets the actor may see, ordered by the position of
// their category in categoryOrder. Categories absent from the ordering
// sort last, keeping their relative order among themselves.
func View(assets []domain.Asset, f Filter, actor, adminID string, adminAuthed bool, categoryOrder []string) []Item {
	pos := make(map[string]int, len(categoryOrder))
	for i, c := range categoryOrder {
		pos[c] = i
	}

	var out []Item
	for _, a := range assets {
		a = a.Normalize()
		if !f.match(a) {
			continue
		}
		item, ok := classify(a, actor, adminID, adminAuthed)
		if !ok {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i].Asset.Category]
		pj, jok := pos[out[j].Asset.Category]
		if iok && jok {
			return pi < pj
		}
		return iok && !jok
	})
	return out
}

func classify(a domain.Asset, actor, adminID string, adminAuthed bool) (Item, bool) {
	isAssignee := false
	isReviewer := false
	if actor != "" {
		for _, s := range a.Stages {
			d := a.Detail(s)
			if d.AssignedTo == actor {
				isAssignee = true
			}
			if d.Reviewer == actor {
				isReviewer = true
			}
		}
	}

	if actor == adminID && adminAuthed {
		return Item{Asset: a, Escalated: !assigneeVisible(a, isAssignee) && !reviewerVisible(a, actor, isReviewer)}, true
	}
	if isAssignee {
		return Item{Asset: a}, assigneeVisible(a, true)
	}
	if isReviewer {
		return Item{Asset: a}, reviewerVisible(a, actor, true)
	}
	return Item{}, false
}

// assigneeVisible: an assignee sees the asset until every stage is done,
// at which point it disappears from their view.
func assigneeVisible(a domain.Asset, isAssignee bool) bool {
	return isAssignee && !workflow.AllDone(a)
}

// reviewerVisible: a reviewer sees the asset only while at least one of
// their stages is actionable (in review or needs_fix).
func reviewerVisible(a domain.Asset, actor string, isReviewer bool) bool {
	if !isReviewer {
		return false
	}
	for _, s := range a.Stages {
		d := a.Detail(s)
		if d.Reviewer != actor {
			continue
		}
		if d.Status == domain.StatusReview || d.Status == domain.StatusNeedsFix {
			return true
		}
	}
	return false
}
