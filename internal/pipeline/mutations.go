package pipeline

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"assetline/internal/domain"
	"assetline/internal/events"
	"assetline/internal/workflow"
)

// CreateAssetOptions are parameters for creating an asset.
type CreateAssetOptions struct {
	Name        string
	Category    string
	Description string
	Link        string
	Stages      []string
	AssignedTo  string
	Reviewer    string
	Deadline    *string
}

// CreateAsset adds a new asset with one StageDetail per listed stage.
// Administrator only.
func (p *Pipeline) CreateAsset(ctx context.Context, actor Actor, opts CreateAssetOptions) (domain.Asset, error) {
	if !actor.Admin {
		return domain.Asset{}, ErrAdminOnly
	}
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Asset{}, ValidationError{Field: "name"}
	}
	if strings.TrimSpace(opts.Category) == "" {
		return domain.Asset{}, ValidationError{Field: "category"}
	}
	now := p.Now().UTC().Format(time.RFC3339)
	a := domain.Asset{
		Name:        opts.Name,
		Category:    opts.Category,
		Description: opts.Description,
		Link:        opts.Link,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		Stages:      append([]string(nil), opts.Stages...),
		Status:      domain.StatusTodo,
		AssignedTo:  opts.AssignedTo,
		Reviewer:    opts.Reviewer,
		Deadline:    opts.Deadline,
		Details:     make(map[string]domain.StageDetail, len(opts.Stages)),
		Comments:    []domain.Comment{},
		Issues:      []domain.Issue{},
	}
	for _, s := range opts.Stages {
		a.Details[s] = domain.StageDetail{
			Status:     domain.StatusTodo,
			AssignedTo: opts.AssignedTo,
			Reviewer:   opts.Reviewer,
			Deadline:   opts.Deadline,
		}
	}
	var created domain.Asset
	_, err := p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		a.ID = nextID(assets, p.Now())
		created = a
		out := make([]domain.Asset, 0, len(assets)+1)
		out = append(out, assets...)
		return append(out, a)
	})
	if err != nil {
		return domain.Asset{}, err
	}
	p.Events.Append("asset.created", "asset", formatID(created.ID), actor.ID, events.EventPayload{"name": created.Name})
	return created, nil
}

// nextID assigns a monotonically increasing identifier: the wall clock in
// milliseconds, bumped past the current maximum so ids stay strictly
// increasing even when clocks skew between clients.
func nextID(assets []domain.Asset, now time.Time) int64 {
	id := now.UnixMilli()
	for _, a := range assets {
		if a.ID >= id {
			id = a.ID + 1
		}
	}
	return id
}

// UpdateAssetOptions carries admin edits to an asset. Nil fields are left
// unchanged. Assignee, reviewer and deadline edits fan out into every
// StageDetail, matching the legacy flat-field behavior.
type UpdateAssetOptions struct {
	Name        *string
	Category    *string
	Description *string
	Link        *string
	Stages      []string
	AssignedTo  *string
	Reviewer    *string
	Deadline    *string
	SetDeadline bool
	Status      *domain.Status
}

// UpdateAsset applies admin edits. Administrator only.
func (p *Pipeline) UpdateAsset(ctx context.Context, actor Actor, id int64, opts UpdateAssetOptions) (domain.Asset, error) {
	if !actor.Admin {
		return domain.Asset{}, ErrAdminOnly
	}
	if opts.Name != nil && strings.TrimSpace(*opts.Name) == "" {
		return domain.Asset{}, ValidationError{Field: "name"}
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return domain.Asset{}, ValidationError{Field: "status"}
	}
	if _, err := p.asset(id); err != nil {
		return domain.Asset{}, err
	}
	var updated domain.Asset
	found := false
	_, err := p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		out := make([]domain.Asset, len(assets))
		copy(out, assets)
		for i, a := range out {
			if a.ID != id {
				continue
			}
			found = true
			a = a.Normalize()
			if opts.Name != nil {
				a.Name = *opts.Name
			}
			if opts.Category != nil {
				a.Category = *opts.Category
			}
			if opts.Description != nil {
				a.Description = *opts.Description
			}
			if opts.Link != nil {
				a.Link = *opts.Link
			}
			if opts.Status != nil {
				a.Status = *opts.Status
			}
			if opts.Stages != nil {
				a.Stages = append([]string(nil), opts.Stages...)
			}
			if opts.AssignedTo != nil {
				a.AssignedTo = *opts.AssignedTo
			}
			if opts.Reviewer != nil {
				a.Reviewer = *opts.Reviewer
			}
			if opts.SetDeadline {
				a.Deadline = opts.Deadline
			}
			if opts.AssignedTo != nil || opts.Reviewer != nil || opts.SetDeadline {
				details := make(map[string]domain.StageDetail, len(a.Details))
				for s, d := range a.Details {
					if opts.AssignedTo != nil {
						d.AssignedTo = *opts.AssignedTo
					}
					if opts.Reviewer != nil {
						d.Reviewer = *opts.Reviewer
					}
					if opts.SetDeadline {
						d.Deadline = opts.Deadline
					}
					details[s] = d
				}
				a.Details = details
			}
			a = a.Normalize()
			out[i] = a
			updated = a
			break
		}
		return out
	})
	if err != nil {
		return domain.Asset{}, err
	}
	if !found {
		return domain.Asset{}, ErrNotFound
	}
	p.Events.Append("asset.updated", "asset", formatID(id), actor.ID, nil)
	return updated, nil
}

// DeleteAsset removes an asset. Administrator only; deleting an asset
// already removed by another client is a no-op refusal.
func (p *Pipeline) DeleteAsset(ctx context.Context, actor Actor, id int64) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	if _, err := p.asset(id); err != nil {
		return err
	}
	_, err := p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		out := make([]domain.Asset, 0, len(assets))
		for _, a := range assets {
			if a.ID != id {
				out = append(out, a)
			}
		}
		return out
	})
	if err != nil {
		return err
	}
	p.Events.Append("asset.deleted", "asset", formatID(id), actor.ID, nil)
	return nil
}

// SetStageStatus performs a workflow transition on one stage. The caller's
// role and the stage's lock state decide whether the target is legal; the
// asset-level status is re-derived after the change.
func (p *Pipeline) SetStageStatus(ctx context.Context, actor Actor, id int64, stage string, target domain.Status) (domain.Asset, error) {
	if !target.Valid() {
		return domain.Asset{}, ValidationError{Field: "status"}
	}
	a, err := p.asset(id)
	if err != nil {
		return domain.Asset{}, err
	}
	if !containsStage(a.Stages, stage) {
		return domain.Asset{}, ErrNotFound
	}
	role := workflow.RoleOf(actor.ID, a.Detail(stage), p.AdminID, actor.Admin)
	if err := workflow.Authorize(role, stage, workflow.Locked(a, stage), a.Detail(stage).Status, target); err != nil {
		return domain.Asset{}, err
	}
	var updated domain.Asset
	found := false
	_, err = p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		out := make([]domain.Asset, len(assets))
		copy(out, assets)
		for i, cur := range out {
			if cur.ID != id {
				continue
			}
			cur = cur.Normalize()
			if !containsStage(cur.Stages, stage) {
				return assets
			}
			found = true
			details := make(map[string]domain.StageDetail, len(cur.Details))
			for s, d := range cur.Details {
				details[s] = d
			}
			d := details[stage]
			d.Status = target
			details[stage] = d
			cur.Details = details
			cur.Status = workflow.DeriveStatus(cur)
			out[i] = cur
			updated = cur
			break
		}
		return out
	})
	if err != nil {
		return domain.Asset{}, err
	}
	if !found {
		return domain.Asset{}, ErrNotFound
	}
	p.Events.Append("stage.status", "asset", formatID(id), actor.ID, events.EventPayload{
		"stage": stage, "status": string(target),
	})
	return updated, nil
}

// StageEdit carries admin edits to one StageDetail.
type StageEdit struct {
	AssignedTo  *string
	Reviewer    *string
	Deadline    *string
	SetDeadline bool
}

// EditStage updates assignee, reviewer or deadline on one stage.
// Administrator only.
func (p *Pipeline) EditStage(ctx context.Context, actor Actor, id int64, stage string, edit StageEdit) (domain.Asset, error) {
	if !actor.Admin {
		return domain.Asset{}, ErrAdminOnly
	}
	a, err := p.asset(id)
	if err != nil {
		return domain.Asset{}, err
	}
	if !containsStage(a.Stages, stage) {
		return domain.Asset{}, ErrNotFound
	}
	var updated domain.Asset
	_, err = p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		out := make([]domain.Asset, len(assets))
		copy(out, assets)
		for i, cur := range out {
			if cur.ID != id {
				continue
			}
			cur = cur.Normalize()
			details := make(map[string]domain.StageDetail, len(cur.Details))
			for s, d := range cur.Details {
				details[s] = d
			}
			d := details[stage]
			if edit.AssignedTo != nil {
				d.AssignedTo = *edit.AssignedTo
			}
			if edit.Reviewer != nil {
				d.Reviewer = *edit.Reviewer
			}
			if edit.SetDeadline {
				d.Deadline = edit.Deadline
			}
			details[stage] = d
			cur.Details = details
			out[i] = cur
			updated = cur
			break
		}
		return out
	})
	if err != nil {
		return domain.Asset{}, err
	}
	p.Events.Append("stage.updated", "asset", formatID(id), actor.ID, events.EventPayload{"stage": stage})
	return updated, nil
}

// AddComment appends a comment to an asset.
func (p *Pipeline) AddComment(ctx context.Context, actor Actor, id int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError{Field: "text"}
	}
	if _, err := p.asset(id); err != nil {
		return err
	}
	c := domain.Comment{
		Text:      text,
		Author:    actor.ID,
		Timestamp: p.Now().UTC().Format(time.RFC3339),
	}
	_, err := p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		return withAsset(assets, id, func(a domain.Asset) domain.Asset {
			a.Comments = append(append([]domain.Comment(nil), a.Comments...), c)
			return a
		})
	})
	if err != nil {
		return err
	}
	p.Events.Append("comment.added", "asset", formatID(id), actor.ID, nil)
	return nil
}

// ReportIssue files a problem against one stage of an asset.
func (p *Pipeline) ReportIssue(ctx context.Context, actor Actor, id int64, stage, description string) error {
	if strings.TrimSpace(description) == "" {
		return ValidationError{Field: "description"}
	}
	if strings.TrimSpace(stage) == "" {
		return ValidationError{Field: "stage"}
	}
	if _, err := p.asset(id); err != nil {
		return err
	}
	is := domain.Issue{
		Description: description,
		Stage:       stage,
		ReportedBy:  actor.ID,
		Timestamp:   p.Now().UTC().Format(time.RFC3339),
	}
	_, err := p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		return withAsset(assets, id, func(a domain.Asset) domain.Asset {
			a.Issues = append(append([]domain.Issue(nil), a.Issues...), is)
			return a
		})
	})
	if err != nil {
		return err
	}
	p.Events.Append("issue.reported", "asset", formatID(id), actor.ID, events.EventPayload{"stage": stage})
	return nil
}

// ResolveIssue flips one issue's resolved flag from false to true.
// Resolving an already-resolved issue is a no-op; an index out of range is
// a not-found refusal.
func (p *Pipeline) ResolveIssue(ctx context.Context, actor Actor, id int64, index int) error {
	a, err := p.asset(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(a.Issues) {
		return ErrNotFound
	}
	if a.Issues[index].Resolved {
		return nil
	}
	resolvedAt := p.Now().UTC().Format(time.RFC3339)
	_, err = p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		return withAsset(assets, id, func(a domain.Asset) domain.Asset {
			if index >= len(a.Issues) || a.Issues[index].Resolved {
				return a
			}
			issues := append([]domain.Issue(nil), a.Issues...)
			issues[index].Resolved = true
			issues[index].ResolvedAt = &resolvedAt
			a.Issues = issues
			return a
		})
	})
	if err != nil {
		return err
	}
	p.Events.Append("issue.resolved", "asset", formatID(id), actor.ID, nil)
	return nil
}

// AddNote files a note under the asset, tagged with the asset's category
// at creation time.
func (p *Pipeline) AddNote(ctx context.Context, actor Actor, id int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError{Field: "text"}
	}
	a, err := p.asset(id)
	if err != nil {
		return err
	}
	n := domain.Note{
		Text:      text,
		Author:    actor.ID,
		Timestamp: p.Now().UTC().Format(time.RFC3339),
		Category:  a.Category,
	}
	key := formatID(id)
	_, err = p.Notes.Update(ctx, func(notes map[string][]domain.Note) map[string][]domain.Note {
		out := make(map[string][]domain.Note, len(notes)+1)
		for k, v := range notes {
			out[k] = v
		}
		out[key] = append(append([]domain.Note(nil), out[key]...), n)
		return out
	})
	if err != nil {
		return err
	}
	p.Events.Append("note.added", "asset", key, actor.ID, nil)
	return nil
}

// NotesFor returns the asset's notes filtered by category. Notes keep the
// category their asset had when they were written; only notes matching
// the given category are shown.
func (p *Pipeline) NotesFor(id int64, category string) []domain.Note {
	all := p.Notes.Value()[formatID(id)]
	if category == "" {
		return append([]domain.Note(nil), all...)
	}
	var out []domain.Note
	for _, n := range all {
		if n.Category == category {
			out = append(out, n)
		}
	}
	return out
}

// --- roster administration ---

// AddUser appends a user to the roster. Administrator only.
func (p *Pipeline) AddUser(ctx context.Context, actor Actor, name string) error {
	return p.addToRoster(ctx, actor, p.Users, "user.added", name)
}

// RenameUser renames a roster entry. The administrator identity is
// reserved and cannot be renamed.
func (p *Pipeline) RenameUser(ctx context.Context, actor Actor, from, to string) error {
	if from == p.AdminID {
		return ErrAdminOnly
	}
	return p.renameInRoster(ctx, actor, p.Users, "user.renamed", from, to)
}

// RemoveUser deletes a roster entry. The administrator identity is
// reserved and cannot be deleted.
func (p *Pipeline) RemoveUser(ctx context.Context, actor Actor, name string) error {
	if name == p.AdminID {
		return ErrAdminOnly
	}
	return p.removeFromRoster(ctx, actor, p.Users, "user.removed", name)
}

// AddRole appends a role/stage label. Administrator only.
func (p *Pipeline) AddRole(ctx context.Context, actor Actor, name string) error {
	return p.addToRoster(ctx, actor, p.Roles, "role.added", name)
}

// RenameRole renames a role/stage label. Assets keep referencing the old
// label in their stage sequences; such dangling stages read as unknown.
func (p *Pipeline) RenameRole(ctx context.Context, actor Actor, from, to string) error {
	return p.renameInRoster(ctx, actor, p.Roles, "role.renamed", from, to)
}

// RemoveRole deletes a role/stage label. Assets still listing it keep a
// dangling stage name, which readers treat as present-but-unknown.
func (p *Pipeline) RemoveRole(ctx context.Context, actor Actor, name string) error {
	return p.removeFromRoster(ctx, actor, p.Roles, "role.removed", name)
}

// AddCategory appends a category label. Administrator only.
func (p *Pipeline) AddCategory(ctx context.Context, actor Actor, name string) error {
	return p.addToRoster(ctx, actor, p.Categories, "category.added", name)
}

// RemoveCategory deletes a category label. Administrator only.
func (p *Pipeline) RemoveCategory(ctx context.Context, actor Actor, name string) error {
	return p.removeFromRoster(ctx, actor, p.Categories, "category.removed", name)
}

// ReorderCategories replaces the category ordering and re-sorts the
// persisted asset sequence to match it. Administrator only.
func (p *Pipeline) ReorderCategories(ctx context.Context, actor Actor, order []string) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	if len(order) == 0 {
		return ValidationError{Field: "order"}
	}
	if err := p.Categories.Set(ctx, append([]string(nil), order...)); err != nil {
		return err
	}
	pos := make(map[string]int, len(order))
	for i, c := range order {
		pos[c] = i
	}
	_, err := p.Assets.Update(ctx, func(assets []domain.Asset) []domain.Asset {
		out := make([]domain.Asset, len(assets))
		copy(out, assets)
		sortAssetsByCategory(out, pos)
		return out
	})
	if err != nil {
		return err
	}
	p.Events.Append("categories.reordered", "categories", "", actor.ID, nil)
	return nil
}

func (p *Pipeline) addToRoster(ctx context.Context, actor Actor, r rosterReplica, event, name string) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name"}
	}
	if contains(r.Value(), name) {
		return ValidationError{Field: "name"}
	}
	_, err := r.Update(ctx, func(list []string) []string {
		if contains(list, name) {
			return list
		}
		return append(append([]string(nil), list...), name)
	})
	if err != nil {
		return err
	}
	p.Events.Append(event, "roster", name, actor.ID, nil)
	return nil
}

func (p *Pipeline) renameInRoster(ctx context.Context, actor Actor, r rosterReplica, event, from, to string) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return ValidationError{Field: "name"}
	}
	if !contains(r.Value(), from) {
		return ErrNotFound
	}
	_, err := r.Update(ctx, func(list []string) []string {
		out := make([]string, len(list))
		copy(out, list)
		for i, v := range out {
			if v == from {
				out[i] = to
			}
		}
		return out
	})
	if err != nil {
		return err
	}
	p.Events.Append(event, "roster", to, actor.ID, events.EventPayload{"from": from})
	return nil
}

func (p *Pipeline) removeFromRoster(ctx context.Context, actor Actor, r rosterReplica, event, name string) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	if !contains(r.Value(), name) {
		return ErrNotFound
	}
	_, err := r.Update(ctx, func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if v != name {
				out = append(out, v)
			}
		}
		return out
	})
	if err != nil {
		return err
	}
	p.Events.Append(event, "roster", name, actor.ID, nil)
	return nil
}

type rosterReplica interface {
	Value() []string
	Update(ctx context.Context, fn func([]string) []string) ([]string, error)
}

func withAsset(assets []domain.Asset, id int64, fn func(domain.Asset) domain.Asset) []domain.Asset {
	out := make([]domain.Asset, len(assets))
	copy(out, assets)
	for i, a := range out {
		if a.ID == id {
			out[i] = fn(a.Normalize())
			break
		}
	}
	return out
}

func sortAssetsByCategory(assets []domain.Asset, pos map[string]int) {
	// Stable so assets whose categories are absent from the ordering
	// keep their relative order.
	sort.SliceStable(assets, func(i, j int) bool {
		return categoryLess(assets[i], assets[j], pos)
	})
}

func categoryLess(a, b domain.Asset, pos map[string]int) bool {
	pa, aok := pos[a.Category]
	pb, bok := pos[b.Category]
	if aok && bok {
		return pa < pb
	}
	return aok && !bok
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
