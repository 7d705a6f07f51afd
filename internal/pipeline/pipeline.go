// Package pipeline is the composition root: it owns the synchronized
// collections (assets, users, roles, categories, notes), validates every
// mutation against the workflow state machine, and recomputes the acting
// user's view through the visibility engine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"assetline/internal/domain"
	"assetline/internal/events"
	"assetline/internal/replica"
	"assetline/internal/store/core"
	"assetline/internal/visibility"
	"assetline/internal/workflow"
)

// Logical keys persisted in the shared store.
const (
	KeyAssets     = "assets"
	KeyUsers      = "users"
	KeyRoles      = "roles"
	KeyCategories = "categories"
	KeyNotes      = "notes"
)

// ErrNotFound reports an operation addressing an asset, stage or issue
// that is no longer present. Races between deletion on one client and
// mutation on another make this an expected refusal, never a fault.
var ErrNotFound = errors.New("not found")

// ErrAdminOnly reports an administrator-only operation attempted without
// administrator authority.
var ErrAdminOnly = errors.New("administrator only")

// ValidationError reports a missing or invalid required field, rejected
// before any state change.
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Actor is the acting identity for one operation. Admin is true only for
// the administrator identity while administrator-authenticated.
type Actor struct {
	ID    string
	Admin bool
}

// Session is client-local state that is never synchronized.
type Session struct {
	Actor       string
	AdminAuthed bool
	Filter      visibility.Filter
	Theme       string
}

// Options configures a Pipeline.
type Options struct {
	AdminID     string
	AdminSecret string
	Log         *slog.Logger
	Events      *events.Recorder
	Now         func() time.Time
}

// Pipeline owns the replicated collections and all mutation entry points.
// Mutations run to completion before the next one is processed; the only
// real concurrency is cross-client, resolved last-write-wins by the
// replica layer.
type Pipeline struct {
	Store      core.Store
	Assets     *replica.Replica[[]domain.Asset]
	Users      *replica.Replica[[]string]
	Roles      *replica.Replica[[]string]
	Categories *replica.Replica[[]string]
	Notes      *replica.Replica[map[string][]domain.Note]
	Events     *events.Recorder
	Log        *slog.Logger
	Now        func() time.Time

	// OnSynced surfaces the transient "synchronized" acknowledgment after
	// a local write-through. OnRemote fires after a change from another
	// client has been applied (or its marker observed).
	OnSynced func(key string)
	AdminID  string

	adminSecret string
	onRemote    func(key string)

	mu      sync.Mutex
	session Session
}

// New wires a Pipeline over st. Call Load before first use.
func New(st core.Store, opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rec := opts.Events
	if rec == nil {
		rec = &events.Recorder{Log: log, Now: now}
	}
	adminID := opts.AdminID
	if adminID == "" {
		adminID = "Admin"
	}
	p := &Pipeline{
		Store:       st,
		Events:      rec,
		Log:         log,
		Now:         now,
		AdminID:     adminID,
		adminSecret: opts.AdminSecret,
	}
	p.Assets = replica.New(st, KeyAssets, []domain.Asset(nil), log)
	p.Assets.Normalize = domain.NormalizeAssets
	p.Users = replica.New(st, KeyUsers, []string(nil), log)
	p.Roles = replica.New(st, KeyRoles, []string(nil), log)
	p.Categories = replica.New(st, KeyCategories, []string(nil), log)
	p.Notes = replica.New(st, KeyNotes, map[string][]domain.Note(nil), log)
	p.Assets.OnSynced = p.synced
	p.Users.OnSynced = p.synced
	p.Roles.OnSynced = p.synced
	p.Categories.OnSynced = p.synced
	p.Notes.OnSynced = p.synced
	p.Assets.Now = now
	p.Users.Now = now
	p.Roles.Now = now
	p.Categories.Now = now
	p.Notes.Now = now
	p.session.Actor = adminID
	return p
}

func (p *Pipeline) synced(key string) {
	if p.OnSynced != nil {
		p.OnSynced(key)
	}
}

// SetOnRemote registers the cross-client change notification callback.
func (p *Pipeline) SetOnRemote(fn func(key string)) {
	p.onRemote = fn
}

// Load reads every synchronized key into memory.
func (p *Pipeline) Load(ctx context.Context) error {
	if err := p.Assets.Load(ctx); err != nil {
		return err
	}
	if err := p.Users.Load(ctx); err != nil {
		return err
	}
	if err := p.Roles.Load(ctx); err != nil {
		return err
	}
	if err := p.Categories.Load(ctx); err != nil {
		return err
	}
	return p.Notes.Load(ctx)
}

// Seed writes starter rosters for keys that have never been written.
// The administrator identity is always part of the user roster.
func (p *Pipeline) Seed(ctx context.Context, users, roles, categories []string) error {
	if len(p.Users.Value()) == 0 {
		roster := users
		if !contains(roster, p.AdminID) {
			roster = append([]string{p.AdminID}, roster...)
		}
		if err := p.Users.Set(ctx, roster); err != nil {
			return err
		}
	}
	if len(p.Roles.Value()) == 0 && len(roles) > 0 {
		if err := p.Roles.Set(ctx, roles); err != nil {
			return err
		}
	}
	if len(p.Categories.Value()) == 0 && len(categories) > 0 {
		if err := p.Categories.Set(ctx, categories); err != nil {
			return err
		}
	}
	return nil
}

// --- client-local session ---

// Session returns a snapshot of the client-local state.
func (p *Pipeline) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// SetActor switches the acting identity. Switching away from the
// administrator identity does not clear authentication; Logout does.
func (p *Pipeline) SetActor(actor string) {
	p.mu.Lock()
	p.session.Actor = actor
	p.mu.Unlock()
}

// SetFilter replaces the active view filter.
func (p *Pipeline) SetFilter(f visibility.Filter) {
	p.mu.Lock()
	p.session.Filter = f
	p.mu.Unlock()
}

// SetTheme stores the client-local theme preference.
func (p *Pipeline) SetTheme(theme string) {
	p.mu.Lock()
	p.session.Theme = theme
	p.mu.Unlock()
}

// Login checks the shared administrator secret and, on success, sets the
// client-local authenticated flag. There is no expiry and no further
// credential material; this is a client-side gate, not a security
// boundary.
func (p *Pipeline) Login(secret string) error {
	if p.adminSecret == "" || secret != p.adminSecret {
		return ErrAdminOnly
	}
	p.mu.Lock()
	p.session.AdminAuthed = true
	p.mu.Unlock()
	p.Events.Append("admin.login", "session", "", p.AdminID, nil)
	return nil
}

// Logout clears the authenticated flag. If the acting identity is the
// administrator it falls back to the first non-admin user.
func (p *Pipeline) Logout() {
	p.mu.Lock()
	p.session.AdminAuthed = false
	actor := p.session.Actor
	p.mu.Unlock()
	if actor == p.AdminID {
		for _, u := range p.Users.Value() {
			if u != p.AdminID {
				p.SetActor(u)
				return
			}
		}
	}
}

// CurrentActor resolves the session into an Actor for mutations.
func (p *Pipeline) CurrentActor() Actor {
	s := p.Session()
	return Actor{ID: s.Actor, Admin: s.Actor == p.AdminID && s.AdminAuthed}
}

// CheckSecret reports whether secret matches the administrator secret.
func (p *Pipeline) CheckSecret(secret string) bool {
	return p.adminSecret != "" && secret == p.adminSecret
}

// --- remote intake ---

// HandleRemote reconciles one change notification from another client.
// Unknown keys are ignored; malformed payloads are dropped and logged
// with local state untouched.
func (p *Pipeline) HandleRemote(ev core.Event) {
	switch ev.Key {
	case KeyAssets:
		p.applyRemote(p.Assets, ev)
	case KeyUsers:
		p.applyRemote(p.Users, ev)
	case KeyRoles:
		p.applyRemote(p.Roles, ev)
	case KeyCategories:
		p.applyRemote(p.Categories, ev)
	case KeyNotes:
		p.applyRemote(p.Notes, ev)
	case replica.MarkerKey:
		var m replica.Marker
		if err := json.Unmarshal(ev.Value, &m); err != nil {
			p.Log.Error("dropping malformed last-write marker", "error", err)
			return
		}
		if m.ClientID != p.Store.ClientID() && p.onRemote != nil {
			p.onRemote(replica.MarkerKey)
		}
	}
}

type remoteApplier interface {
	ApplyRemote(data []byte) (bool, error)
	Key() string
}

func (p *Pipeline) applyRemote(r remoteApplier, ev core.Event) {
	changed, err := r.ApplyRemote(ev.Value)
	if err != nil {
		return // already logged by the replica
	}
	if changed && p.onRemote != nil {
		p.onRemote(ev.Key)
	}
}

// Run consumes change notifications until ctx is cancelled. Each
// notification handler runs to completion before the next is processed.
func (p *Pipeline) Run(ctx context.Context) error {
	ch, err := p.Store.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			p.HandleRemote(ev)
		}
	}
}

// --- derived state ---

// Flags are the per-asset derivations the aggregate maintains.
type Flags struct {
	Locked       map[string]bool `json:"locked"`
	Completed    bool            `json:"completed"`
	ActiveIssues int             `json:"active_issues"`
}

// AssetFlags derives the locked-stage map, completion and active-issue
// count for one asset.
func AssetFlags(a domain.Asset) Flags {
	a = a.Normalize()
	locked := make(map[string]bool, len(a.Stages))
	for _, s := range a.Stages {
		locked[s] = workflow.Locked(a, s)
	}
	return Flags{
		Locked:       locked,
		Completed:    workflow.AllDone(a),
		ActiveIssues: a.ActiveIssues(),
	}
}

// View runs the visibility engine for the actor over the current
// collections.
func (p *Pipeline) View(f visibility.Filter, actor Actor) []visibility.Item {
	return visibility.View(p.Assets.Value(), f, actor.ID, p.AdminID, actor.Admin, p.Categories.Value())
}

// AllowedTargets returns the statuses the actor may set on one stage of
// one asset; the empty set for read-only actors or locked stages. The UI
// renders exactly this set as selectable.
func (p *Pipeline) AllowedTargets(actor Actor, id int64, stage string) ([]domain.Status, error) {
	a, err := p.asset(id)
	if err != nil {
		return nil, err
	}
	if !containsStage(a.Stages, stage) {
		return nil, ErrNotFound
	}
	role := workflow.RoleOf(actor.ID, a.Detail(stage), p.AdminID, actor.Admin)
	return workflow.AllowedTargets(role, workflow.Locked(a, stage), a.Detail(stage).Status), nil
}

// Asset returns one asset by id, normalized.
func (p *Pipeline) Asset(id int64) (domain.Asset, error) {
	return p.asset(id)
}

func (p *Pipeline) asset(id int64) (domain.Asset, error) {
	for _, a := range p.Assets.Value() {
		if a.ID == id {
			return a.Normalize(), nil
		}
	}
	return domain.Asset{}, ErrNotFound
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsStage(stages []string, stage string) bool {
	return contains(stages, stage)
}
