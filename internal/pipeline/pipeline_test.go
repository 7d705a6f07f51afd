package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetline/internal/domain"
	"assetline/internal/pipeline"
	"assetline/internal/store/memory"
	"assetline/internal/visibility"
	"assetline/internal/workflow"
)

var (
	admin = pipeline.Actor{ID: "Admin", Admin: true}
	art1  = pipeline.Actor{ID: "Art1"}
	art2  = pipeline.Actor{ID: "Art2"}
)

type testEnv struct {
	Hub      *memory.Hub
	Pipeline *pipeline.Pipeline
	Ctx      context.Context
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	hub := memory.NewHub()
	p := pipeline.New(hub.Client("c1"), pipeline.Options{
		AdminSecret: "Udolf67",
		Now:         fixedNow,
	})
	ctx := context.Background()
	if err := p.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	err := p.Seed(ctx,
		[]string{"Admin", "Art1", "Art2", "Art3"},
		[]string{"Modeling", "Surfacing"},
		[]string{"Props", "Characters", "Shots"},
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return testEnv{Hub: hub, Pipeline: p, Ctx: ctx}
}

func createChair(t *testing.T, env testEnv) domain.Asset {
	t.Helper()
	a, err := env.Pipeline.CreateAsset(env.Ctx, admin, pipeline.CreateAssetOptions{
		Name:       "Chair_01",
		Category:   "Props",
		Stages:     []string{"Modeling", "Surfacing"},
		AssignedTo: "Art1",
		Reviewer:   "Art2",
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return a
}

func TestSeedOnlyWritesUntouchedKeys(t *testing.T) {
	env := newTestEnv(t)
	// A second seed with a different roster must not clobber anything.
	if err := env.Pipeline.Seed(env.Ctx, []string{"Other"}, []string{"X"}, []string{"Y"}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	users := env.Pipeline.Users.Value()
	if len(users) != 4 || users[0] != "Admin" {
		t.Fatalf("seed clobbered users: %v", users)
	}
}

func TestCreateAssetAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Pipeline.CreateAsset(env.Ctx, art1, pipeline.CreateAssetOptions{Name: "X", Category: "Props"})
	if !errors.Is(err, pipeline.ErrAdminOnly) {
		t.Fatalf("want ErrAdminOnly, got %v", err)
	}
	_, err = env.Pipeline.CreateAsset(env.Ctx, admin, pipeline.CreateAssetOptions{Category: "Props"})
	var ve pipeline.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("want name validation error, got %v", err)
	}
}

func TestCreateAssetSeedsStageDetails(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	if a.ID != fixedNow().UnixMilli() {
		t.Fatalf("id should be wall clock millis, got %d", a.ID)
	}
	if a.Status != domain.StatusTodo {
		t.Fatalf("new asset starts todo, got %s", a.Status)
	}
	for _, s := range a.Stages {
		d := a.Details[s]
		if d.Status != domain.StatusTodo || d.AssignedTo != "Art1" || d.Reviewer != "Art2" {
			t.Fatalf("stage %s seeded wrong: %+v", s, d)
		}
	}
	// Same frozen clock: the next id bumps past the current maximum.
	b, err := env.Pipeline.CreateAsset(env.Ctx, admin, pipeline.CreateAssetOptions{Name: "Chair_02", Category: "Props"})
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != a.ID+1 {
		t.Fatalf("ids must stay strictly increasing: %d then %d", a.ID, b.ID)
	}
}

func TestStageWorkflowScenario(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	// Assignee starts the first stage.
	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusWIP); err != nil {
		t.Fatalf("Art1 wip Modeling: %v", err)
	}

	// Second stage is locked for the assignee.
	_, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Surfacing", domain.StatusWIP)
	var le workflow.LockedError
	if !errors.As(err, &le) {
		t.Fatalf("Surfacing locked for assignee, got %v", err)
	}

	// Hand off, reviewer accepts.
	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusReview); err != nil {
		t.Fatalf("hand off: %v", err)
	}
	cur, err := p.SetStageStatus(env.Ctx, art2, a.ID, "Modeling", domain.StatusDone)
	if err != nil {
		t.Fatalf("reviewer done: %v", err)
	}
	if cur.Status == domain.StatusDone {
		t.Fatalf("asset must not be done while Surfacing is open")
	}

	// Lock lifted, the assignee can work the second stage.
	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Surfacing", domain.StatusWIP); err != nil {
		t.Fatalf("Surfacing after unlock: %v", err)
	}
	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Surfacing", domain.StatusReview); err != nil {
		t.Fatal(err)
	}
	cur, err = p.SetStageStatus(env.Ctx, art2, a.ID, "Surfacing", domain.StatusDone)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != domain.StatusDone {
		t.Fatalf("all stages done must derive asset done, got %s", cur.Status)
	}
}

func TestStageStatusRefusals(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	// Assignee may not set done.
	_, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusDone)
	var pe workflow.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("want PermissionError, got %v", err)
	}

	// Observer may not transition at all.
	if _, err := p.SetStageStatus(env.Ctx, pipeline.Actor{ID: "Art3"}, a.ID, "Modeling", domain.StatusWIP); err == nil {
		t.Fatalf("observer transition accepted")
	}

	// Unknown stage and unknown asset are not-found refusals.
	if _, err := p.SetStageStatus(env.Ctx, admin, a.ID, "Rendering", domain.StatusWIP); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("unknown stage: want ErrNotFound, got %v", err)
	}
	if _, err := p.SetStageStatus(env.Ctx, admin, 42, "Modeling", domain.StatusWIP); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("unknown asset: want ErrNotFound, got %v", err)
	}
	if _, err := p.SetStageStatus(env.Ctx, admin, a.ID, "Modeling", domain.Status("finished")); err == nil {
		t.Fatalf("invalid status accepted")
	}

	// Admin bypasses both role and lock restrictions.
	if _, err := p.SetStageStatus(env.Ctx, admin, a.ID, "Surfacing", domain.StatusCancelled); err != nil {
		t.Fatalf("admin bypass: %v", err)
	}
}

func TestAssigneeCannotReopenFinishedStage(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusReview); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SetStageStatus(env.Ctx, art2, a.ID, "Modeling", domain.StatusDone); err != nil {
		t.Fatal(err)
	}

	// The stage is finished work for its assignee.
	_, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusWIP)
	var pe workflow.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("assignee reopening done stage: want PermissionError, got %v", err)
	}
	targets, err := p.AllowedTargets(art1, a.ID, "Modeling")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 0 {
		t.Fatalf("done stage offers nothing to the assignee, got %v", targets)
	}

	// The reviewer may still bounce it back.
	if _, err := p.SetStageStatus(env.Ctx, art2, a.ID, "Modeling", domain.StatusNeedsFix); err != nil {
		t.Fatalf("reviewer bounce: %v", err)
	}
}

func TestAllowedTargets(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	targets, err := p.AllowedTargets(art1, a.ID, "Surfacing")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 0 {
		t.Fatalf("locked stage offers nothing to the assignee, got %v", targets)
	}
	targets, err = p.AllowedTargets(art2, a.ID, "Surfacing")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 3 {
		t.Fatalf("reviewer always gets review/needs_fix/done, got %v", targets)
	}
	targets, err = p.AllowedTargets(admin, a.ID, "Surfacing")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != len(domain.Statuses) {
		t.Fatalf("admin gets every status, got %v", targets)
	}
}

func TestUpdateAssetFansOutDetails(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	assignee := "Art3"
	updated, err := env.Pipeline.UpdateAsset(env.Ctx, admin, a.ID, pipeline.UpdateAssetOptions{
		AssignedTo: &assignee,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.AssignedTo != "Art3" {
		t.Fatalf("flat field not updated: %+v", updated)
	}
	for _, s := range updated.Stages {
		if updated.Details[s].AssignedTo != "Art3" {
			t.Fatalf("stage %s assignee not fanned out: %+v", s, updated.Details[s])
		}
	}
}

func TestDeleteAssetAndRacingMutation(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	if err := p.DeleteAsset(env.Ctx, art1, a.ID); !errors.Is(err, pipeline.ErrAdminOnly) {
		t.Fatalf("delete is admin only, got %v", err)
	}
	if err := p.DeleteAsset(env.Ctx, admin, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Mutating the deleted asset is a refusal, never a fault.
	if _, err := p.SetStageStatus(env.Ctx, admin, a.ID, "Modeling", domain.StatusWIP); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := p.DeleteAsset(env.Ctx, admin, a.ID); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("double delete: want ErrNotFound, got %v", err)
	}
}

func TestIssuesLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	if err := p.ReportIssue(env.Ctx, art2, a.ID, "Modeling", "flipped normals"); err != nil {
		t.Fatal(err)
	}
	cur, _ := p.Asset(a.ID)
	if cur.ActiveIssues() != 1 {
		t.Fatalf("want 1 active issue, got %d", cur.ActiveIssues())
	}

	if err := p.ResolveIssue(env.Ctx, art1, a.ID, 0); err != nil {
		t.Fatal(err)
	}
	cur, _ = p.Asset(a.ID)
	if cur.ActiveIssues() != 0 || !cur.Issues[0].Resolved {
		t.Fatalf("issue not resolved: %+v", cur.Issues)
	}
	resolvedAt := cur.Issues[0].ResolvedAt

	// Resolving again is a no-op, not an error.
	if err := p.ResolveIssue(env.Ctx, art2, a.ID, 0); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	cur, _ = p.Asset(a.ID)
	if cur.Issues[0].ResolvedAt == nil || *cur.Issues[0].ResolvedAt != *resolvedAt {
		t.Fatalf("second resolve altered the record")
	}

	if err := p.ResolveIssue(env.Ctx, art1, a.ID, 5); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("out of range index: want ErrNotFound, got %v", err)
	}
}

func TestNotesInheritCategoryAtCreation(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	if err := p.AddNote(env.Ctx, art1, a.ID, "first pass uploaded"); err != nil {
		t.Fatal(err)
	}
	// Recategorize the asset; the existing note keeps Props.
	cat := "Characters"
	if _, err := p.UpdateAsset(env.Ctx, admin, a.ID, pipeline.UpdateAssetOptions{Category: &cat}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddNote(env.Ctx, art1, a.ID, "rig notes"); err != nil {
		t.Fatal(err)
	}

	props := p.NotesFor(a.ID, "Props")
	if len(props) != 1 || props[0].Text != "first pass uploaded" {
		t.Fatalf("Props notes wrong: %+v", props)
	}
	chars := p.NotesFor(a.ID, "Characters")
	if len(chars) != 1 || chars[0].Text != "rig notes" {
		t.Fatalf("Characters notes wrong: %+v", chars)
	}
	all := p.NotesFor(a.ID, "")
	if len(all) != 2 {
		t.Fatalf("want 2 notes total, got %d", len(all))
	}
}

func TestAdminUserReserved(t *testing.T) {
	env := newTestEnv(t)
	p := env.Pipeline
	if err := p.RenameUser(env.Ctx, admin, "Admin", "Root"); !errors.Is(err, pipeline.ErrAdminOnly) {
		t.Fatalf("admin rename refused, got %v", err)
	}
	if err := p.RemoveUser(env.Ctx, admin, "Admin"); !errors.Is(err, pipeline.ErrAdminOnly) {
		t.Fatalf("admin removal refused, got %v", err)
	}
	if err := p.RenameUser(env.Ctx, admin, "Art1", "Artem"); err != nil {
		t.Fatalf("rename user: %v", err)
	}
	users := p.Users.Value()
	found := false
	for _, u := range users {
		if u == "Artem" {
			found = true
		}
		if u == "Art1" {
			t.Fatalf("old name still present: %v", users)
		}
	}
	if !found {
		t.Fatalf("new name missing: %v", users)
	}
}

func TestRemovedRoleLeavesDanglingStage(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	if err := p.RemoveRole(env.Ctx, admin, "Surfacing"); err != nil {
		t.Fatal(err)
	}
	// The asset still carries the stage name and it still transitions.
	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusWIP); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SetStageStatus(env.Ctx, admin, a.ID, "Surfacing", domain.StatusWIP); err != nil {
		t.Fatalf("dangling stage must keep working: %v", err)
	}
}

func TestReorderCategoriesResortsAssets(t *testing.T) {
	env := newTestEnv(t)
	p := env.Pipeline
	mk := func(name, cat string) {
		if _, err := p.CreateAsset(env.Ctx, admin, pipeline.CreateAssetOptions{Name: name, Category: cat}); err != nil {
			t.Fatal(err)
		}
	}
	mk("P1", "Props")
	mk("S1", "Shots")
	mk("P2", "Props")

	if err := p.ReorderCategories(env.Ctx, art1, []string{"Shots", "Props"}); !errors.Is(err, pipeline.ErrAdminOnly) {
		t.Fatalf("reorder is admin only, got %v", err)
	}
	if err := p.ReorderCategories(env.Ctx, admin, []string{"Shots", "Props", "Characters"}); err != nil {
		t.Fatal(err)
	}
	got := p.Assets.Value()
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	if names[0] != "S1" || names[1] != "P1" || names[2] != "P2" {
		t.Fatalf("persisted order wrong: %v", names)
	}
}

func TestSessionLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	p := env.Pipeline

	if err := p.Login("wrong"); err == nil {
		t.Fatalf("wrong secret accepted")
	}
	if err := p.Login("Udolf67"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if actor := p.CurrentActor(); !actor.Admin {
		t.Fatalf("authed admin session must resolve to admin actor: %+v", actor)
	}
	p.Logout()
	s := p.Session()
	if s.AdminAuthed {
		t.Fatalf("logout must clear auth")
	}
	if s.Actor != "Art1" {
		t.Fatalf("logout falls back to the first non-admin user, got %q", s.Actor)
	}
}

func TestHandleRemoteConvergence(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.Pipeline
	a := createChair(t, env)

	p2 := pipeline.New(env.Hub.Client("c2"), pipeline.Options{
		AdminSecret: "Udolf67",
		Now:         fixedNow,
	})
	if err := p2.Load(env.Ctx); err != nil {
		t.Fatal(err)
	}
	var remote []string
	p2.SetOnRemote(func(key string) { remote = append(remote, key) })

	ctx, cancel := context.WithCancel(env.Ctx)
	defer cancel()
	ch, err := p2.Store.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p1.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusWIP); err != nil {
		t.Fatal(err)
	}

	// Pump the watch channel by hand; Run does the same in a goroutine.
	for len(remote) == 0 {
		select {
		case ev := <-ch:
			p2.HandleRemote(ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("no remote notification, got %v", remote)
		}
	}
	got, err := p2.Asset(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Details["Modeling"].Status != domain.StatusWIP {
		t.Fatalf("second client did not converge: %+v", got.Details["Modeling"])
	}
}

func TestViewThroughPipeline(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	p := env.Pipeline

	items := p.View(visibility.Filter{}, art1)
	if len(items) != 1 || items[0].Asset.ID != a.ID {
		t.Fatalf("assignee view wrong: %+v", items)
	}
	if items := p.View(visibility.Filter{}, art2); len(items) != 0 {
		t.Fatalf("reviewer has nothing actionable yet: %+v", items)
	}
	if _, err := p.SetStageStatus(env.Ctx, art1, a.ID, "Modeling", domain.StatusReview); err != nil {
		t.Fatal(err)
	}
	if items := p.View(visibility.Filter{}, art2); len(items) != 1 {
		t.Fatalf("reviewer must see the asset once a stage is in review")
	}
}

func TestAssetFlags(t *testing.T) {
	env := newTestEnv(t)
	a := createChair(t, env)
	flags := pipeline.AssetFlags(a)
	if flags.Locked["Modeling"] {
		t.Fatalf("first stage never locked")
	}
	if !flags.Locked["Surfacing"] {
		t.Fatalf("Surfacing locked while Modeling open")
	}
	if flags.Completed || flags.ActiveIssues != 0 {
		t.Fatalf("fresh asset flags wrong: %+v", flags)
	}
}
