package workflow_test

import (
	"errors"
	"testing"

	"assetline/internal/domain"
	"assetline/internal/workflow"
)

func chair(stages []string, statuses map[string]domain.Status) domain.Asset {
	a := domain.Asset{
		Name:     "Chair_01",
		Category: "Props",
		Stages:   stages,
		Status:   domain.StatusWIP,
		Details:  map[string]domain.StageDetail{},
	}
	for _, s := range stages {
		st := domain.StatusTodo
		if v, ok := statuses[s]; ok {
			st = v
		}
		a.Details[s] = domain.StageDetail{Status: st, AssignedTo: "Art1", Reviewer: "Art2"}
	}
	return a
}

func TestRoleOf(t *testing.T) {
	d := domain.StageDetail{AssignedTo: "Art1", Reviewer: "Art2"}
	cases := []struct {
		name        string
		actor       string
		adminAuthed bool
		want        workflow.Role
	}{
		{"assignee", "Art1", false, workflow.RoleAssignee},
		{"reviewer", "Art2", false, workflow.RoleReviewer},
		{"observer", "Art3", false, workflow.RoleObserver},
		{"admin authed", "Admin", true, workflow.RoleAdmin},
		{"admin not authed", "Admin", false, workflow.RoleObserver},
		{"empty actor", "", false, workflow.RoleObserver},
	}
	for _, tc := range cases {
		if got := workflow.RoleOf(tc.actor, d, "Admin", tc.adminAuthed); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRoleOfReviewerOutranksAssignee(t *testing.T) {
	d := domain.StageDetail{AssignedTo: "Art1", Reviewer: "Art1"}
	if got := workflow.RoleOf("Art1", d, "Admin", false); got != workflow.RoleReviewer {
		t.Fatalf("got %v want reviewer", got)
	}
}

func TestLocked(t *testing.T) {
	stages := []string{"Modeling", "Surfacing"}
	a := chair(stages, nil)
	if workflow.Locked(a, "Modeling") {
		t.Fatalf("first stage must never be locked")
	}
	if !workflow.Locked(a, "Surfacing") {
		t.Fatalf("Surfacing must be locked while Modeling is not done")
	}
	a = chair(stages, map[string]domain.Status{"Modeling": domain.StatusDone})
	if workflow.Locked(a, "Surfacing") {
		t.Fatalf("Surfacing must unlock once Modeling is done")
	}
	if workflow.Locked(a, "Unknown") {
		t.Fatalf("unknown stage must not be locked")
	}
}

func TestLockedCancelledPredecessorStillGates(t *testing.T) {
	a := chair([]string{"Modeling", "Surfacing"}, map[string]domain.Status{"Modeling": domain.StatusCancelled})
	if !workflow.Locked(a, "Surfacing") {
		t.Fatalf("cancelled predecessor is not done, stage stays locked")
	}
}

func TestAllowedTargets(t *testing.T) {
	if got := workflow.AllowedTargets(workflow.RoleAdmin, true, domain.StatusDone); len(got) != len(domain.Statuses) {
		t.Fatalf("admin gets every status, got %v", got)
	}
	got := workflow.AllowedTargets(workflow.RoleReviewer, true, domain.StatusDone)
	want := []domain.Status{domain.StatusReview, domain.StatusNeedsFix, domain.StatusDone}
	if len(got) != len(want) {
		t.Fatalf("reviewer targets: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reviewer targets: got %v want %v", got, want)
		}
	}
	if got := workflow.AllowedTargets(workflow.RoleAssignee, true, domain.StatusTodo); got != nil {
		t.Fatalf("locked assignee gets nothing, got %v", got)
	}
	got = workflow.AllowedTargets(workflow.RoleAssignee, false, domain.StatusWIP)
	want = []domain.Status{domain.StatusTodo, domain.StatusWIP, domain.StatusReview}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("assignee targets: got %v want %v", got, want)
		}
	}
	if got := workflow.AllowedTargets(workflow.RoleAssignee, false, domain.StatusDone); got != nil {
		t.Fatalf("assignee's finished stage offers nothing, got %v", got)
	}
	if got := workflow.AllowedTargets(workflow.RoleObserver, false, domain.StatusTodo); got != nil {
		t.Fatalf("observer gets nothing, got %v", got)
	}
}

func TestAuthorize(t *testing.T) {
	if err := workflow.Authorize(workflow.RoleAdmin, "Surfacing", true, domain.StatusTodo, domain.StatusCancelled); err != nil {
		t.Fatalf("admin bypasses lock and status set: %v", err)
	}
	err := workflow.Authorize(workflow.RoleAssignee, "Surfacing", true, domain.StatusTodo, domain.StatusWIP)
	var le workflow.LockedError
	if !errors.As(err, &le) || le.Stage != "Surfacing" {
		t.Fatalf("locked assignee gets LockedError, got %v", err)
	}
	err = workflow.Authorize(workflow.RoleAssignee, "Modeling", false, domain.StatusWIP, domain.StatusDone)
	var pe workflow.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("assignee may not set done, got %v", err)
	}
	if err := workflow.Authorize(workflow.RoleAssignee, "Modeling", false, domain.StatusWIP, domain.StatusReview); err != nil {
		t.Fatalf("assignee may hand off to review: %v", err)
	}
	if err := workflow.Authorize(workflow.RoleReviewer, "Surfacing", true, domain.StatusTodo, domain.StatusDone); err != nil {
		t.Fatalf("reviewer ignores the lock: %v", err)
	}
	if err := workflow.Authorize(workflow.RoleObserver, "Modeling", false, domain.StatusTodo, domain.StatusWIP); err == nil {
		t.Fatalf("observer may not transition")
	}
}

func TestAssigneeCannotReopenDoneStage(t *testing.T) {
	for _, target := range []domain.Status{domain.StatusTodo, domain.StatusWIP, domain.StatusReview} {
		err := workflow.Authorize(workflow.RoleAssignee, "Modeling", false, domain.StatusDone, target)
		var pe workflow.PermissionError
		if !errors.As(err, &pe) {
			t.Fatalf("assignee reopening done stage to %s: got %v, want PermissionError", target, err)
		}
	}
	if err := workflow.Authorize(workflow.RoleReviewer, "Modeling", false, domain.StatusDone, domain.StatusNeedsFix); err != nil {
		t.Fatalf("reviewer may bounce a done stage: %v", err)
	}
	if err := workflow.Authorize(workflow.RoleAdmin, "Modeling", false, domain.StatusDone, domain.StatusTodo); err != nil {
		t.Fatalf("admin may reopen a done stage: %v", err)
	}
}

func TestDeriveStatus(t *testing.T) {
	a := chair([]string{"Modeling", "Surfacing"}, map[string]domain.Status{
		"Modeling": domain.StatusDone,
	})
	a.Status = domain.StatusWIP
	if got := workflow.DeriveStatus(a); got != domain.StatusWIP {
		t.Fatalf("partial completion keeps stored status, got %v", got)
	}
	a = chair([]string{"Modeling", "Surfacing"}, map[string]domain.Status{
		"Modeling":  domain.StatusDone,
		"Surfacing": domain.StatusDone,
	})
	if got := workflow.DeriveStatus(a); got != domain.StatusDone {
		t.Fatalf("all stages done derives done, got %v", got)
	}
	empty := domain.Asset{Status: domain.StatusTodo}
	if workflow.AllDone(empty) {
		t.Fatalf("zero stages is never all-done")
	}
}
