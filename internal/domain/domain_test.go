package domain_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"assetline/internal/domain"
)

func TestNormalizeBackfillsLegacyFields(t *testing.T) {
	deadline := "2025-03-01"
	a := domain.Asset{
		Name:       "Chair_01",
		Stages:     []string{"Modeling", "Surfacing"},
		AssignedTo: "Art1",
		Reviewer:   "Art2",
		Deadline:   &deadline,
	}
	n := a.Normalize()
	for _, s := range a.Stages {
		d, ok := n.Details[s]
		if !ok {
			t.Fatalf("stage %s missing after normalize", s)
		}
		if d.Status != domain.StatusTodo || d.AssignedTo != "Art1" || d.Reviewer != "Art2" {
			t.Fatalf("stage %s backfilled wrong: %+v", s, d)
		}
		if d.Deadline == nil || *d.Deadline != deadline {
			t.Fatalf("stage %s deadline not carried over", s)
		}
	}
}

func TestNormalizeKeepsExistingDetails(t *testing.T) {
	a := domain.Asset{
		Stages:     []string{"Modeling", "Surfacing"},
		AssignedTo: "Art1",
		Details: map[string]domain.StageDetail{
			"Modeling": {Status: domain.StatusDone, AssignedTo: "Art3"},
		},
	}
	n := a.Normalize()
	if n.Details["Modeling"].AssignedTo != "Art3" || n.Details["Modeling"].Status != domain.StatusDone {
		t.Fatalf("existing detail overwritten: %+v", n.Details["Modeling"])
	}
	if n.Details["Surfacing"].AssignedTo != "Art1" {
		t.Fatalf("missing detail not backfilled: %+v", n.Details["Surfacing"])
	}
}

func TestNormalizeIdempotentBytes(t *testing.T) {
	a := domain.Asset{
		Stages:     []string{"Modeling"},
		AssignedTo: "Art1",
	}
	once := a.Normalize()
	twice := once.Normalize()
	b1, err := json.Marshal(once)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := json.Marshal(twice)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("normalize not idempotent:\n%s\n%s", b1, b2)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range domain.Statuses {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if domain.Status("finished").Valid() {
		t.Fatalf("unknown status accepted")
	}
}

func TestActiveIssues(t *testing.T) {
	a := domain.Asset{Issues: []domain.Issue{
		{Description: "seam", Resolved: false},
		{Description: "flipped normals", Resolved: true},
		{Description: "scale", Resolved: false},
	}}
	if got := a.ActiveIssues(); got != 2 {
		t.Fatalf("got %d active issues, want 2", got)
	}
}
