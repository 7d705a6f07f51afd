package replica_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"assetline/internal/replica"
	"assetline/internal/store/memory"
)

type doc struct {
	Names []string `json:"names"`
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestLoadMissingKeepsInitial(t *testing.T) {
	hub := memory.NewHub()
	r := replica.New(hub.Client("c1"), "users", doc{Names: []string{"Admin"}}, nil)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := r.Value(); len(got.Names) != 1 || got.Names[0] != "Admin" {
		t.Fatalf("initial not kept: %+v", got)
	}
}

func TestLoadMalformedKeepsInitial(t *testing.T) {
	hub := memory.NewHub()
	c := hub.Client("c1")
	if err := c.Set(context.Background(), "users", []byte("{nope")); err != nil {
		t.Fatalf("set: %v", err)
	}
	r := replica.New(c, "users", doc{Names: []string{"Admin"}}, nil)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("malformed stored value must not fail startup: %v", err)
	}
	if got := r.Value(); len(got.Names) != 1 {
		t.Fatalf("initial not kept: %+v", got)
	}
}

func TestUpdateWritesThroughAndStampsMarker(t *testing.T) {
	hub := memory.NewHub()
	c := hub.Client("c1")
	r := replica.New(c, "users", doc{}, nil)
	r.Now = fixedNow
	ctx := context.Background()
	if _, err := r.Update(ctx, func(d doc) doc {
		d.Names = append(d.Names, "Art1")
		return d
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	data, err := c.Get(ctx, "users")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got doc
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Names) != 1 || got.Names[0] != "Art1" {
		t.Fatalf("stored value wrong: %+v", got)
	}
	mdata, err := c.Get(ctx, replica.MarkerKey)
	if err != nil {
		t.Fatalf("marker not stamped: %v", err)
	}
	var m replica.Marker
	if err := json.Unmarshal(mdata, &m); err != nil {
		t.Fatal(err)
	}
	if m.ClientID != "c1" || m.TS != fixedNow().UnixMilli() {
		t.Fatalf("marker wrong: %+v", m)
	}
}

func TestUpdateFiresOnSynced(t *testing.T) {
	hub := memory.NewHub()
	r := replica.New(hub.Client("c1"), "users", doc{}, nil)
	var synced []string
	r.OnSynced = func(key string) { synced = append(synced, key) }
	if err := r.Set(context.Background(), doc{Names: []string{"Art1"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(synced) != 1 || synced[0] != "users" {
		t.Fatalf("OnSynced not fired: %v", synced)
	}
}

func TestApplyRemote(t *testing.T) {
	hub := memory.NewHub()
	r := replica.New(hub.Client("c1"), "users", doc{Names: []string{"Art1"}}, nil)

	// Structurally equal payload is a no-op.
	same, _ := json.Marshal(doc{Names: []string{"Art1"}})
	changed, err := r.ApplyRemote(same)
	if err != nil || changed {
		t.Fatalf("equal remote must be a no-op, changed=%v err=%v", changed, err)
	}

	// Malformed payload is dropped, local state untouched.
	if _, err := r.ApplyRemote([]byte("{nope")); err == nil {
		t.Fatalf("malformed remote must report an error")
	}
	if got := r.Value(); len(got.Names) != 1 || got.Names[0] != "Art1" {
		t.Fatalf("local state touched by malformed remote: %+v", got)
	}

	// A differing payload replaces the value.
	next, _ := json.Marshal(doc{Names: []string{"Art1", "Art2"}})
	changed, err = r.ApplyRemote(next)
	if err != nil || !changed {
		t.Fatalf("differing remote must apply, changed=%v err=%v", changed, err)
	}
	if got := r.Value(); len(got.Names) != 2 {
		t.Fatalf("value not replaced: %+v", got)
	}
}

func TestNormalizeAppliedOnEntry(t *testing.T) {
	hub := memory.NewHub()
	c := hub.Client("c1")
	stored, _ := json.Marshal(doc{Names: []string{"art1"}})
	if err := c.Set(context.Background(), "users", stored); err != nil {
		t.Fatal(err)
	}
	r := replica.New(c, "users", doc{}, nil)
	r.Normalize = func(d doc) doc {
		for i, n := range d.Names {
			if n == "art1" {
				d.Names[i] = "Art1"
			}
		}
		return d
	}
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r.Value(); got.Names[0] != "Art1" {
		t.Fatalf("normalize not applied on load: %+v", got)
	}
}

func TestTwoClientsConverge(t *testing.T) {
	hub := memory.NewHub()
	c1 := hub.Client("c1")
	c2 := hub.Client("c2")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1 := replica.New(c1, "users", doc{}, nil)
	r2 := replica.New(c2, "users", doc{}, nil)

	ch2, err := c2.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if _, err := r1.Update(ctx, func(d doc) doc {
		d.Names = []string{"Art1", "Art2"}
		return d
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// c2 receives the users write and the marker stamp.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch2:
			if ev.Key != "users" {
				continue
			}
			if ev.ClientID != "c1" {
				t.Fatalf("event attributed to %s, want c1", ev.ClientID)
			}
			changed, err := r2.ApplyRemote(ev.Value)
			if err != nil || !changed {
				t.Fatalf("apply remote: changed=%v err=%v", changed, err)
			}
			if got := r2.Value(); len(got.Names) != 2 {
				t.Fatalf("replicas diverged: %+v", got)
			}
			return
		case <-deadline:
			t.Fatalf("no event delivered to second client")
		}
	}
}

func TestNoSelfEcho(t *testing.T) {
	hub := memory.NewHub()
	c1 := hub.Client("c1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c1.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	r := replica.New(c1, "users", doc{}, nil)
	if err := r.Set(ctx, doc{Names: []string{"Art1"}}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-ch:
		t.Fatalf("own write echoed back: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
