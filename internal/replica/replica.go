// Package replica keeps one client's in-memory copy of a shared logical
// key consistent with the multi-client store. Conflict policy is
// last-write-wins over the whole value: there is no merge of concurrently
// diverging edits, and whichever write the store observes last is the
// value every client converges to.
package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"assetline/internal/store/core"
)

// MarkerKey is the well-known key carrying the last-write marker, an
// opaque monotonically increasing value that lets clients detect that an
// update occurred even when the backend can only poll.
const MarkerKey = "last-write"

// Marker is the value stored under MarkerKey.
type Marker struct {
	ClientID string `json:"client_id"`
	TS       int64  `json:"ts"`
}

// Replica synchronizes one logical key of type T.
type Replica[T any] struct {
	key   string
	store core.Store
	log   *slog.Logger

	// Now is the clock used for marker stamps; replace in tests.
	Now func() time.Time
	// Normalize, when set, is applied to every value entering from the
	// store (initial load and remote notifications). It must be
	// idempotent.
	Normalize func(T) T
	// OnSynced, when set, is invoked after every successful local
	// write-through. It is the transient "synchronized" acknowledgment to
	// this client's own UI layer, distinct from cross-client events.
	OnSynced func(key string)

	mu    sync.Mutex
	value T
}

// New returns a replica holding initial until Load or a write replaces it.
func New[T any](st core.Store, key string, initial T, log *slog.Logger) *Replica[T] {
	if log == nil {
		log = slog.Default()
	}
	return &Replica[T]{key: key, store: st, log: log, Now: time.Now, value: initial}
}

// Key returns the logical key this replica tracks.
func (r *Replica[T]) Key() string { return r.key }

// Load reads the current stored value. A missing key keeps the initial
// value; a malformed stored value is logged and keeps the initial value
// rather than failing startup.
func (r *Replica[T]) Load(ctx context.Context) error {
	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", r.key, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		r.log.Error("stored value malformed; keeping initial", "key", r.key, "error", err)
		return nil
	}
	if r.Normalize != nil {
		v = r.Normalize(v)
	}
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
	return nil
}

// Value returns the current in-memory copy. Callers must treat it as
// read-only; mutations go through Update.
func (r *Replica[T]) Value() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Update computes the new value from the current one, stores it in memory,
// writes it through to the shared store and stamps the last-write marker.
func (r *Replica[T]) Update(ctx context.Context, fn func(T) T) (T, error) {
	r.mu.Lock()
	next := fn(r.value)
	r.value = next
	r.mu.Unlock()

	data, err := json.Marshal(next)
	if err != nil {
		return next, fmt.Errorf("marshal %s: %w", r.key, err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return next, fmt.Errorf("persist %s: %w", r.key, err)
	}
	if err := r.stampMarker(ctx); err != nil {
		r.log.Warn("last-write marker not stamped", "key", r.key, "error", err)
	}
	if r.OnSynced != nil {
		r.OnSynced(r.key)
	}
	return next, nil
}

// Set replaces the value wholesale.
func (r *Replica[T]) Set(ctx context.Context, v T) error {
	_, err := r.Update(ctx, func(T) T { return v })
	return err
}

// ApplyRemote reconciles a change notification from another client.
// The in-memory value is replaced only when the incoming value differs
// structurally from the current one; a malformed payload is dropped and
// logged with local state untouched. Reports whether the value changed.
func (r *Replica[T]) ApplyRemote(data []byte) (bool, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		r.log.Error("dropping malformed remote value", "key", r.key, "error", err)
		return false, fmt.Errorf("decode remote %s: %w", r.key, err)
	}
	if r.Normalize != nil {
		v = r.Normalize(v)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if reflect.DeepEqual(r.value, v) {
		return false, nil
	}
	r.value = v
	return true, nil
}

func (r *Replica[T]) stampMarker(ctx context.Context) error {
	m := Marker{ClientID: r.store.ClientID(), TS: r.Now().UnixMilli()}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, MarkerKey, data)
}
