package events

import (
	"log/slog"
	"sync"
	"time"
)

// EventPayload carries structured details of one accepted mutation.
type EventPayload map[string]any

// Event is one entry in the client-local activity journal.
type Event struct {
	TS         string       `json:"ts" format:"date-time"`
	Type       string       `json:"type"`
	EntityKind string       `json:"entity_kind"`
	EntityID   string       `json:"entity_id,omitempty"`
	ActorID    string       `json:"actor_id"`
	Payload    EventPayload `json:"payload,omitempty"`
}

// Recorder journals accepted mutations to structured logs and keeps a
// bounded in-memory tail for inspection. The journal is client-local; it
// is not one of the synchronized keys.
type Recorder struct {
	Log *slog.Logger
	Now func() time.Time
	Max int

	mu     sync.Mutex
	recent []Event
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recorder) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// Append journals one event.
func (r *Recorder) Append(evtType, entityKind, entityID, actorID string, payload EventPayload) {
	ev := Event{
		TS:         r.now().UTC().Format(time.RFC3339),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
	}
	r.logger().Info("event",
		"type", ev.Type,
		"entity_kind", ev.EntityKind,
		"entity_id", ev.EntityID,
		"actor_id", ev.ActorID,
	)
	max := r.Max
	if max <= 0 {
		max = 256
	}
	r.mu.Lock()
	r.recent = append(r.recent, ev)
	if len(r.recent) > max {
		r.recent = r.recent[len(r.recent)-max:]
	}
	r.mu.Unlock()
}

// Recent returns up to n most recent events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.recent) {
		n = len(r.recent)
	}
	out := make([]Event, n)
	copy(out, r.recent[len(r.recent)-n:])
	return out
}
