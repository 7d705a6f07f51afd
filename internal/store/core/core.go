// Package core defines the shared key-value store contract implemented by
// the fs, sqlite and memory backends. A backend persists whole values per
// logical key and notifies a client about writes performed by other
// clients. Delivery ordering across keys is not guaranteed; each write
// eventually reaches every other live client.
package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Event reports that another client wrote a key this client shares.
type Event struct {
	Key      string
	Value    []byte
	ClientID string
}

// Store is one client's handle on the shared key-value layer.
type Store interface {
	// Get returns the current value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the whole value for key.
	Set(ctx context.Context, key string, value []byte) error
	// Watch delivers change events for writes by other clients until the
	// context is cancelled or the store is closed.
	Watch(ctx context.Context) (<-chan Event, error)
	// ClientID identifies this client among writers to the shared store.
	ClientID() string
	Close() error
}
