// Package store selects a shared key-value backend and re-exports the
// core contract so call sites depend on one import.
package store

import (
	"fmt"

	"github.com/google/uuid"

	"assetline/internal/store/core"
	"assetline/internal/store/fs"
	"assetline/internal/store/memory"
	"assetline/internal/store/sqlite"
)

type (
	Store = core.Store
	Event = core.Event
)

var ErrNotFound = core.ErrNotFound

// Driver names a store backend.
type Driver string

const (
	DriverFS     Driver = "fs"
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// Config selects and parameterizes a backend.
type Config struct {
	Driver   Driver
	Path     string // directory (fs) or database file (sqlite)
	ClientID string // generated when empty
}

// Open constructs the configured backend. The memory driver serves a
// single process only and is primarily for tests.
func Open(cfg Config) (Store, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}
	switch cfg.Driver {
	case DriverFS, "":
		return fs.New(cfg.Path, clientID)
	case DriverSQLite:
		return sqlite.Open(cfg.Path, clientID)
	case DriverMemory:
		return memory.NewHub().Client(clientID), nil
	default:
		return nil, fmt.Errorf("unknown store driver %s", cfg.Driver)
	}
}
