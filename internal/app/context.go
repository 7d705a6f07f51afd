package app

import (
	"context"
	"log/slog"
	"time"

	"assetline/internal/config"
	"assetline/internal/pipeline"
	"assetline/internal/store"
)

// Context bundles everything a command or server needs: the open store,
// the wired pipeline and the loaded config.
type Context struct {
	Config   *config.Config
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Open loads config from workspace, opens the configured store, wires a
// pipeline over it, loads every synchronized key and seeds starter
// rosters for keys that have never been written. The caller owns Close.
func Open(ctx context.Context, workspace string, log *slog.Logger) (*Context, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	return OpenWith(ctx, cfg, log)
}

// OpenWith wires a Context from an already-loaded config.
func OpenWith(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Context, error) {
	if log == nil {
		log = slog.Default()
	}
	st, err := store.Open(store.Config{
		Driver:   store.Driver(cfg.Store.Driver),
		Path:     cfg.Store.Path,
		ClientID: cfg.Client.ID,
	})
	if err != nil {
		return nil, err
	}
	p := pipeline.New(st, pipeline.Options{
		AdminID:     cfg.Admin.User,
		AdminSecret: cfg.Admin.Secret,
		Log:         log,
		Now:         time.Now,
	})
	if err := p.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}
	if err := p.Seed(ctx, cfg.Seed.Users, cfg.Seed.Roles, cfg.Seed.Categories); err != nil {
		st.Close()
		return nil, err
	}
	if cfg.Client.Theme != "" {
		p.SetTheme(cfg.Client.Theme)
	}
	return &Context{Config: cfg, Store: st, Pipeline: p}, nil
}

// Close releases the store.
func (c *Context) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}
