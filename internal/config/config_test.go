package config_test

import (
	"strings"
	"testing"

	"assetline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Admin.User != "Admin" {
		t.Fatalf("default admin user: %q", cfg.Admin.User)
	}
	if cfg.Store.Driver != "fs" {
		t.Fatalf("default driver: %q", cfg.Store.Driver)
	}
	if len(cfg.Seed.Roles) == 0 || len(cfg.Seed.Categories) == 0 {
		t.Fatalf("default seed rosters empty")
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault()))
	if err != nil {
		t.Fatalf("generated template must parse: %v", err)
	}
	if cfg.Server.BasePath != "/api/v1" {
		t.Fatalf("base path: %q", cfg.Server.BasePath)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing admin user",
			"store:\n  driver: memory\n",
			"admin.user",
		},
		{
			"unknown driver",
			"admin:\n  user: Admin\nstore:\n  driver: redis\n",
			"driver",
		},
		{
			"fs driver without path",
			"admin:\n  user: Admin\nstore:\n  driver: fs\n",
			"store.path",
		},
		{
			"empty seed entry",
			"admin:\n  user: Admin\nstore:\n  driver: memory\nseed:\n  users: [\"\"]\n",
			"seed.users",
		},
	}
	for _, tc := range cases {
		_, err := config.FromYAML([]byte(tc.yaml))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: want error about %s, got %v", tc.name, tc.want, err)
		}
	}
}
