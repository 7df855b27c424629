package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("unexpected listen: %s", cfg.Server.Listen)
	}
	if cfg.Relay.Admin != "admin" || cfg.Relay.SweepSchedule != "@every 1m" {
		t.Fatalf("unexpected relay config: %#v", cfg.Relay)
	}
	if cfg.Chain.LocalID != 1 {
		t.Fatalf("unexpected local chain: %d", cfg.Chain.LocalID)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
  rate_limit: 10
database:
  dsn: "postgres://localhost/relay"
chain:
  local_id: 5
  rpc_url: "http://localhost:10332"
relay:
  admin: "operator"
  sweep_schedule: "@every 30s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":9090" || cfg.Server.RateLimit != 10 {
		t.Fatalf("unexpected server config: %#v", cfg.Server)
	}
	if cfg.Database.DSN != "postgres://localhost/relay" {
		t.Fatalf("unexpected dsn: %s", cfg.Database.DSN)
	}
	if cfg.Chain.LocalID != 5 || cfg.Chain.RPCURL != "http://localhost:10332" {
		t.Fatalf("unexpected chain config: %#v", cfg.Chain)
	}
	if cfg.Relay.Admin != "operator" || cfg.Relay.SweepSchedule != "@every 30s" {
		t.Fatalf("unexpected relay config: %#v", cfg.Relay)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
relay:
  admin: "operator"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("default listen lost: %s", cfg.Server.Listen)
	}
	if cfg.Relay.Admin != "operator" {
		t.Fatalf("override lost: %s", cfg.Relay.Admin)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, `
relay:
  admin: ""
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for empty admin")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_DATABASE_DSN", "postgres://env/relay")
	t.Setenv("RELAY_AUTH_SECRET", "env-secret")
	t.Setenv("RELAY_LISTEN", ":7070")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DSN != "postgres://env/relay" {
		t.Fatalf("dsn override lost: %s", cfg.Database.DSN)
	}
	if cfg.Server.AuthSecret != "env-secret" {
		t.Fatalf("secret override lost: %s", cfg.Server.AuthSecret)
	}
	if cfg.Server.Listen != ":7070" {
		t.Fatalf("listen override lost: %s", cfg.Server.Listen)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
