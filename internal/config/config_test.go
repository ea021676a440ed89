package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devrun.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
env = ["NODE_ENV=development"]
pid_dir = "run/pids"

[log]
dir = "logs"

[history]
dsn = "sqlite://history.db"

[server]
listen = "127.0.0.1:9180"

[[services]]
name = "backend"
command = "go run ."
workdir = "backend/go"
color = "blue"

[[services]]
name = "frontend"
command = "npm run dev"
workdir = "frontend"
color = "green"
interactive = true

[services.log]
dir = "frontend-logs"
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.PidDir != "run/pids" {
		t.Fatalf("PidDir = %q", fc.PidDir)
	}
	if fc.History.DSN != "sqlite://history.db" {
		t.Fatalf("History.DSN = %q", fc.History.DSN)
	}
	if fc.Server.Listen != "127.0.0.1:9180" {
		t.Fatalf("Server.Listen = %q", fc.Server.Listen)
	}
	if len(fc.Env) != 1 || fc.Env[0] != "NODE_ENV=development" {
		t.Fatalf("Env = %v", fc.Env)
	}

	specs, err := fc.Specs()
	if err != nil {
		t.Fatalf("Specs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("want 2 specs, got %d", len(specs))
	}
	if specs[0].Name != "backend" || specs[0].Interactive {
		t.Fatalf("backend spec = %+v", specs[0])
	}
	if !specs[1].Interactive {
		t.Fatalf("frontend should be interactive")
	}
	// Global [log] folds into services without an override.
	if specs[0].Log.Dir != "logs" {
		t.Fatalf("backend log dir = %q", specs[0].Log.Dir)
	}
	if specs[1].Log.Dir != "frontend-logs" {
		t.Fatalf("frontend log dir = %q", specs[1].Log.Dir)
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeConfig(t, `
[[services]]
name = "svc"
command = "true"

[[services]]
name = "svc"
command = "false"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected duplicate-name error")
	}
}

func TestLoadRejectsUnknownColor(t *testing.T) {
	path := writeConfig(t, `
[[services]]
name = "svc"
command = "true"
color = "chartreuse"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown-color error")
	}
}

func TestLoadRejectsEmptyServices(t *testing.T) {
	path := writeConfig(t, `pid_dir = "pids"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected no-services error")
	}
}

func TestDefaultSession(t *testing.T) {
	fc := Default()
	if fc.PidDir != DefaultPidDir {
		t.Fatalf("PidDir = %q", fc.PidDir)
	}
	specs, err := fc.Specs()
	if err != nil {
		t.Fatalf("Specs: %v", err)
	}
	if len(specs) != 2 || specs[0].Name != "backend" || specs[1].Name != "frontend" {
		t.Fatalf("default specs = %+v", specs)
	}
	if specs[0].Interactive || !specs[1].Interactive {
		t.Fatalf("only the frontend dev server prompts on exit: %+v", specs)
	}
}
