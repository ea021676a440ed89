package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/loykin/devrun/internal/registry"
)

func TestStatusCommandEmptyRegistry(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"status", "--pid-dir", filepath.Join(t.TempDir(), "pids")})

	if err := root.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "no recorded processes") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStopCommandEmptyRegistryIsNoop(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"stop", "--pid-dir", filepath.Join(t.TempDir(), "pids"), "--no-color"})

	if err := root.Execute(); err != nil {
		t.Fatalf("stop on empty registry: %v", err)
	}
}

func TestStopCommandClearsStaleRecord(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires unix process semantics")
	}
	probe := exec.Command("true")
	if err := probe.Run(); err != nil {
		t.Fatalf("probe run: %v", err)
	}

	dir := t.TempDir()
	reg := registry.New(dir)
	if err := reg.Record("stale", probe.Process.Pid); err != nil {
		t.Fatalf("Record: %v", err)
	}

	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"stop", "--pid-dir", dir, "--no-color"})
	if err := root.Execute(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	recs, err := reg.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("stale record survived stop: %+v", recs)
	}
}

func TestSecondInterruptDuringTeardownIsAbsorbed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires unix signal semantics")
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "devrun.toml")
	cfg := "[[services]]\nname = \"svc\"\ncommand = \"sleep 30\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	pidDir := filepath.Join(dir, "pids")

	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", cfgPath, "--pid-dir", pidDir, "--no-color"})

	errCh := make(chan error, 1)
	go func() { errCh <- root.Execute() }()

	// The interrupt handler is installed before launching, so once the
	// pidfile exists the signal below is guaranteed to be caught.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(pidDir, "svc.pid")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("service never launched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	self, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	// Two rapid interrupts: the first starts teardown, the second must be
	// absorbed by the still-installed handler rather than killing the
	// supervisor mid-cleanup.
	_ = self.Signal(os.Interrupt)
	_ = self.Signal(os.Interrupt)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("up after interrupt: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("up did not return after interrupt")
	}
}

func TestLoadConfigFallsBackToDefault(t *testing.T) {
	fc, err := loadConfig(&GlobalFlags{PidDir: "override"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if fc.PidDir != "override" {
		t.Fatalf("PidDir = %q", fc.PidDir)
	}
	if len(fc.Services) != 2 {
		t.Fatalf("default services = %+v", fc.Services)
	}
}
