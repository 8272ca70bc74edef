package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyike/FundManagerGo/config"
)

func withTestManager(t *testing.T) (*config.Manager, string) {
	t.Helper()
	dir := t.TempDir()

	mgr, err := config.NewManager(
		config.WithConfigDir(dir),
		config.WithInitialConfig(&config.Config{
			ProjectDir:            dir,
			ResultsDir:            filepath.Join(dir, "results"),
			DataDir:               filepath.Join(dir, "data"),
			FinancialAnalystURL:   "http://localhost:8001/stream",
			PortfolioArchitectURL: "http://localhost:8002/stream",
			RiskManagerURL:        "http://localhost:8003/stream",
		}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	config.SetDefaultManager(mgr)
	t.Cleanup(func() { config.SetDefaultManager(nil) })
	return mgr, dir
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestRootUsesManagedConfig(t *testing.T) {
	_, dir := withTestManager(t)

	runCommand(t, "version")

	// EnsureDirectories ran against the managed config's paths.
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Fatalf("managed data dir not created: %v", err)
	}
}

func TestConfigShowReadsManagedFile(t *testing.T) {
	mgr, _ := withTestManager(t)

	updated := mgr.Get()
	updated.MemoryId = "mem-from-file"
	if err := mgr.Update(updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out := runCommand(t, "config", "show")
	if !strings.Contains(out, "mem-from-file") {
		t.Fatalf("expected managed value in output, got: %s", out)
	}
}

func TestConfigSetMergesAndPersists(t *testing.T) {
	mgr, _ := withTestManager(t)

	out := runCommand(t, "config", "set", `{"memory_id": "mem-cli"}`)
	if !strings.Contains(out, mgr.Path()) {
		t.Fatalf("expected config path in output, got: %s", out)
	}

	if mgr.Get().MemoryId != "mem-cli" {
		t.Fatalf("update not applied: %+v", mgr.Get())
	}
	// Untouched fields survive the merge.
	if mgr.Get().FinancialAnalystURL != "http://localhost:8001/stream" {
		t.Fatalf("merge clobbered unrelated field: %+v", mgr.Get())
	}

	// A fresh manager over the same file sees the persisted value.
	fresh, err := config.NewManager(config.WithConfigPath(mgr.Path()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if fresh.Get().MemoryId != "mem-cli" {
		t.Fatal("update not persisted to disk")
	}
}

func TestConfigSetRejectsBadJSON(t *testing.T) {
	withTestManager(t)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "set", "{not json"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigPathPointsAtManagedFile(t *testing.T) {
	mgr, _ := withTestManager(t)

	out := runCommand(t, "config", "path")
	if strings.TrimSpace(out) != mgr.Path() {
		t.Fatalf("expected %s, got %s", mgr.Path(), out)
	}
}
