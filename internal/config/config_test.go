package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLoadWritesDefaultOnFirstRun(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)

	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Server.Name != "workspace-mcp" {
		t.Errorf("Server.Name = %q, want workspace-mcp", snap.Server.Name)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	var onDisk Snapshot
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parsing written config: %v", err)
	}
	if onDisk.Server.Version != snap.Server.Version {
		t.Errorf("on-disk version = %q, want %q", onDisk.Server.Version, snap.Server.Version)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".cursorcli-mcp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	custom := Default()
	custom.Server.MaxConcurrentRequests = 42
	data, err := json.Marshal(custom)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(root)
	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Server.MaxConcurrentRequests != 42 {
		t.Errorf("MaxConcurrentRequests = %d, want 42", snap.Server.MaxConcurrentRequests)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".cursorcli-mcp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	bad := Default()
	bad.Server.MaxConcurrentRequests = 0
	data, _ := json.Marshal(bad)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(root)
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("first Load (writes default): %v", err)
	}

	t.Setenv(envLogLevel, "debug")
	t.Setenv(envMaxConcurrent, "17")
	t.Setenv(envRequestTimeoutMs, "not-a-number")

	// A fresh Loader forces re-reading the file now that it exists, rather
	// than reusing the first Loader's in-memory Current().
	l2 := NewLoader(root)
	snap, err := l2.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", snap.Logging.Level)
	}
	if snap.Server.MaxConcurrentRequests != 17 {
		t.Errorf("MaxConcurrentRequests = %d, want 17", snap.Server.MaxConcurrentRequests)
	}
	if snap.Server.RequestTimeoutMs != Default().Server.RequestTimeoutMs {
		t.Errorf("malformed env overlay should be ignored, got RequestTimeoutMs = %d", snap.Server.RequestTimeoutMs)
	}
}

func TestLoadConcurrentCallersShareOneOperation(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)

	const n = 20
	var wg sync.WaitGroup
	results := make([]*Snapshot, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.Load(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if results[i] == nil {
			t.Fatalf("caller %d: nil snapshot", i)
		}
	}
}

func TestWatchHotReload(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("initial Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *Snapshot, 4)
	stop, err := l.Watch(ctx, func(s *Snapshot) { received <- s })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	updated := Default()
	updated.Logging.Level = "debug"
	data, _ := json.Marshal(updated)
	if err := os.WriteFile(l.Path(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case snap := <-received:
		if snap.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %q, want debug", snap.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hot reload callback")
	}
}
