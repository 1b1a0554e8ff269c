package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cursorcli/workspace-mcp/internal/ports"
	"github.com/cursorcli/workspace-mcp/internal/registry"
	"github.com/cursorcli/workspace-mcp/internal/sandbox"
)

func newTestDeps(t *testing.T) (Dependencies, string) {
	t.Helper()
	root := t.TempDir()
	sb, err := sandbox.New(root, nil, nil)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	return Dependencies{
		Sandbox: sb,
		FS:      NewFileSystem(func() int64 { return 1 << 20 }),
		Project: NewProject(root),
		Editor:  NewMockEditor(),
		Model:   NewMockModel(ports.ModelDescriptor{Name: "claude", Provider: "anthropic", CostPerToken: 0.01}),
	}, root
}

func TestRegisterBindsEveryTool(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := registry.New()
	if err := Register(reg, deps); err != nil {
		t.Fatalf("Register: %v", err)
	}

	want := []string{
		"read_file", "write_file", "list_files", "delete_file", "get_file_info",
		"project_info", "glob_search", "workspace_tree",
		"editor_status", "editor_insert", "editor_replace",
		"model_info", "record_usage", "usage_stats",
	}
	for _, name := range want {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("tool %q was not registered", name)
		}
	}
}

func TestReadFileHandlerRoundTripsThroughSandbox(t *testing.T) {
	deps, root := newTestDeps(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	if err := Register(reg, deps); err != nil {
		t.Fatal(err)
	}

	entry, ok := reg.Lookup("read_file")
	if !ok {
		t.Fatal("read_file not registered")
	}
	args, _ := json.Marshal(ReadFileInput{Path: "a.txt"})
	res, err := entry.Handler(context.Background(), args)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(res.Content) != 1 || res.Content[0].Type != "text" {
		t.Fatalf("unexpected result shape: %+v", res)
	}

	var decoded ports.ReadResult
	if err := json.Unmarshal([]byte(res.Content[0].Text), &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded.Content != "payload" {
		t.Errorf("Content = %q, want payload", decoded.Content)
	}
}

func TestReadFileHandlerRejectsEscapingSandbox(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := registry.New()
	if err := Register(reg, deps); err != nil {
		t.Fatal(err)
	}

	entry, _ := reg.Lookup("read_file")
	args, _ := json.Marshal(ReadFileInput{Path: "../../etc/passwd"})
	if _, err := entry.Handler(context.Background(), args); err == nil {
		t.Error("expected an error escaping the sandbox root")
	}
}

func TestEditorInsertHandlerRequiresOpenFile(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := registry.New()
	if err := Register(reg, deps); err != nil {
		t.Fatal(err)
	}

	entry, _ := reg.Lookup("editor_insert")
	args, _ := json.Marshal(EditorInsertInput{Line: 1, Column: 1, Text: "x"})
	if _, err := entry.Handler(context.Background(), args); err == nil {
		t.Error("expected an error when no file is open")
	}
}

func TestRecordUsageAndUsageStatsHandlers(t *testing.T) {
	deps, _ := newTestDeps(t)
	reg := registry.New()
	if err := Register(reg, deps); err != nil {
		t.Fatal(err)
	}

	recordEntry, _ := reg.Lookup("record_usage")
	args, _ := json.Marshal(RecordUsageInput{Model: "claude", PromptTokens: 10, CompletionTokens: 5, DurationMs: 42})
	if _, err := recordEntry.Handler(context.Background(), args); err != nil {
		t.Fatalf("record_usage: %v", err)
	}

	statsEntry, _ := reg.Lookup("usage_stats")
	res, err := statsEntry.Handler(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("usage_stats: %v", err)
	}

	var stats ports.ModelUsageStats
	if err := json.Unmarshal([]byte(res.Content[0].Text), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.SessionCount != 1 || stats.TotalTokens != 15 {
		t.Errorf("got %+v", stats)
	}
}
