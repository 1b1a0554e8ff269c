package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspaceRootArgDefaultsToCwd(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"workspace-mcp"}
	root, err := workspaceRootArg()
	if err != nil {
		t.Fatalf("workspaceRootArg: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if root != cwd {
		t.Errorf("root = %q, want cwd %q", root, cwd)
	}
}

func TestWorkspaceRootArgUsesPositionalPath(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"workspace-mcp", "/tmp/some-workspace"}
	root, err := workspaceRootArg()
	if err != nil {
		t.Fatalf("workspaceRootArg: %v", err)
	}
	if root != "/tmp/some-workspace" {
		t.Errorf("root = %q, want /tmp/some-workspace", root)
	}
}

func TestWorkspaceRootArgIgnoresFlagLikeArgument(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"workspace-mcp", "--debug"}
	root, err := workspaceRootArg()
	if err != nil {
		t.Fatalf("workspaceRootArg: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if root != cwd {
		t.Errorf("root = %q, want cwd %q", root, cwd)
	}
}

func TestApplyIDEEnvAbsentFileIsNotAnError(t *testing.T) {
	if err := applyIDEEnv(t.TempDir(), nil); err != nil {
		t.Fatalf("applyIDEEnv: %v", err)
	}
}

func TestApplyIDEEnvSetsResolvedVariables(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".cursor"), 0o755); err != nil {
		t.Fatal(err)
	}
	settings := `{
		"mcpServers": {
			"workspace-mcp": {
				"command": "workspace-mcp",
				"env": {"MCP_ENV": "production", "PASSTHROUGH": "${IDECONFIG_TEST_VAR}"}
			}
		}
	}`
	if err := os.WriteFile(filepath.Join(root, ideSettingsRelPath), []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("IDECONFIG_TEST_VAR", "resolved-value")
	t.Setenv("MCP_ENV", "")
	t.Setenv("PASSTHROUGH", "")

	if err := applyIDEEnv(root, nil); err != nil {
		t.Fatalf("applyIDEEnv: %v", err)
	}
	if got := os.Getenv("MCP_ENV"); got != "production" {
		t.Errorf("MCP_ENV = %q, want production", got)
	}
	if got := os.Getenv("PASSTHROUGH"); got != "resolved-value" {
		t.Errorf("PASSTHROUGH = %q, want resolved-value", got)
	}
}

func TestApplyIDEEnvSkipsDisabledEntry(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".cursor"), 0o755); err != nil {
		t.Fatal(err)
	}
	settings := `{"mcpServers": {"workspace-mcp": {"command": "workspace-mcp", "disabled": true, "env": {"MCP_ENV": "production"}}}}`
	if err := os.WriteFile(filepath.Join(root, ideSettingsRelPath), []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MCP_ENV", "development")
	if err := applyIDEEnv(root, nil); err != nil {
		t.Fatalf("applyIDEEnv: %v", err)
	}
	if got := os.Getenv("MCP_ENV"); got != "development" {
		t.Errorf("MCP_ENV = %q, want unchanged development", got)
	}
}
