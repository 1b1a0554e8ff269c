// Package cmd provides the CLI entry point for the workspace MCP server.
//
// There is exactly one mode: start the server on stdio, rooted at the
// current working directory (or the path given as the first argument).
// Signal handling and graceful shutdown follow the same pattern the
// teacher's cmd package used for its own "mcp" subcommand, simplified
// here since this binary has no other modes to dispatch between.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cursorcli/workspace-mcp/internal/ideconfig"
	"github.com/cursorcli/workspace-mcp/internal/log"
	"github.com/cursorcli/workspace-mcp/internal/server"
)

// ideSettingsRelPath is where an IDE conventionally records this server's
// own launch entry (command/args/env) among its configured MCP servers.
const ideSettingsRelPath = ".cursor/mcp.json"

// serverEntryName is the mcpServers key this binary looks for in the IDE
// settings file.
const serverEntryName = "workspace-mcp"

// Version is injected at build time via ldflags.
var Version = "development"

// Execute is the process entry point. It handles --version/--help before
// any real initialization so they work even if the workspace root is
// unusable, then starts the server on stdio.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("workspace-mcp %s\n", Version)
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	logger := newLogger()
	slog.SetDefault(logger)

	workspaceRoot, err := workspaceRootArg()
	if err != nil {
		return err
	}

	if err := applyIDEEnv(workspaceRoot, logger); err != nil {
		return fmt.Errorf("resolving IDE-supplied environment: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(ctx, workspaceRoot, Version, os.Stdin, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	logger.Info("starting workspace mcp server", "version", Version, "workspaceRoot", workspaceRoot)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("workspace mcp server shut down gracefully")
	return nil
}

// applyIDEEnv reads the IDE's mcp.json (if present) for this server's own
// entry, expands its ${VAR} env references against the process
// environment, and applies them with os.Setenv so downstream config
// loading (notably MCP_ENV) sees whatever the IDE configured. Absence of
// the file, or of this server's entry within it, is not an error — most
// invocations have no such file at all.
func applyIDEEnv(workspaceRoot string, logger *slog.Logger) error {
	data, err := os.ReadFile(filepath.Join(workspaceRoot, ideSettingsRelPath))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", ideSettingsRelPath, err)
	}

	var doc struct {
		McpServers map[string]ideconfig.Server `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", ideSettingsRelPath, err)
	}

	entry, ok := doc.McpServers[serverEntryName]
	if !ok || entry.Disabled {
		return nil
	}

	resolved, err := ideconfig.ExpandEnv(entry, ideconfig.Lenient, logger)
	if err != nil {
		return err
	}
	for k, v := range resolved {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}

// workspaceRootArg returns the workspace root: the first argument if it does
// not start with '-', otherwise the current working directory. Later
// arguments are not examined.
func workspaceRootArg() (string, error) {
	if len(os.Args) > 1 && os.Args[1][0] != '-' {
		return os.Args[1], nil
	}
	return os.Getwd()
}

// newLogger builds the bootstrap logger used before the workspace's own
// logging config has been loaded (it only governs the logging section once
// server.New reads it). Stderr only: stdout is reserved for JSON-RPC frames.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

func printHelp() {
	fmt.Println("workspace-mcp - local MCP server exposing a workspace's file, project,")
	fmt.Println("editor, and model surface to AI clients over stdio JSON-RPC.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  workspace-mcp [path]   Start the server, rooted at path (default: cwd)")
	fmt.Println("  workspace-mcp --version  Show version information")
	fmt.Println("  workspace-mcp --help     Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DEBUG     Optional: enable debug logging")
	fmt.Println("  MCP_ENV   Optional: environment name (development/production);")
	fmt.Println("            gates whether error responses include a stack trace")
}
