// Package config implements the configuration lifecycle: load the
// workspace's JSON config file (writing defaults on first run), validate it
// against the bounded schema, overlay a fixed set of environment variables,
// and publish the result as an atomically-swapped, immutable Snapshot that
// every other component reads without locking.
//
// The layered load (defaults -> file -> env overlay) and the JSON
// marshaling shape follow the teacher's viper-based config package; unlike
// that package's global package-level viper instance, Loader holds its own
// *viper.Viper per instance so that concurrent Loaders (one real, one under
// test) never share hidden global state.
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/cursorcli/workspace-mcp/internal/errs"
)

// DefaultRelPath is where the config file lives relative to the workspace
// root, per the configuration file contract.
const DefaultRelPath = ".cursorcli-mcp/config.json"

// ServerConfig is the server identity and admission/timeout limits section.
type ServerConfig struct {
	Name                  string `json:"name" mapstructure:"name"`
	Version               string `json:"version" mapstructure:"version"`
	MaxConcurrentRequests int    `json:"maxConcurrentRequests" mapstructure:"maxConcurrentRequests"`
	RequestTimeoutMs      int    `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
	// Environment gates whether error responses carry a stack trace (§7:
	// "when the environment is not production"). Defaults to development.
	Environment string `json:"environment,omitempty" mapstructure:"environment"`
}

// FileOperationsConfig bounds what FileSystemPort handlers may touch.
type FileOperationsConfig struct {
	MaxFileSize        int64    `json:"maxFileSize" mapstructure:"maxFileSize"`
	AllowedDirectories []string `json:"allowedDirectories" mapstructure:"allowedDirectories"`
	BlockedPatterns    []string `json:"blockedPatterns" mapstructure:"blockedPatterns"`
}

// ToolsConfig is the tool allowlist and file-operation limits section.
type ToolsConfig struct {
	AllowedTools   []string             `json:"allowedTools" mapstructure:"allowedTools"`
	FileOperations FileOperationsConfig `json:"fileOperations" mapstructure:"fileOperations"`
}

// LoggingConfig controls level, sinks, and rotation.
type LoggingConfig struct {
	Level         string   `json:"level" mapstructure:"level"`
	Outputs       []string `json:"outputs" mapstructure:"outputs"`
	LogFile       string   `json:"logFile,omitempty" mapstructure:"logFile"`
	MaxLogSizeMiB int      `json:"maxLogSize" mapstructure:"maxLogSize"`
	RotationCount int      `json:"rotationCount" mapstructure:"rotationCount"`
}

// SecurityConfig holds the two sandbox-adjacent switches.
type SecurityConfig struct {
	EnforceProjectRoot         bool `json:"enforceProjectRoot" mapstructure:"enforceProjectRoot"`
	AllowDestructiveOperations bool `json:"allowDestructiveOperations" mapstructure:"allowDestructiveOperations"`
}

// Snapshot is the immutable configuration record every component reads.
// Once built it is never mutated; a reload produces a new Snapshot and
// swaps the Loader's published pointer.
type Snapshot struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Tools    ToolsConfig    `json:"tools" mapstructure:"tools"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Security SecurityConfig `json:"security" mapstructure:"security"`
}

// Default returns the built-in default snapshot written on first run.
func Default() *Snapshot {
	return &Snapshot{
		Server: ServerConfig{
			Name:                  "workspace-mcp",
			Version:               "0.1.0",
			MaxConcurrentRequests: 8,
			RequestTimeoutMs:      5000,
			Environment:           "development",
		},
		Tools: ToolsConfig{
			AllowedTools: []string{
				"read_file", "write_file", "list_files", "delete_file", "get_file_info",
				"project_info", "glob_search", "workspace_tree",
				"editor_status", "editor_insert", "editor_replace",
				"model_info", "record_usage", "usage_stats",
			},
			FileOperations: FileOperationsConfig{
				MaxFileSize:        10 * 1024 * 1024,
				AllowedDirectories: nil,
				BlockedPatterns:    []string{"**/node_modules/**", "**/.git/**"},
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Outputs:       []string{"console"},
			MaxLogSizeMiB: 10,
			RotationCount: 5,
		},
		Security: SecurityConfig{
			EnforceProjectRoot:          true,
			AllowDestructiveOperations: false,
		},
	}
}

// MarshalJSON is defined explicitly, rather than relying on the default
// struct encoding, so that a future sensitive field added anywhere in the
// tree has an obvious seam to add redaction to — mirroring the teacher's
// maskSecret convention even though nothing in this schema is sensitive
// today.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	type shadow Snapshot
	return json.Marshal((*shadow)(s))
}

// ReloadCallback is invoked after every successful hot reload, and also
// after a validation failure (with the fallback-to-defaults snapshot), so
// consumers always observe a coherent Snapshot.
type ReloadCallback func(*Snapshot)

// Loader owns one workspace's config file path, its own *viper.Viper
// instance, the single-flight guard over Load, and the currently published
// Snapshot.
type Loader struct {
	workspaceRoot string
	absPath       string

	current atomic.Pointer[Snapshot]

	sfMu       sync.Mutex
	sfInFlight *loadCall

	watcher *watcher
}

// loadCall is the hand-rolled single-flight primitive: the first caller to
// observe sfInFlight == nil creates one, performs the real load, and wakes
// every caller that arrived while it was running with the same result. No
// repository in the retrieved corpus imports golang.org/x/sync/singleflight
// (the one corpus use of golang.org/x/sync is errgroup, for an unrelated
// fan-out concern), so this is hand-rolled rather than grounded on a
// library — see the config entry in DESIGN.md.
type loadCall struct {
	done   chan struct{}
	result *Snapshot
	err    error
}

// NewLoader creates a Loader rooted at workspaceRoot, whose config file
// lives at workspaceRoot/.cursorcli-mcp/config.json.
func NewLoader(workspaceRoot string) *Loader {
	return &Loader{
		workspaceRoot: workspaceRoot,
		absPath:       filepath.Join(workspaceRoot, filepath.FromSlash(DefaultRelPath)),
	}
}

// Current returns the most recently published Snapshot, or nil if Load has
// never succeeded.
func (l *Loader) Current() *Snapshot {
	return l.current.Load()
}

// Load implements the four-step load algorithm: write-default-if-absent,
// else read+parse+validate, env overlay, then atomic publish. Concurrent
// callers share one in-flight operation and all observe its result.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	l.sfMu.Lock()
	if call := l.sfInFlight; call != nil {
		l.sfMu.Unlock()
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	l.sfInFlight = call
	l.sfMu.Unlock()

	snap, err := l.doLoad()

	l.sfMu.Lock()
	l.sfInFlight = nil
	l.sfMu.Unlock()

	call.result, call.err = snap, err
	close(call.done)

	if err != nil {
		return nil, err
	}
	l.current.Store(snap)
	return snap, nil
}

func (l *Loader) doLoad() (*Snapshot, error) {
	_, statErr := os.Stat(l.absPath)
	if os.IsNotExist(statErr) {
		return l.writeDefault()
	}
	if statErr != nil {
		return nil, errs.Wrap(errs.KindInternalError, statErr, "stat config file", "path", l.absPath)
	}

	v := viper.New()
	v.SetConfigFile(l.absPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "read config file", "path", l.absPath)
	}

	var snap Snapshot
	if err := v.Unmarshal(&snap); err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "parse config file", "path", l.absPath)
	}

	if err := Validate(&snap); err != nil {
		return nil, err
	}

	overlayEnv(&snap)
	return &snap, nil
}

func (l *Loader) writeDefault() (*Snapshot, error) {
	snap := Default()

	if err := os.MkdirAll(filepath.Dir(l.absPath), 0o755); err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "create config directory", "path", filepath.Dir(l.absPath))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "marshal default config", "path", l.absPath)
	}
	if err := os.WriteFile(l.absPath, data, 0o644); err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "write default config", "path", l.absPath)
	}

	return snap, nil
}

// Path returns the absolute path of the config file this Loader reads.
func (l *Loader) Path() string { return l.absPath }
