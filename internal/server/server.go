// Package server wires every component into a running MCP server: load
// config, build the sandbox, register tools, build the executor, bind the
// protocol session, and drive it off the stdio transport until shutdown.
//
// The construct-then-Run-then-graceful-shutdown shape is grounded in the
// teacher's cmd/mcp.go runMCP (config.Load -> app.Setup -> mcp.NewServer ->
// Run(ctx, transport) -> deferred Close), generalized here from that
// Genkit-backed app.Setup/mcp.NewServer pair into this server's own
// config/sandbox/registry/executor/protocol construction.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cursorcli/workspace-mcp/internal/config"
	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/executor"
	"github.com/cursorcli/workspace-mcp/internal/jsonrpc"
	"github.com/cursorcli/workspace-mcp/internal/log"
	"github.com/cursorcli/workspace-mcp/internal/ports"
	"github.com/cursorcli/workspace-mcp/internal/protocol"
	"github.com/cursorcli/workspace-mcp/internal/registry"
	"github.com/cursorcli/workspace-mcp/internal/sandbox"
	"github.com/cursorcli/workspace-mcp/internal/tools"
	"github.com/cursorcli/workspace-mcp/internal/transport"
)

// SupportedProtocolVersions is the set of MCP protocol versions this server
// negotiates against during initialize.
var SupportedProtocolVersions = []string{"2024-11-05"}

// DrainBudget bounds how long Shutdown waits for in-flight tool calls to
// finish before closing the transport anyway.
const DrainBudget = 10 * time.Second

// Server owns one workspace's config loader, sandbox, registry, executor,
// protocol session, and stdio transport.
type Server struct {
	workspaceRoot string
	version       string

	loader *config.Loader
	sbx    *sandbox.Sandbox
	reg    *registry.Registry
	exec   *executor.Executor
	sess   *protocol.Session
	tr     *transport.Transport
	logger *slog.Logger

	stopWatch func()
	logFile   *os.File

	wg sync.WaitGroup
}

// New constructs a Server rooted at workspaceRoot. It loads config,
// authorizes the sandbox, builds the registry and executor, registers
// every tool, and binds a protocol session — but does not start the
// transport; call Run for that.
func New(ctx context.Context, workspaceRoot, version string, r io.Reader, w io.Writer, logger *slog.Logger) (*Server, error) {
	loader := config.NewLoader(workspaceRoot)
	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, logFile := applyLoggingConfig(snap.Logging, logger)

	sbx, err := sandbox.New(workspaceRoot, snap.Tools.FileOperations.BlockedPatterns, snap.Tools.FileOperations.AllowedDirectories)
	if err != nil {
		return nil, fmt.Errorf("building sandbox: %w", err)
	}

	reg := registry.New()
	deps := tools.Dependencies{
		Sandbox: sbx,
		FS:      tools.NewFileSystem(func() int64 { return loader.Current().Tools.FileOperations.MaxFileSize }),
		Project: tools.NewProject(sbx.Root()),
		Editor:  tools.NewMockEditor(),
		Model:   tools.NewMockModel(ports.ModelDescriptor{Name: "unknown", Provider: "unknown"}),
	}
	if err := tools.Register(reg, deps); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	reg.ApplyAllowlist(snap.Tools.AllowedTools)

	exec := executor.New(reg, snap.Server.MaxConcurrentRequests, logger)

	sess := protocol.NewSession(
		protocol.ServerInfo{Name: snap.Server.Name, Version: version},
		SupportedProtocolVersions,
		reg, exec, loader, logger,
	)

	tr := transport.New(r, w)

	srv := &Server{
		workspaceRoot: workspaceRoot,
		version:       version,
		loader:        loader,
		sbx:           sbx,
		reg:           reg,
		exec:          exec,
		sess:          sess,
		tr:            tr,
		logger:        logger,
		logFile:       logFile,
	}

	stop, err := loader.Watch(ctx, srv.onReload)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	} else {
		srv.stopWatch = stop
	}

	return srv, nil
}

// applyLoggingConfig builds the operational logger from the loaded config's
// logging section, replacing the bootstrap logger New was given. "file" in
// logging.outputs opens logFile for appending; "console" and
// "cursor-output-panel" both resolve to stderr, since this process has no
// separate channel to the editor's own output panel beyond what it already
// inherits from stderr. If logFile can't be opened, the failure is logged
// through the bootstrap logger and the new logger writes to the remaining
// outputs, or to stderr when none remain.
func applyLoggingConfig(cfg config.LoggingConfig, bootstrap *slog.Logger) (*slog.Logger, *os.File) {
	var writers []io.Writer
	var logFile *os.File

	for _, out := range cfg.Outputs {
		switch out {
		case "console", "cursor-output-panel":
			writers = append(writers, os.Stderr)
		case "file":
			if cfg.LogFile == "" {
				continue
			}
			f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				bootstrap.Warn("failed to open log file, falling back to stderr", "path", cfg.LogFile, "error", err)
				continue
			}
			logFile = f
			writers = append(writers, f)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	logger := log.NewWithWriter(io.MultiWriter(writers...), log.Config{Level: log.LevelFromString(cfg.Level)})
	return logger, logFile
}

func (s *Server) onReload(snap *config.Snapshot) {
	s.reg.ApplyAllowlist(snap.Tools.AllowedTools)
	s.exec.SetLimit(snap.Server.MaxConcurrentRequests)
	s.logger.Info("config reloaded",
		"maxConcurrentRequests", snap.Server.MaxConcurrentRequests,
		"allowedTools", len(snap.Tools.AllowedTools))
}

// Run starts the transport and dispatches every incoming message to the
// protocol session until ctx is cancelled or the transport closes, then
// runs a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	if err := s.tr.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	s.logger.Info("mcp server ready", "workspaceRoot", s.workspaceRoot, "transport", "stdio")

	for {
		select {
		case raw, ok := <-s.tr.Messages():
			if !ok {
				return s.Shutdown()
			}
			s.wg.Add(1)
			go s.handle(ctx, raw)
		case err, ok := <-s.tr.Errors():
			if ok {
				s.logger.Warn("transport frame error", "error", err)
			}
		case <-s.tr.Done():
			return s.Shutdown()
		case <-ctx.Done():
			return s.Shutdown()
		}
	}
}

func (s *Server) handle(ctx context.Context, raw json.RawMessage) {
	defer s.wg.Done()

	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = s.tr.Send(jsonrpc.NewError(jsonrpc.NullID(), errs.CodeParseError, "parse error", nil))
		return
	}

	resp := s.sess.Dispatch(ctx, &req)
	if resp == nil {
		return
	}
	if err := s.tr.Send(*resp); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// Shutdown begins draining: new tools/call requests are rejected, in-flight
// calls get up to DrainBudget to finish, then the transport and config
// watcher are closed.
func (s *Server) Shutdown() error {
	s.sess.BeginDrain()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(DrainBudget):
		s.logger.Warn("shutdown drain budget exceeded, closing anyway")
	}

	s.sess.Close()
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
	return s.tr.Close()
}
