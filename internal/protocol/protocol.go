// Package protocol implements the MCP handshake and method dispatch state
// machine (C6): initialize/tools-list/tools-call, id preservation, and the
// monotonic Uninitialized -> Initialized -> Draining -> Closed session
// lifecycle.
//
// The state-guarded dispatch table (a method is only reachable from certain
// states, everything else fails closed) follows the same shape as the
// teacher's MCP server setup in internal/mcp/server.go, generalized here
// from delegating to the official SDK's internal state machine to owning
// the states directly, since this spec requires the executor's admission
// and deadline semantics to sit between dispatch and the handler — a seam
// the SDK's own Run loop does not expose.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cursorcli/workspace-mcp/internal/config"
	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/executor"
	"github.com/cursorcli/workspace-mcp/internal/jsonrpc"
	"github.com/cursorcli/workspace-mcp/internal/registry"
)

// State is a value of the session lifecycle.
type State int

const (
	Uninitialized State = iota
	Initialized
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initialized:
		return "Initialized"
	case Draining:
		return "Draining"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ServerInfo is the process-wide, constant-at-startup server identity.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientInfo is captured once at handshake and never mutated thereafter.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities is the fixed capability set this server advertises. Neither
// side of the handshake negotiates capability contents beyond presence —
// the server always advertises exactly {tools:{}, logging:{}}.
type Capabilities struct {
	Tools   map[string]any `json:"tools"`
	Logging map[string]any `json:"logging"`
}

func defaultCapabilities() Capabilities {
	return Capabilities{Tools: map[string]any{}, Logging: map[string]any{}}
}

type initializeParams struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ClientInfo      ClientInfo   `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []registry.Descriptor `json:"tools"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ConfigSource exposes the currently published config Snapshot to the
// protocol layer, which reads it fresh on every tools/call to honor
// hot-reloaded limits without holding a lock across the call.
type ConfigSource interface {
	Current() *config.Snapshot
}

// Session drives one client connection's handshake and dispatch. It is
// safe for concurrent Dispatch calls — the protocol MAY complete out of
// order, per §5's ordering guarantees — but Dispatch itself never blocks on
// another in-flight call.
type Session struct {
	mu    sync.Mutex
	state State

	serverInfo        ServerInfo
	supportedVersions []string
	negotiatedVersion string
	clientInfo        ClientInfo

	reg    *registry.Registry
	exec   *executor.Executor
	cfg    ConfigSource
	logger *slog.Logger
}

// NewSession creates a session in the Uninitialized state.
func NewSession(serverInfo ServerInfo, supportedVersions []string, reg *registry.Registry, exec *executor.Executor, cfg ConfigSource, logger *slog.Logger) *Session {
	return &Session{
		state:             Uninitialized,
		serverInfo:        serverInfo,
		supportedVersions: append([]string(nil), supportedVersions...),
		reg:               reg,
		exec:              exec,
		cfg:               cfg,
		logger:            logger,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch handles one inbound request and returns the response to write,
// or nil if req was a notification (no id, no reply expected).
func (s *Session) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	resp := s.dispatch(ctx, req)
	if !req.HasID() {
		return nil
	}
	return &resp
}

func (s *Session) dispatch(ctx context.Context, req *jsonrpc.Request) jsonrpc.Response {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state == Closed || state == Draining {
		if req.Method == "tools/call" {
			return s.errResponse(req.ID, errs.New(errs.KindServerShuttingDown, "server is shutting down"))
		}
	}

	switch req.Method {
	case "initialize":
		// Transitions are monotonic (state machine invariant): initialize only
		// ever moves Uninitialized -> Initialized. A Draining or Closed session
		// must never be driven back to Initialized by a repeated handshake.
		switch state {
		case Closed:
			return s.errResponse(req.ID, errs.New(errs.KindSessionClosed, "session is closed"))
		case Draining:
			return s.errResponse(req.ID, errs.New(errs.KindServerShuttingDown, "server is shutting down"))
		default:
			return s.handleInitialize(req)
		}
	default:
		if state == Uninitialized {
			return s.errResponse(req.ID, errs.New(errs.KindNotInitialized, "session has not been initialized", "method", req.Method))
		}
	}

	switch req.Method {
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return jsonrpc.NewError(req.ID, errs.CodeMethodNotFound, "method not found", map[string]any{"method": req.Method})
	}
}

func (s *Session) handleInitialize(req *jsonrpc.Request) jsonrpc.Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.errResponse(req.ID, errs.Wrap(errs.KindInvalidArguments, err, "invalid initialize params"))
		}
	}

	if !contains(s.supportedVersions, params.ProtocolVersion) {
		return s.errResponse(req.ID, errs.New(errs.KindUnsupportedProtocolVersion,
			"unsupported protocol version",
			"received", params.ProtocolVersion, "supported", s.supportedVersions))
	}

	s.mu.Lock()
	s.clientInfo = params.ClientInfo
	s.negotiatedVersion = params.ProtocolVersion
	s.state = Initialized
	s.mu.Unlock()

	return jsonrpc.NewResult(req.ID, initializeResult{
		ProtocolVersion: params.ProtocolVersion,
		Capabilities:    defaultCapabilities(),
		ServerInfo:      s.serverInfo,
	})
}

func (s *Session) handleToolsList(req *jsonrpc.Request) jsonrpc.Response {
	return jsonrpc.NewResult(req.ID, toolsListResult{Tools: s.reg.List()})
}

func (s *Session) handleToolsCall(ctx context.Context, req *jsonrpc.Request) jsonrpc.Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errResponse(req.ID, errs.Wrap(errs.KindInvalidArguments, err, "invalid tools/call params"))
	}

	snap := s.cfg.Current()
	timeout := time.Duration(snap.Server.RequestTimeoutMs) * time.Millisecond

	result, err := s.exec.Execute(ctx, params.Name, params.Arguments, timeout)
	if err != nil {
		domainErr, ok := err.(*errs.Error)
		if !ok {
			domainErr = errs.Wrap(errs.KindInternalError, err, "tool call failed")
		}
		return s.errResponse(req.ID, domainErr)
	}
	return jsonrpc.NewResult(req.ID, result)
}

// Close transitions the session to Closed from any state; in-flight calls'
// contexts (derived from the ctx passed to Dispatch) are the caller's
// responsibility to cancel — Session only tracks the state transition
// clients observe through subsequent dispatch attempts.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Closed {
		s.state = Closed
	}
}

// BeginDrain transitions to Draining: new tools/call requests are rejected
// with ServerShuttingDown while in-flight calls are still awaited by the
// caller.
func (s *Session) BeginDrain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Initialized {
		s.state = Draining
	}
}

// errResponse maps a taxonomy error to its JSON-RPC response, including a
// stack trace in data only outside the production environment, per §7's
// "when the environment is not production" clause.
func (s *Session) errResponse(id jsonrpc.ID, err *errs.Error) jsonrpc.Response {
	data := map[string]any{"kind": string(err.Kind)}
	for k, v := range err.Context {
		data[k] = v
	}
	if s.cfg != nil {
		if snap := s.cfg.Current(); snap != nil && snap.Server.Environment != "production" && err.Stack != "" {
			data["stack"] = err.Stack
		}
	}
	return jsonrpc.NewError(id, errs.Code(err.Kind), err.Message, data)
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
