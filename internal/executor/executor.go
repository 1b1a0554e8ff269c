// Package executor implements the Tool Executor (C5): schema validation,
// non-blocking admission under a resizable counting semaphore, and a
// deadline race against cooperative cancellation.
//
// The cancellation-context-per-call shape, and discarding a handler's late
// result after its deadline has already been answered, are grounded in the
// per-request context.WithCancelCause tracking of
// ggoodman-mcp-server-go/internal/engine.go's handleToolCall; unlike that
// engine (which tracks cancellation by request id for out-of-band client
// cancellation notifications), admission here is a resizable atomic counter
// rather than a fixed-size channel semaphore, so a config hot-reload can
// change maxConcurrentRequests without tearing down in-flight calls.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/registry"
)

// Executor admits, validates, and races tool calls against a deadline.
type Executor struct {
	reg *registry.Registry

	inFlight atomic.Int64
	limit    atomic.Int64

	logger *slog.Logger
}

// New creates an Executor bound to reg, with an initial concurrency limit.
func New(reg *registry.Registry, initialLimit int, logger *slog.Logger) *Executor {
	e := &Executor{reg: reg, logger: logger}
	e.limit.Store(int64(initialLimit))
	return e
}

// SetLimit updates the concurrency limit in place, per the config
// lifecycle's "update limits without tearing down" requirement.
func (e *Executor) SetLimit(n int) {
	e.limit.Store(int64(n))
}

// InFlight reports the current number of admitted, not-yet-completed
// calls — exposed for tests and diagnostics.
func (e *Executor) InFlight() int64 {
	return e.inFlight.Load()
}

// Execute implements the five-step contract: lookup, admit, validate,
// race-the-deadline, release. ctx is the caller's (protocol-layer) context;
// timeout is requestTimeoutMs from the current config snapshot at call
// time.
func (e *Executor) Execute(ctx context.Context, name string, rawArgs json.RawMessage, timeout time.Duration) (*registry.Result, error) {
	callable, ok := e.reg.Lookup(name)
	if !ok {
		return nil, errs.New(errs.KindToolNotFound, "tool not registered", "tool", name)
	}
	if !callable.Enabled {
		return nil, errs.New(errs.KindToolDisabled, "tool is disabled", "tool", name)
	}

	if !e.tryAcquire() {
		return nil, errs.New(errs.KindConcurrencyLimitExceeded, "no execution permit available",
			"tool", name, "limit", e.limit.Load())
	}
	defer e.release()

	if err := callable.ValidateArgs(rawArgs); err != nil {
		return nil, err
	}

	ticketID := uuid.NewString()
	deadline := time.Now().Add(timeout)
	log := e.logger.With("ticket", ticketID, "tool", name)

	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	type outcome struct {
		result *registry.Result
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		result, err := callable.Handler(callCtx, rawArgs)
		resultCh <- outcome{result, err}
	}()

	select {
	case o := <-resultCh:
		if o.err != nil {
			return nil, wrapHandlerError(o.err)
		}
		return o.result, nil
	case <-callCtx.Done():
		log.Warn("tool call deadline exceeded, cancelling handler", "timeoutMs", timeout.Milliseconds())
		return nil, errs.New(errs.KindTimeout, "tool call exceeded its deadline",
			"tool", name, "timeoutMs", timeout.Milliseconds())
	}
}

func (e *Executor) tryAcquire() bool {
	for {
		cur := e.inFlight.Load()
		if cur >= e.limit.Load() {
			return false
		}
		if e.inFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (e *Executor) release() {
	e.inFlight.Add(-1)
}

// wrapHandlerError maps an external-collaborator error to the taxonomy's
// InternalError kind unless it already carries a taxonomy Kind (a handler
// is free to return an *errs.Error directly, e.g. NotFound for a missing
// file).
func wrapHandlerError(err error) error {
	var taxonomy *errs.Error
	if errors.As(err, &taxonomy) {
		return err
	}
	return errs.Wrap(errs.KindInternalError, err, "tool handler failed")
}
