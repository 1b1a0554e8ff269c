// Package transport implements the newline-delimited JSON-RPC framing over
// stdio described by the framed transport contract: one JSON value per
// line, buffered across reads, with malformed frames surfaced as events
// rather than fatal errors.
//
// The read loop pattern (background goroutine, context-driven shutdown,
// WaitGroup-tracked drain) is grounded in the daemon accept loop of the
// retrieved corpus; unlike that per-connection json.Decoder loop, this
// transport must retain a partial trailing line across reads itself, since
// stdio is one long-lived stream rather than a fresh connection per
// message.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotConnected is returned by Send when the transport has not been
// started, or has already been closed.
var ErrNotConnected = errors.New("transport: not connected")

// ErrAlreadyClosed is returned by Start when called after Close.
var ErrAlreadyClosed = errors.New("transport: already closed")

// InvalidFrameError wraps a line that failed to parse as JSON. It never
// terminates the stream — the transport keeps reading subsequent lines.
type InvalidFrameError struct {
	Line []byte
	Err  error
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("transport: invalid frame: %v", e.Err)
}

func (e *InvalidFrameError) Unwrap() error { return e.Err }

// Transport reads newline-delimited JSON values from r and writes
// newline-terminated JSON values to w. It is the sole owner of the read
// loop goroutine it starts; Close stops that goroutine and closes Done
// (Messages and Errors are never closed), without touching r or w themselves so that other
// consumers of the same underlying streams (e.g. a shared os.Stdin used by
// signal handling) are unaffected.
type Transport struct {
	r *bufio.Reader
	w io.Writer

	writeMu sync.Mutex

	messages chan json.RawMessage
	errs     chan error
	done     chan struct{}

	stateMu sync.Mutex
	started bool
	closed  bool
	closeFn func()
}

// New creates a Transport bound to the given reader and writer. Nothing is
// read or written until Start is called.
func New(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		r:        bufio.NewReader(r),
		w:        w,
		messages: make(chan json.RawMessage, 32),
		errs:     make(chan error, 32),
		done:     make(chan struct{}),
	}
}

// Messages yields each successfully parsed JSON value in arrival order.
func (t *Transport) Messages() <-chan json.RawMessage { return t.messages }

// Errors yields InvalidFrameError events (and any read error other than
// io.EOF, which instead closes Done). Errors here never close the stream.
func (t *Transport) Errors() <-chan error { return t.errs }

// Done is closed exactly once, when the input stream reaches EOF or the
// transport is explicitly closed.
func (t *Transport) Done() <-chan struct{} { return t.done }

// Start attaches the read loop. It is idempotent before Close is called
// (calling it twice is a no-op returning nil the second time) and fails
// with ErrAlreadyClosed if the transport has already been closed.
func (t *Transport) Start(ctx context.Context) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if t.closed {
		return ErrAlreadyClosed
	}
	if t.started {
		return nil
	}
	t.started = true

	readCtx, cancel := context.WithCancel(ctx)
	t.closeFn = cancel

	go t.readLoop(readCtx)
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	defer t.finish()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := t.r.ReadBytes('\n')
		if len(line) > 0 {
			t.handleLine(bytes.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case t.errs <- err:
				case <-ctx.Done():
				}
			}
			return
		}
	}
}

func (t *Transport) handleLine(line []byte) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return
	}
	if !json.Valid(trimmed) {
		select {
		case t.errs <- &InvalidFrameError{Line: append([]byte(nil), trimmed...), Err: fmt.Errorf("not valid JSON")}:
		default:
		}
		return
	}
	msg := json.RawMessage(append([]byte(nil), trimmed...))
	t.messages <- msg
}

func (t *Transport) finish() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.closed = true

	// Close may already have marked the transport closed; Done is still
	// open in that case, since only an unstarted transport's Close closes it.
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

// Send writes serialize(message) followed by a single newline byte. Writes
// from concurrent callers are serialized so multiple in-flight tool calls
// completing out of order never interleave their bytes on the wire.
func (t *Transport) Send(message any) error {
	t.stateMu.Lock()
	notConnected := !t.started || t.closed
	t.stateMu.Unlock()
	if notConnected {
		return ErrNotConnected
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("transport: marshal outbound message: %w", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.w.Write(data)
	return err
}

// Close is idempotent: the first call stops the read loop and closes Done;
// subsequent calls are no-ops. It does not close the underlying reader or
// writer, since those are typically process stdio shared with other code.
//
// Note: a blocking ReadBytes on os.Stdin cannot itself be interrupted by
// context cancellation; Done only closes promptly if the read loop is
// between reads, otherwise it closes once the next read returns (EOF on
// process exit, in the stdio case).
func (t *Transport) Close() error {
	t.stateMu.Lock()
	if t.closed {
		t.stateMu.Unlock()
		return nil
	}
	t.closed = true
	fn := t.closeFn
	started := t.started
	t.stateMu.Unlock()

	if fn != nil {
		fn()
	}
	if !started {
		// The read loop was never started, so finish() will never run.
		close(t.done)
	}
	return nil
}
