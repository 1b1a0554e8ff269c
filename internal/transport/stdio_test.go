package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

func recvMessage(t *testing.T, tr *Transport) json.RawMessage {
	t.Helper()
	select {
	case msg := <-tr.Messages():
		return msg
	case err := <-tr.Errors():
		t.Fatalf("unexpected frame error: %v", err)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a message")
	}
	return nil
}

func recvError(t *testing.T, tr *Transport) error {
	t.Helper()
	select {
	case err := <-tr.Errors():
		return err
	case msg := <-tr.Messages():
		t.Fatalf("unexpected message, wanted a frame error: %s", msg)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a frame error")
	}
	return nil
}

func waitDone(t *testing.T, tr *Transport) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for Done to close")
	}
}

func TestStartIsIdempotentAndSendRoundTrips(t *testing.T) {
	inR, inW := io.Pipe()
	var out bytes.Buffer
	tr := New(inR, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	go func() {
		_, _ = inW.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))
	}()
	msg := recvMessage(t, tr)
	var decoded map[string]any
	if err := json.Unmarshal(msg, &decoded); err != nil {
		t.Fatalf("unmarshal received message: %v", err)
	}
	if decoded["method"] != "ping" {
		t.Errorf("method = %v, want ping", decoded["method"])
	}

	if err := tr.Send(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "pong"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
		t.Errorf("Send output not newline-terminated: %q", out.String())
	}
	var sent map[string]any
	if err := json.Unmarshal(bytes.TrimRight(out.Bytes(), "\n"), &sent); err != nil {
		t.Fatalf("unmarshal sent message: %v", err)
	}
	if sent["result"] != "pong" {
		t.Errorf("sent result = %v, want pong", sent["result"])
	}

	_ = inW.Close()
	waitDone(t, tr)
}

func TestInvalidFrameSurfacedWithoutEndingTheStream(t *testing.T) {
	inR, inW := io.Pipe()
	tr := New(inR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		_, _ = inW.Write([]byte("not json\n"))
	}()
	err := recvError(t, tr)
	frameErr, ok := err.(*InvalidFrameError)
	if !ok {
		t.Fatalf("error = %v, want *InvalidFrameError", err)
	}
	if string(frameErr.Line) != "not json" {
		t.Errorf("Line = %q, want %q", frameErr.Line, "not json")
	}

	go func() {
		_, _ = inW.Write([]byte(`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n"))
	}()
	msg := recvMessage(t, tr)
	if len(msg) == 0 {
		t.Error("expected a parsed message after the invalid frame")
	}

	_ = inW.Close()
	waitDone(t, tr)
}

func TestSendBeforeStartAndAfterCloseFails(t *testing.T) {
	inR, inW := io.Pipe()
	tr := New(inR, io.Discard)

	if err := tr.Send(map[string]any{"a": 1}); err != ErrNotConnected {
		t.Fatalf("Send before Start = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close cancels the read loop's context, but a ReadBytes call already
	// blocked on the pipe isn't interruptible by ctx — unblock it here so
	// the loop goroutine actually returns before the test ends.
	_ = inW.Close()
	waitDone(t, tr)

	if err := tr.Send(map[string]any{"a": 1}); err != ErrNotConnected {
		t.Fatalf("Send after Close = %v, want ErrNotConnected", err)
	}
}

func TestStartAfterCloseFails(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()
	tr := New(inR, io.Discard)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close on an unstarted transport: %v", err)
	}
	waitDone(t, tr)

	if err := tr.Start(context.Background()); err != ErrAlreadyClosed {
		t.Fatalf("Start after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	inR, inW := io.Pipe()
	tr := New(inR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_ = inW.Close()
	waitDone(t, tr)
}

func TestDoneClosesOnEOFWithoutExplicitClose(t *testing.T) {
	inR, inW := io.Pipe()
	tr := New(inR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_ = inW.Close()
	waitDone(t, tr)
}
