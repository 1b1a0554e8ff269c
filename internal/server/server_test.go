package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cursorcli/workspace-mcp/internal/jsonrpc"
	"github.com/cursorcli/workspace-mcp/internal/log"
)

func newTestLogger() *slog.Logger {
	return log.NewNop()
}

// pipePair wires a Server to an in-memory duplex pipe so tests can write
// request lines and read response lines the way a real MCP client would
// over stdio.
type pipePair struct {
	toServer   *io.PipeWriter
	fromServer *bufio.Reader
	closeInput func() error
}

func startServer(t *testing.T) (*Server, *pipePair) {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	srv, err := New(context.Background(), t.TempDir(), "test", inR, outW, newTestLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return srv, &pipePair{
		toServer:   inW,
		fromServer: bufio.NewReader(outR),
		closeInput: inW.Close,
	}
}

func (p *pipePair) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, '\n')
	if _, err := p.toServer.Write(data); err != nil {
		t.Fatal(err)
	}
}

func (p *pipePair) readResponse(t *testing.T) jsonrpc.Response {
	t.Helper()
	line, err := p.fromServer.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestServerInitializeRoundTrip(t *testing.T) {
	srv, pipes := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	pipes.send(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test-client", "version": "0.0.1"},
		},
	})

	resp := pipes.readResponse(t)
	if resp.Error != nil {
		t.Fatalf("initialize returned an error: %+v", resp.Error)
	}

	pipes.send(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	resp = pipes.readResponse(t)
	if resp.Error != nil {
		t.Fatalf("tools/list returned an error: %+v", resp.Error)
	}

	cancel()
	select {
	case <-runErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestServerRejectsToolsCallBeforeInitialize(t *testing.T) {
	srv, pipes := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	pipes.send(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": "project_info", "arguments": map[string]any{}},
	})

	resp := pipes.readResponse(t)
	if resp.Error == nil {
		t.Fatal("expected an error calling a tool before initialize")
	}
}
