package tools

import (
	"context"
	"sync"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/ports"
)

// MockEditor is an in-memory EditorPort façade: no real editor is attached
// over stdio, so this tracks an "active file" and cursor position the way
// a real editor's extension host would report them, per §6's "(mocked or
// real) editor façade" allowance.
type MockEditor struct {
	mu     sync.Mutex
	active ports.ActiveFile
	opened bool
}

// NewMockEditor creates an editor façade with no file open.
func NewMockEditor() *MockEditor {
	return &MockEditor{}
}

func (e *MockEditor) IsReady(context.Context) bool { return true }

func (e *MockEditor) Open(_ context.Context, resolvedPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = ports.ActiveFile{Path: resolvedPath, Line: 1, Column: 1}
	e.opened = true
	return nil
}

func (e *MockEditor) Active(context.Context) (ports.ActiveFile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return ports.ActiveFile{}, errs.New(errs.KindNotFound, "no file is currently open in the editor")
	}
	return e.active, nil
}

func (e *MockEditor) Insert(_ context.Context, line, column int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return errs.New(errs.KindNotFound, "no file is currently open in the editor")
	}
	if line < 1 || column < 1 {
		return errs.New(errs.KindInvalidArguments, "line and column are 1-based", "line", line, "column", column)
	}
	e.active.Line = line
	e.active.Column = column + len(text)
	return nil
}

func (e *MockEditor) Replace(_ context.Context, startLine, startColumn, endLine, endColumn int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return errs.New(errs.KindNotFound, "no file is currently open in the editor")
	}
	if startLine < 1 || startColumn < 1 || endLine < startLine || (endLine == startLine && endColumn < startColumn) {
		return errs.New(errs.KindInvalidArguments, "invalid replace range",
			"startLine", startLine, "startColumn", startColumn, "endLine", endLine, "endColumn", endColumn)
	}
	e.active.Line = startLine
	e.active.Column = startColumn + len(text)
	return nil
}
