// Package registry implements the tool registry (C4): a name-keyed map of
// tool definitions — schema, handler, and an enabled flag — with
// insertion-order-stable listing limited to enabled tools.
//
// The schema-as-source-of-truth approach is grounded in the teacher's MCP
// tool registration (internal/mcp/file.go), which derives every tool's
// input schema from a typed Go struct via google/jsonschema-go rather than
// hand-writing a parallel schema declaration; this package keeps that same
// generator but owns the resulting *jsonschema.Schema itself instead of
// handing it to the official MCP SDK's mcp.AddTool.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cursorcli/workspace-mcp/internal/errs"
)

// Handler executes a validated tool call. rawArgs has already passed
// schema validation by the time a Handler is invoked (validation is the
// Executor's job, per the executor contract); a Handler is responsible
// only for unmarshaling rawArgs into its own typed argument struct and
// producing a Result.
type Handler func(ctx context.Context, rawArgs json.RawMessage) (*Result, error)

// ContentItem is one element of a tools/call reply's content array.
type ContentItem struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource *ResourceContent `json:"resource,omitempty"`
}

// ResourceContent is the payload of a "resource" content item.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Result is a tool handler's outcome, ready to serialize as a tools/call
// reply.
type Result struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// TextResult builds a single-item, non-error text Result — the common case
// for handlers that don't need multiple content items.
func TextResult(text string) *Result {
	return &Result{Content: []ContentItem{{Type: "text", Text: text}}}
}

// entry is a registered tool. Name, Description, and Schema are frozen
// after registration; Enabled is the only mutable field.
type entry struct {
	name        string
	description string
	schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved
	handler     Handler
	enabled     bool
}

// Descriptor is the externally visible shape of a listed tool, per the
// tools/list reply contract.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// Registry holds every registered tool. It is safe for concurrent use; the
// single-threaded cooperative scheduling model means contention is limited
// to startup registration racing against hot-reload enable/disable calls.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool definition. name must be unique within the
// registry; schema must be a resolvable JSON Schema (typically produced by
// jsonschema.For[T]). Newly registered tools start enabled.
func (r *Registry) Register(name, description string, schema *jsonschema.Schema, handler Handler) error {
	if name == "" {
		return errs.New(errs.KindInvalidArguments, "tool name must not be empty")
	}
	if handler == nil {
		return errs.New(errs.KindInvalidArguments, "tool handler must not be nil", "tool", name)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("registry: resolve schema for %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return errs.New(errs.KindInvalidArguments, "tool already registered", "tool", name)
	}

	r.entries[name] = &entry{
		name:        name,
		description: description,
		schema:      schema,
		resolved:    resolved,
		handler:     handler,
		enabled:     true,
	}
	r.order = append(r.order, name)
	return nil
}

// Unregister removes a tool entirely.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return errs.New(errs.KindNotFound, "tool not found", "tool", name)
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled flips a tool's enabled flag, used by config hot-reload to
// apply a new tool allowlist without tearing down the registry.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[name]
	if !exists {
		return errs.New(errs.KindNotFound, "tool not found", "tool", name)
	}
	e.enabled = enabled
	return nil
}

// ApplyAllowlist enables every tool named in allowed and disables every
// other currently-registered tool — the shape C8/C2 need to apply a fresh
// config snapshot's tools.allowedTools without individually diffing it.
func (r *Registry) ApplyAllowlist(allowed []string) {
	set := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		set[n] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		e.enabled = set[name]
	}
}

// callable is the subset of an entry the Executor needs, copied out from
// under the lock so callers never hold Registry internals past lookup.
type callable struct {
	Schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	Handler  Handler
	Enabled  bool
}

// Lookup returns the callable form of a registered tool, or ok=false if no
// tool by that name was ever registered (disabled tools are still found —
// ToolNotFound vs ToolDisabled is the caller's distinction to draw).
func (r *Registry) Lookup(name string) (callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return callable{}, false
	}
	return callable{Schema: e.schema, resolved: e.resolved, Handler: e.handler, Enabled: e.enabled}, true
}

// ValidateArgs validates rawArgs against the tool's resolved schema.
func (c callable) ValidateArgs(rawArgs json.RawMessage) error {
	var instance any
	if len(rawArgs) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(rawArgs, &instance); err != nil {
		return errs.Wrap(errs.KindInvalidArguments, err, "arguments are not valid JSON")
	}
	if err := c.resolved.Validate(instance); err != nil {
		return errs.Wrap(errs.KindInvalidArguments, err, "arguments failed schema validation")
	}
	return nil
}

// List returns every enabled tool in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if !e.enabled {
			continue
		}
		out = append(out, Descriptor{Name: e.name, Description: e.description, InputSchema: e.schema})
	}
	return out
}
