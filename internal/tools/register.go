// Package tools adapts the four external-collaborator ports (file system,
// project introspection, editor façade, model façade) into concrete,
// named registry entries. Each tool's argument struct drives its schema
// via google/jsonschema-go, the handler decodes and delegates to a port,
// and the result is rendered as a single JSON text content item — the
// same struct-as-schema-source-of-truth discipline the teacher's
// mcp.AddTool call sites use, generalized here to this server's own
// registry instead of the official MCP SDK's.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/ports"
	"github.com/cursorcli/workspace-mcp/internal/registry"
	"github.com/cursorcli/workspace-mcp/internal/sandbox"
)

// Dependencies bundles everything Register needs to bind each handler: the
// sandbox every path-bearing tool validates its input through, and the
// four external-collaborator ports.
type Dependencies struct {
	Sandbox *sandbox.Sandbox
	FS      ports.FileSystemPort
	Project ports.ProjectPort
	Editor  ports.EditorPort
	Model   ports.ModelPort
}

type regEntry struct {
	name, description string
	schema             *jsonschema.Schema
	handler            registry.Handler
}

// Register binds every tool this server exposes into reg. It returns the
// first schema-generation or registration error; both are programmer
// errors (a struct tag typo or a duplicate name), never runtime data.
func Register(reg *registry.Registry, deps Dependencies) error {
	entries, err := buildEntries(deps)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := reg.Register(e.name, e.description, e.schema, e.handler); err != nil {
			return fmt.Errorf("register %s: %w", e.name, err)
		}
	}
	return nil
}

func buildEntries(deps Dependencies) ([]regEntry, error) {
	readSchema, err := schemaFor[ReadFileInput]("read_file")
	if err != nil {
		return nil, err
	}
	writeSchema, err := schemaFor[WriteFileInput]("write_file")
	if err != nil {
		return nil, err
	}
	listSchema, err := schemaFor[ListFilesInput]("list_files")
	if err != nil {
		return nil, err
	}
	deleteSchema, err := schemaFor[DeleteFileInput]("delete_file")
	if err != nil {
		return nil, err
	}
	infoSchema, err := schemaFor[GetFileInfoInput]("get_file_info")
	if err != nil {
		return nil, err
	}
	projectInfoSchema, err := schemaFor[ProjectInfoInput]("project_info")
	if err != nil {
		return nil, err
	}
	globSchema, err := schemaFor[GlobSearchInput]("glob_search")
	if err != nil {
		return nil, err
	}
	treeSchema, err := schemaFor[WorkspaceTreeInput]("workspace_tree")
	if err != nil {
		return nil, err
	}
	editorStatusSchema, err := schemaFor[EditorStatusInput]("editor_status")
	if err != nil {
		return nil, err
	}
	editorInsertSchema, err := schemaFor[EditorInsertInput]("editor_insert")
	if err != nil {
		return nil, err
	}
	editorReplaceSchema, err := schemaFor[EditorReplaceInput]("editor_replace")
	if err != nil {
		return nil, err
	}
	modelInfoSchema, err := schemaFor[ModelInfoInput]("model_info")
	if err != nil {
		return nil, err
	}
	recordUsageSchema, err := schemaFor[RecordUsageInput]("record_usage")
	if err != nil {
		return nil, err
	}
	usageStatsSchema, err := schemaFor[UsageStatsInput]("usage_stats")
	if err != nil {
		return nil, err
	}

	return []regEntry{
		{"read_file", "Read the content of a file, optionally by byte offset and length.", readSchema, readFileHandler(deps)},
		{"write_file", "Write or create a file with the given content.", writeSchema, writeFileHandler(deps)},
		{"list_files", "List the entries of a directory.", listSchema, listFilesHandler(deps)},
		{"delete_file", "Delete a file permanently.", deleteSchema, deleteFileHandler(deps)},
		{"get_file_info", "Get metadata about a file or directory.", infoSchema, getFileInfoHandler(deps)},
		{"project_info", "Summarize the project: file/directory counts and language breakdown.", projectInfoSchema, projectInfoHandler(deps)},
		{"glob_search", "Search the project tree for paths matching a glob pattern, honoring .gitignore.", globSchema, globSearchHandler(deps)},
		{"workspace_tree", "Return the project's directory tree up to a max depth, honoring .gitignore and extra exclude patterns.", treeSchema, workspaceTreeHandler(deps)},
		{"editor_status", "Report the editor's readiness and currently active file.", editorStatusSchema, editorStatusHandler(deps)},
		{"editor_insert", "Insert text at a 1-based line/column in the active file.", editorInsertSchema, editorInsertHandler(deps)},
		{"editor_replace", "Replace a 1-based line/column range in the active file.", editorReplaceSchema, editorReplaceHandler(deps)},
		{"model_info", "Report the model descriptor currently backing the client.", modelInfoSchema, modelInfoHandler(deps)},
		{"record_usage", "Record one call's token usage and duration for aggregation.", recordUsageSchema, recordUsageHandler(deps)},
		{"usage_stats", "Return aggregated token usage, cost, and duration statistics.", usageStatsSchema, usageStatsHandler(deps)},
	}, nil
}

func schemaFor[T any](name string) (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	return schema, nil
}

func decode[T any](rawArgs json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(rawArgs, &v); err != nil {
		return v, errs.Wrap(errs.KindInvalidArguments, err, "unable to decode arguments")
	}
	return v, nil
}

func textResultJSON(v any) (*registry.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "unable to marshal tool result")
	}
	return registry.TextResult(string(data)), nil
}
