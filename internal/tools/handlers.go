package tools

import (
	"context"
	"encoding/json"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/ports"
	"github.com/cursorcli/workspace-mcp/internal/registry"
)

// resolvePath runs a raw path argument through the sandbox so every
// path-bearing tool is validated the same way before it ever reaches a
// port implementation.
func resolvePath(deps Dependencies, raw string) (string, error) {
	resolved, err := deps.Sandbox.Validate(raw)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func readFileHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[ReadFileInput](rawArgs)
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePath(deps, in.Path)
		if err != nil {
			return nil, err
		}
		opts := ports.ReadOptions{Offset: in.Offset, Length: in.Length, Encoding: ports.Encoding(in.Encoding)}
		result, err := deps.FS.ReadFile(ctx, resolved, opts)
		if err != nil {
			return nil, err
		}
		return textResultJSON(result)
	}
}

func writeFileHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[WriteFileInput](rawArgs)
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePath(deps, in.Path)
		if err != nil {
			return nil, err
		}
		result, err := deps.FS.WriteFile(ctx, resolved, in.Content, ports.Encoding(in.Encoding))
		if err != nil {
			return nil, err
		}
		return textResultJSON(result)
	}
}

func listFilesHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[ListFilesInput](rawArgs)
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePath(deps, in.Path)
		if err != nil {
			return nil, err
		}
		entries, err := deps.FS.ListFiles(ctx, resolved)
		if err != nil {
			return nil, err
		}
		return textResultJSON(entries)
	}
}

func deleteFileHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[DeleteFileInput](rawArgs)
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePath(deps, in.Path)
		if err != nil {
			return nil, err
		}
		if err := deps.FS.DeleteFile(ctx, resolved); err != nil {
			return nil, err
		}
		return textResultJSON(map[string]any{"path": resolved, "deleted": true})
	}
}

func getFileInfoHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[GetFileInfoInput](rawArgs)
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePath(deps, in.Path)
		if err != nil {
			return nil, err
		}
		info, err := deps.FS.GetFileInfo(ctx, resolved)
		if err != nil {
			return nil, err
		}
		return textResultJSON(info)
	}
}

func projectInfoHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, _ json.RawMessage) (*registry.Result, error) {
		info, err := deps.Project.Info(ctx)
		if err != nil {
			return nil, err
		}
		return textResultJSON(info)
	}
}

func globSearchHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[GlobSearchInput](rawArgs)
		if err != nil {
			return nil, err
		}
		if in.Pattern == "" {
			return nil, errs.New(errs.KindInvalidArguments, "pattern is required")
		}
		matches, err := deps.Project.GlobSearch(ctx, in.Pattern, in.MaxResults)
		if err != nil {
			return nil, err
		}
		return textResultJSON(map[string]any{"matches": matches})
	}
}

func workspaceTreeHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[WorkspaceTreeInput](rawArgs)
		if err != nil {
			return nil, err
		}
		tree, err := deps.Project.WorkspaceTree(ctx, in.MaxDepth, in.ExcludePatterns)
		if err != nil {
			return nil, err
		}
		return textResultJSON(tree)
	}
}

func editorStatusHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, _ json.RawMessage) (*registry.Result, error) {
		ready := deps.Editor.IsReady(ctx)
		active, err := deps.Editor.Active(ctx)
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				return textResultJSON(map[string]any{"ready": ready, "activeFile": nil})
			}
			return nil, err
		}
		return textResultJSON(map[string]any{"ready": ready, "activeFile": active})
	}
}

func editorInsertHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[EditorInsertInput](rawArgs)
		if err != nil {
			return nil, err
		}
		if err := deps.Editor.Insert(ctx, in.Line, in.Column, in.Text); err != nil {
			return nil, err
		}
		active, err := deps.Editor.Active(ctx)
		if err != nil {
			return nil, err
		}
		return textResultJSON(active)
	}
}

func editorReplaceHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[EditorReplaceInput](rawArgs)
		if err != nil {
			return nil, err
		}
		if err := deps.Editor.Replace(ctx, in.StartLine, in.StartColumn, in.EndLine, in.EndColumn, in.Text); err != nil {
			return nil, err
		}
		active, err := deps.Editor.Active(ctx)
		if err != nil {
			return nil, err
		}
		return textResultJSON(active)
	}
}

func modelInfoHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, _ json.RawMessage) (*registry.Result, error) {
		descriptor, err := deps.Model.Current(ctx)
		if err != nil {
			return nil, err
		}
		return textResultJSON(descriptor)
	}
}

func recordUsageHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) (*registry.Result, error) {
		in, err := decode[RecordUsageInput](rawArgs)
		if err != nil {
			return nil, err
		}
		if in.Model == "" {
			return nil, errs.New(errs.KindInvalidArguments, "model is required")
		}
		rec := ports.UsageRecord{
			Model:            in.Model,
			PromptTokens:     in.PromptTokens,
			CompletionTokens: in.CompletionTokens,
			DurationMs:       in.DurationMs,
		}
		if err := deps.Model.RecordUsage(ctx, rec); err != nil {
			return nil, err
		}
		return textResultJSON(map[string]any{"recorded": true})
	}
}

func usageStatsHandler(deps Dependencies) registry.Handler {
	return func(ctx context.Context, _ json.RawMessage) (*registry.Result, error) {
		stats, err := deps.Model.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return textResultJSON(stats)
	}
}
