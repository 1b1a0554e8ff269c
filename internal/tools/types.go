package tools

// ReadFileInput is the argument shape for read_file.
type ReadFileInput struct {
	Path     string `json:"path" jsonschema:"Workspace-relative or absolute path of the file to read."`
	Offset   int64  `json:"offset,omitempty" jsonschema:"Byte offset to start reading from. Defaults to 0."`
	Length   int64  `json:"length,omitempty" jsonschema:"Maximum number of bytes to read. 0 means until the size or maxFileSize cap is reached."`
	Encoding string `json:"encoding,omitempty" jsonschema:"Content encoding: utf-8, utf-16le, or binary. Defaults to utf-8."`
}

// WriteFileInput is the argument shape for write_file.
type WriteFileInput struct {
	Path     string `json:"path" jsonschema:"Workspace-relative or absolute path of the file to write."`
	Content  string `json:"content" jsonschema:"File content. Interpreted per encoding; binary content must be base64."`
	Encoding string `json:"encoding,omitempty" jsonschema:"Content encoding: utf-8 or binary. Defaults to utf-8."`
}

// ListFilesInput is the argument shape for list_files.
type ListFilesInput struct {
	Path string `json:"path" jsonschema:"Workspace-relative or absolute path of the directory to list."`
}

// DeleteFileInput is the argument shape for delete_file.
type DeleteFileInput struct {
	Path string `json:"path" jsonschema:"Workspace-relative or absolute path of the file to delete."`
}

// GetFileInfoInput is the argument shape for get_file_info.
type GetFileInfoInput struct {
	Path string `json:"path" jsonschema:"Workspace-relative or absolute path to stat."`
}

// ProjectInfoInput is the argument shape for project_info. It takes no
// parameters; the project root is fixed at server startup.
type ProjectInfoInput struct{}

// GlobSearchInput is the argument shape for glob_search.
type GlobSearchInput struct {
	Pattern    string `json:"pattern" jsonschema:"Glob pattern in path/filepath.Match syntax, matched against each file's project-relative path and against its base name, e.g. *.go. ** is not a recursive wildcard."`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of matches to return. Defaults to 1000."`
}

// WorkspaceTreeInput is the argument shape for workspace_tree.
type WorkspaceTreeInput struct {
	MaxDepth        int      `json:"maxDepth,omitempty" jsonschema:"Maximum directory depth to descend. Defaults to 10."`
	ExcludePatterns []string `json:"excludePatterns,omitempty" jsonschema:"Additional gitignore-style patterns to exclude, beyond the project's own .gitignore."`
}

// EditorStatusInput is the argument shape for editor_status. It takes no
// parameters.
type EditorStatusInput struct{}

// EditorInsertInput is the argument shape for editor_insert.
type EditorInsertInput struct {
	Line   int    `json:"line" jsonschema:"1-based line number to insert at."`
	Column int    `json:"column" jsonschema:"1-based column number to insert at."`
	Text   string `json:"text" jsonschema:"Text to insert."`
}

// EditorReplaceInput is the argument shape for editor_replace.
type EditorReplaceInput struct {
	StartLine   int    `json:"startLine" jsonschema:"1-based start line of the range to replace."`
	StartColumn int    `json:"startColumn" jsonschema:"1-based start column of the range to replace."`
	EndLine     int    `json:"endLine" jsonschema:"1-based end line of the range to replace."`
	EndColumn   int    `json:"endColumn" jsonschema:"1-based end column of the range to replace."`
	Text        string `json:"text" jsonschema:"Replacement text."`
}

// ModelInfoInput is the argument shape for model_info. It takes no
// parameters.
type ModelInfoInput struct{}

// RecordUsageInput is the argument shape for record_usage.
type RecordUsageInput struct {
	Model            string `json:"model" jsonschema:"Name of the model this usage applies to."`
	PromptTokens     int    `json:"promptTokens" jsonschema:"Number of prompt tokens consumed."`
	CompletionTokens int    `json:"completionTokens" jsonschema:"Number of completion tokens produced."`
	DurationMs       int64  `json:"durationMs" jsonschema:"Wall-clock duration of the call, in milliseconds."`
}

// UsageStatsInput is the argument shape for usage_stats. It takes no
// parameters.
type UsageStatsInput struct{}
