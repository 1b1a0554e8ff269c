// Package tools adapts the real file system, project tree, and two mocked
// façades (editor, model) into the ports interfaces, and registers each
// operation as a named tool in internal/registry.
//
// FileSystem, grounded on Koopa0-koopa/internal/tools/file.go's
// os.Open+io.LimitReader single-pass read and os.MkdirAll-then-OpenFile
// write, replaces that toolset's ai.ToolContext/Result shape with the
// ports.FileSystemPort contract and the partial-read range rule
// [offset, min(offset+length, size, offset+cap)) decided for this spec's
// open question on partial reads.
package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf16"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/ports"
)

// FileSystem is the real, OS-backed FileSystemPort. maxFileSize bounds the
// served range the same way the config snapshot's fileOperations.maxFileSize
// does; it is read fresh by the caller before each call so a hot-reloaded
// cap applies immediately.
type FileSystem struct {
	maxFileSize func() int64
}

// NewFileSystem creates a FileSystem whose cap is read from maxFileSize on
// every call, so config hot-reload changes take effect without rebuilding
// the port.
func NewFileSystem(maxFileSize func() int64) *FileSystem {
	return &FileSystem{maxFileSize: maxFileSize}
}

func (fs *FileSystem) ReadFile(_ context.Context, resolvedPath string, opts ports.ReadOptions) (ports.ReadResult, error) {
	file, err := os.Open(resolvedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.ReadResult{}, errs.New(errs.KindNotFound, "file not found", "path", resolvedPath)
		}
		if os.IsPermission(err) {
			return ports.ReadResult{}, errs.New(errs.KindPermissionDenied, "permission denied", "path", resolvedPath)
		}
		return ports.ReadResult{}, errs.Wrap(errs.KindInternalError, err, "unable to open file")
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return ports.ReadResult{}, errs.Wrap(errs.KindInternalError, err, "unable to stat file")
	}
	if info.IsDir() {
		return ports.ReadResult{}, errs.New(errs.KindInvalidArguments, "path is a directory, not a file", "path", resolvedPath)
	}

	size := info.Size()
	capBytes := fs.maxFileSize()

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > size {
		offset = size
	}

	// [offset, min(offset+length, size, offset+cap))
	end := size
	if opts.Length > 0 && offset+opts.Length < end {
		end = offset + opts.Length
	}
	if offset+capBytes < end {
		end = offset + capBytes
	}
	if end < offset {
		end = offset
	}
	served := end - offset

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return ports.ReadResult{}, errs.Wrap(errs.KindInternalError, err, "unable to seek file")
	}

	raw := make([]byte, served)
	if served > 0 {
		if _, err := io.ReadFull(file, raw); err != nil {
			return ports.ReadResult{}, errs.Wrap(errs.KindInternalError, err, "unable to read file")
		}
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = ports.EncodingUTF8
	}

	content, err := encodeContent(raw, encoding)
	if err != nil {
		return ports.ReadResult{}, err
	}

	return ports.ReadResult{
		Path:      resolvedPath,
		Content:   content,
		Encoding:  encoding,
		Size:      size,
		Served:    served,
		Truncated: end < size,
	}, nil
}

func encodeContent(raw []byte, encoding ports.Encoding) (string, error) {
	switch encoding {
	case ports.EncodingUTF8:
		return string(raw), nil
	case ports.EncodingUTF16LE:
		if len(raw)%2 != 0 {
			raw = raw[:len(raw)-1]
		}
		units := make([]uint16, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			units = append(units, uint16(raw[i])|uint16(raw[i+1])<<8)
		}
		return string(utf16.Decode(units)), nil
	case ports.EncodingBinary:
		return base64.StdEncoding.EncodeToString(raw), nil
	default:
		return "", errs.New(errs.KindInvalidArguments, "unsupported encoding", "encoding", string(encoding))
	}
}

func (fs *FileSystem) WriteFile(_ context.Context, resolvedPath string, content string, encoding ports.Encoding) (ports.WriteResult, error) {
	var raw []byte
	switch encoding {
	case "", ports.EncodingUTF8:
		raw = []byte(content)
	case ports.EncodingBinary:
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return ports.WriteResult{}, errs.Wrap(errs.KindInvalidArguments, err, "content is not valid base64")
		}
		raw = decoded
	default:
		return ports.WriteResult{}, errs.New(errs.KindInvalidArguments, "unsupported encoding for write", "encoding", string(encoding))
	}

	if int64(len(raw)) > fs.maxFileSize() {
		return ports.WriteResult{}, errs.New(errs.KindInvalidArguments, "content exceeds maxFileSize",
			"size", len(raw), "maxFileSize", fs.maxFileSize())
	}

	_, statErr := os.Stat(resolvedPath)
	created := os.IsNotExist(statErr)

	dir := filepath.Dir(resolvedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ports.WriteResult{}, errs.Wrap(errs.KindInternalError, err, "unable to create parent directory")
	}

	if err := os.WriteFile(resolvedPath, raw, 0o600); err != nil {
		if os.IsPermission(err) {
			return ports.WriteResult{}, errs.New(errs.KindPermissionDenied, "permission denied", "path", resolvedPath)
		}
		return ports.WriteResult{}, errs.Wrap(errs.KindInternalError, err, "unable to write file")
	}

	return ports.WriteResult{Path: resolvedPath, BytesWritten: len(raw), Created: created}, nil
}

func (fs *FileSystem) ListFiles(_ context.Context, resolvedPath string) ([]ports.DirEntry, error) {
	entries, err := os.ReadDir(resolvedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.KindNotFound, "directory not found", "path", resolvedPath)
		}
		if os.IsPermission(err) {
			return nil, errs.New(errs.KindPermissionDenied, "permission denied", "path", resolvedPath)
		}
		return nil, errs.Wrap(errs.KindInternalError, err, "unable to list directory")
	}

	out := make([]ports.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		out = append(out, ports.DirEntry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	return out, nil
}

func (fs *FileSystem) DeleteFile(_ context.Context, resolvedPath string) error {
	if err := os.Remove(resolvedPath); err != nil {
		if os.IsNotExist(err) {
			return errs.New(errs.KindNotFound, "file not found", "path", resolvedPath)
		}
		if os.IsPermission(err) {
			return errs.New(errs.KindPermissionDenied, "permission denied", "path", resolvedPath)
		}
		return errs.Wrap(errs.KindInternalError, err, "unable to delete file")
	}
	return nil
}

func (fs *FileSystem) GetFileInfo(_ context.Context, resolvedPath string) (ports.FileInfo, error) {
	info, err := os.Stat(resolvedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.FileInfo{}, errs.New(errs.KindNotFound, "file not found", "path", resolvedPath)
		}
		if os.IsPermission(err) {
			return ports.FileInfo{}, errs.New(errs.KindPermissionDenied, "permission denied", "path", resolvedPath)
		}
		return ports.FileInfo{}, errs.Wrap(errs.KindInternalError, err, "unable to stat file")
	}
	return ports.FileInfo{
		Path:         resolvedPath,
		Size:         info.Size(),
		IsDir:        info.IsDir(),
		ModifiedUnix: info.ModTime().Unix(),
		Mode:         fmt.Sprintf("%v", info.Mode()),
	}, nil
}
