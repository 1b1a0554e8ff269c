package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/ports"
)

func unlimited() int64 { return 1 << 30 }

func TestReadFileFullContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSystem(unlimited)
	res, err := fs.ReadFile(context.Background(), path, ports.ReadOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if res.Content != "hello world" || res.Truncated {
		t.Errorf("got content=%q truncated=%v", res.Content, res.Truncated)
	}
	if res.Size != 11 || res.Served != 11 {
		t.Errorf("got size=%d served=%d", res.Size, res.Served)
	}
}

func TestReadFilePartialRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSystem(unlimited)
	res, err := fs.ReadFile(context.Background(), path, ports.ReadOptions{Offset: 2, Length: 3})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if res.Content != "234" {
		t.Errorf("Content = %q, want 234", res.Content)
	}
	if !res.Truncated {
		t.Error("expected Truncated=true when the served range ends before size")
	}
}

func TestReadFileHonorsMaxFileSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSystem(func() int64 { return 4 })
	res, err := fs.ReadFile(context.Background(), path, ports.ReadOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if res.Served != 4 || !res.Truncated {
		t.Errorf("got served=%d truncated=%v, want served=4 truncated=true", res.Served, res.Truncated)
	}
}

func TestReadFileMissingReturnsNotFound(t *testing.T) {
	fs := NewFileSystem(unlimited)
	_, err := fs.ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), ports.ReadOptions{})
	if errs.KindOf(err) != errs.KindNotFound {
		t.Errorf("KindOf(err) = %v, want NotFound", errs.KindOf(err))
	}
}

func TestReadFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileSystem(unlimited)
	_, err := fs.ReadFile(context.Background(), dir, ports.ReadOptions{})
	if errs.KindOf(err) != errs.KindInvalidArguments {
		t.Errorf("KindOf(err) = %v, want InvalidArguments", errs.KindOf(err))
	}
}

func TestWriteFileCreatesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "b.txt")
	fs := NewFileSystem(unlimited)

	res, err := fs.WriteFile(context.Background(), path, "first", ports.EncodingUTF8)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !res.Created || res.BytesWritten != 5 {
		t.Errorf("got created=%v bytesWritten=%d", res.Created, res.BytesWritten)
	}

	res, err = fs.WriteFile(context.Background(), path, "second!", ports.EncodingUTF8)
	if err != nil {
		t.Fatalf("WriteFile (overwrite): %v", err)
	}
	if res.Created {
		t.Error("overwrite should report Created=false")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second!" {
		t.Errorf("file content = %q, want second!", data)
	}
}

func TestWriteFileRejectsOversizedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.txt")
	fs := NewFileSystem(func() int64 { return 2 })

	_, err := fs.WriteFile(context.Background(), path, "too long", ports.EncodingUTF8)
	if errs.KindOf(err) != errs.KindInvalidArguments {
		t.Errorf("KindOf(err) = %v, want InvalidArguments", errs.KindOf(err))
	}
}

func TestListFilesAndDeleteFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSystem(unlimited)
	entries, err := fs.ListFiles(context.Background(), dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	if err := fs.DeleteFile(context.Background(), filepath.Join(dir, "x.txt")); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.txt")); !os.IsNotExist(err) {
		t.Error("file should no longer exist after DeleteFile")
	}
}

func TestGetFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.txt")
	if err := os.WriteFile(path, []byte("abcd"), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSystem(unlimited)
	info, err := fs.GetFileInfo(context.Background(), path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.Size != 4 || info.IsDir {
		t.Errorf("got size=%d isDir=%v", info.Size, info.IsDir)
	}
}
