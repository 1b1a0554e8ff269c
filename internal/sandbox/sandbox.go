// Package sandbox implements the path security validator: every path a
// tool handler touches is resolved and authorized against the workspace
// root, including physical-path (symlink) resolution and a glob-based
// denylist, before any file-system side effect occurs.
//
// The validate-then-normalize-then-symlink-resolve shape follows the
// teacher's path traversal guard, generalized here to distinguish
// PathTraversal from OutsideRoot and to re-resolve the candidate (not just
// the root) through the physical-path operation, per the sandbox contract.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/cursorcli/workspace-mcp/internal/errs"
)

// Sandbox authorizes paths against a resolved workspace root. It is
// stateless per call and safe for concurrent use once constructed.
type Sandbox struct {
	root        string // absolute, physical-path resolved at construction
	patterns    []glob.Glob
	rawPatterns []string
	allowed     []string // resolved physical paths; empty means the whole root is allowed
}

// New resolves root to its absolute, symlink-resolved physical path (once,
// at construction) and compiles the blocked glob patterns. If root does not
// yet exist, resolution falls back to its absolute form — a workspace root
// created after the server starts is not expected to be a live scenario for
// this server's lifetime, so this fallback trades precision for start-up
// resilience.
//
// allowedDirectories, relative to root, further narrows the sandbox to
// those subtrees; an empty list (the default) leaves the whole root
// authorized.
func New(root string, blockedPatterns, allowedDirectories []string) (*Sandbox, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root %q: %w", root, err)
	}

	resolvedRoot := absRoot
	if real, err := filepath.EvalSymlinks(absRoot); err == nil {
		resolvedRoot = real
	}

	compiled := make([]glob.Glob, 0, len(blockedPatterns))
	raw := make([]string, 0, len(blockedPatterns))
	for _, p := range blockedPatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("sandbox: compile blocked pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
		raw = append(raw, p)
		// A leading "**/" also matches zero directories, so "**/node_modules/**"
		// blocks a top-level node_modules as well as nested ones.
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			g, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, fmt.Errorf("sandbox: compile blocked pattern %q: %w", p, err)
			}
			compiled = append(compiled, g)
			raw = append(raw, p)
		}
	}

	allowed := make([]string, 0, len(allowedDirectories))
	for _, d := range allowedDirectories {
		abs := filepath.Clean(filepath.Join(resolvedRoot, toNativeSeparators(d)))
		resolved := abs
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			resolved = real
		}
		allowed = append(allowed, resolved)
	}

	return &Sandbox{
		root:        resolvedRoot,
		patterns:    compiled,
		rawPatterns: raw,
		allowed:     allowed,
	}, nil
}

// Root returns the resolved physical root every accepted path lies within.
func (s *Sandbox) Root() string { return s.root }

// Validate implements the six-step algorithm: normalize, classify
// traversal, re-resolve through symlinks, compare against the root, and
// match the block-pattern denylist. It returns the accepted absolute
// physical path, or an *errs.Error of kind PathTraversal, OutsideRoot, or
// BlockedPattern.
func (s *Sandbox) Validate(inputPath string) (string, error) {
	native := toNativeSeparators(inputPath)
	isAbsInput := filepath.IsAbs(native)

	var candidate string
	if isAbsInput {
		candidate = filepath.Clean(native)
	} else {
		candidate = filepath.Clean(filepath.Join(s.root, native))
	}

	rel, err := filepath.Rel(s.root, candidate)
	if err != nil {
		return "", errs.New(errs.KindOutsideRoot, "path could not be related to workspace root", "attemptedPath", inputPath)
	}

	if escapesRoot(rel) {
		if isAbsInput {
			return "", errs.New(errs.KindOutsideRoot, "absolute path lies outside the workspace root", "attemptedPath", inputPath)
		}
		return "", errs.New(errs.KindPathTraversal, "relative path escapes the workspace root", "attemptedPath", inputPath)
	}

	resolved, err := resolvePhysical(candidate)
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve physical path: %w", err)
	}

	relResolved, err := filepath.Rel(s.root, resolved)
	if err != nil || escapesRoot(relResolved) {
		if isAbsInput {
			return "", errs.New(errs.KindOutsideRoot, "symlink resolves outside the workspace root", "attemptedPath", inputPath, "resolved", resolved)
		}
		return "", errs.New(errs.KindPathTraversal, "symlink resolves outside the workspace root", "attemptedPath", inputPath, "resolved", resolved)
	}

	posixRel := filepath.ToSlash(relResolved)
	for i, g := range s.patterns {
		if g.Match(posixRel) {
			return "", errs.New(errs.KindBlockedPattern, "path matches a blocked pattern", "attemptedPath", inputPath, "pattern", s.rawPatterns[i])
		}
	}

	if len(s.allowed) > 0 && !s.withinAllowed(resolved) {
		return "", errs.New(errs.KindOutsideRoot, "path lies outside the configured allowed directories", "attemptedPath", inputPath)
	}

	return resolved, nil
}

// withinAllowed reports whether resolved is one of, or nested under, a
// configured allowed directory.
func (s *Sandbox) withinAllowed(resolved string) bool {
	for _, dir := range s.allowed {
		if resolved == dir {
			return true
		}
		if rel, err := filepath.Rel(dir, resolved); err == nil && !escapesRoot(rel) {
			return true
		}
	}
	return false
}

// escapesRoot reports whether a filepath.Rel result names something outside
// the root: either an absolute path (Rel can't produce a relative form) or
// one that walks up via "..".
func escapesRoot(rel string) bool {
	if filepath.IsAbs(rel) {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePhysical resolves candidate through the OS's symlink-resolution
// operation. If candidate itself does not exist yet (e.g. a file about to
// be created), its parent directory is resolved instead and the original
// basename rejoined — this defeats a symlinked parent directory pointing
// outside the root without requiring the leaf itself to exist.
func resolvePhysical(candidate string) (string, error) {
	real, err := filepath.EvalSymlinks(candidate)
	if err == nil {
		return real, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	parent := filepath.Dir(candidate)
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Neither the candidate nor its parent exists yet; accept the
			// cleaned candidate as-is. Deeper ancestors are still bound by
			// the caller's earlier relative-path comparison against root.
			return candidate, nil
		}
		return "", err
	}
	return filepath.Join(realParent, filepath.Base(candidate)), nil
}

// toNativeSeparators accepts both slash and backslash input separators and
// converts them to the OS-native form before any comparison, per the
// sandbox's input-handling contract.
func toNativeSeparators(p string) string {
	if filepath.Separator == '/' {
		return strings.ReplaceAll(p, `\`, "/")
	}
	return strings.ReplaceAll(p, "/", `\`)
}
