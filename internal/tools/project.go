package tools

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/cursorcli/workspace-mcp/internal/errs"
	"github.com/cursorcli/workspace-mcp/internal/ports"
)

// gitignoreRule is one compiled .gitignore line. The pattern-to-regex
// compilation (anchored/dir-only/negation classification, ** and *
// translation) is grounded in Aman-CERP-amanmcp/internal/gitignore, scaled
// down to what GlobSearch and WorkspaceTree need: a single root-level
// .gitignore, not nested per-directory ones.
type gitignoreRule struct {
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

type gitignoreMatcher struct {
	rules []gitignoreRule
}

func loadGitignore(root string) *gitignoreMatcher {
	m := &gitignoreMatcher{}
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return m
	}
	for _, line := range strings.Split(string(data), "\n") {
		m.addPattern(line)
	}
	return m
}

func (m *gitignoreMatcher) addPattern(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := gitignoreRule{}
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + gitignoreToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

func gitignoreToRegex(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '.', '+', '^', '$', '(', ')', '{', '}', '|', '[', ']', '\\':
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			b.WriteString(string(c))
			i++
		}
	}
	return b.String()
}

// match reports whether relPath (POSIX-separated, relative to the root)
// should be excluded, accounting for negated rules applied in file order.
func (m *gitignoreMatcher) match(relPath string, isDir bool) bool {
	ignored := false
	parts := strings.Split(relPath, "/")
	basename := parts[len(parts)-1]
	for _, r := range m.rules {
		matched := false
		if r.anchored {
			matched = r.regex.MatchString(relPath)
		} else {
			matched = r.regex.MatchString(basename)
			if !matched {
				for _, p := range parts {
					if r.regex.MatchString(p) {
						matched = true
						break
					}
				}
			}
		}
		if matched && r.dirOnly && !isDir {
			// A dir-only rule also excludes everything beneath the
			// matched directory; relPath already walks depth-first so a
			// parent-directory match short-circuits descent in buildTree and
			// the WalkDir callbacks.
			matched = strings.Contains(relPath, "/")
		}
		if matched {
			ignored = !r.negation
		}
	}
	return ignored
}

// Project is the real, OS-backed ProjectPort, rooted at a sandbox's
// resolved physical root. Directory-walk syscalls are paced through a soft
// rate limiter so a pathological workspace_tree or glob_search over a huge
// tree cannot starve the single dispatch loop — the pacing guard named in
// the domain stack wiring for golang.org/x/time/rate.
type Project struct {
	root      string
	ignore    *gitignoreMatcher
	limiter   *rate.Limiter
}

// NewProject creates a Project rooted at root, loading its top-level
// .gitignore (if any) once at construction.
func NewProject(root string) *Project {
	return &Project{
		root:    root,
		ignore:  loadGitignore(root),
		limiter: rate.NewLimiter(rate.Limit(4000), 400),
	}
}

func (p *Project) pace(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.KindTimeout, err, "directory walk cancelled")
	}
	return nil
}

func (p *Project) Info(ctx context.Context) (ports.ProjectInfo, error) {
	info := ports.ProjectInfo{Root: p.root, Languages: map[string]int{}}
	err := filepath.WalkDir(p.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && p.ignore.match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := p.pace(ctx); err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." {
				info.DirCount++
			}
			return nil
		}
		info.FileCount++
		ext := filepath.Ext(d.Name())
		if ext != "" {
			info.Languages[ext]++
		}
		return nil
	})
	if err != nil {
		return ports.ProjectInfo{}, errs.Wrap(errs.KindInternalError, err, "unable to walk project tree")
	}
	return info, nil
}

func (p *Project) GlobSearch(ctx context.Context, pattern string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 1000
	}
	var matches []string
	err := filepath.WalkDir(p.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if p.ignore.match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := p.pace(ctx); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, matchErr := filepath.Match(pattern, rel)
		if matchErr == nil && ok {
			matches = append(matches, rel)
		} else if base, baseErr := filepath.Match(pattern, d.Name()); baseErr == nil && base {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternalError, err, "unable to search project tree")
	}
	return matches, nil
}

func (p *Project) WorkspaceTree(ctx context.Context, maxDepth int, excludePatterns []string) (ports.TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	extra := &gitignoreMatcher{}
	for _, pat := range excludePatterns {
		extra.addPattern(pat)
	}

	root := ports.TreeNode{Name: filepath.Base(p.root), IsDir: true}
	if err := p.buildTree(ctx, p.root, ".", 0, maxDepth, extra, &root); err != nil {
		return ports.TreeNode{}, err
	}
	return root, nil
}

func (p *Project) buildTree(ctx context.Context, absPath, relPath string, depth, maxDepth int, extra *gitignoreMatcher, node *ports.TreeNode) error {
	if depth >= maxDepth {
		return nil
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.pace(ctx); err != nil {
			return err
		}

		childRel := e.Name()
		if relPath != "." {
			childRel = relPath + "/" + e.Name()
		}
		if p.ignore.match(childRel, e.IsDir()) || extra.match(childRel, e.IsDir()) {
			continue
		}

		child := ports.TreeNode{Name: e.Name(), IsDir: e.IsDir()}
		if e.IsDir() {
			if err := p.buildTree(ctx, filepath.Join(absPath, e.Name()), childRel, depth+1, maxDepth, extra, &child); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}
	return nil
}
