// Package workspace builds activation signals from the state of a project
// on disk: which files are being worked on and which dependencies the
// project manifests declare.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
)

// Input is what the caller knows about the current request.
type Input struct {
	Files        []string
	Prompt       string
	ExplicitRefs []string
}

// Collector turns caller input into a fresh workspace signal.
type Collector interface {
	Collect(ctx context.Context, in Input) (activation.Signal, error)
}

// FSCollector reads manifests from a project directory.
type FSCollector struct {
	// Root is the project directory. Relative file paths are resolved against it.
	Root string
	// SortByModTime reorders files so the most recently modified come first.
	SortByModTime bool
}

// NewFSCollector creates a collector rooted at root.
func NewFSCollector(root string, sortByModTime bool) *FSCollector {
	return &FSCollector{Root: root, SortByModTime: sortByModTime}
}

// Collect implements Collector. Manifests are read from the root and from
// every directory between the root and an active file. Missing manifests are
// not errors; malformed ones are logged and skipped.
func (c *FSCollector) Collect(ctx context.Context, in Input) (activation.Signal, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return activation.Signal{}, errors.Wrap(err, "failed to resolve workspace root")
	}
	info, err := os.Stat(root)
	if err != nil {
		return activation.Signal{}, errors.Wrap(err, "failed to read workspace root")
	}
	if !info.IsDir() {
		return activation.Signal{}, errors.Errorf("workspace root %s is not a directory", root)
	}

	files := make([]workspaceFile, 0, len(in.Files))
	for _, f := range in.Files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		files = append(files, resolveFile(root, f))
	}
	if c.SortByModTime {
		slices.SortStableFunc(files, func(a, b workspaceFile) int {
			return b.modTime.Compare(a.modTime)
		})
	}

	sig := activation.Signal{
		PromptText:        in.Prompt,
		ExplicitSkillRefs: in.ExplicitRefs,
		ActiveFiles:       make([]string, 0, len(files)),
	}
	for _, f := range files {
		sig.ActiveFiles = append(sig.ActiveFiles, f.rel)
	}

	tokens := newTokenSet()
	for _, dir := range manifestDirs(root, files) {
		readManifests(ctx, dir, tokens)
	}
	sig.ManifestTokens = tokens.list()

	logger.G(ctx).WithFields(map[string]any{
		"files":  len(sig.ActiveFiles),
		"tokens": len(sig.ManifestTokens),
	}).Debug("workspace signal collected")
	return sig, nil
}

type workspaceFile struct {
	abs     string
	rel     string
	modTime time.Time
}

func resolveFile(root, path string) workspaceFile {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}

	f := workspaceFile{abs: abs, rel: activation.NormalizePath(filepath.ToSlash(rel))}
	if info, err := os.Stat(abs); err == nil {
		f.modTime = info.ModTime()
	}
	return f
}

// manifestDirs lists the root and the directories from the root down to each
// active file, sorted for a stable token order.
func manifestDirs(root string, files []workspaceFile) []string {
	seen := map[string]struct{}{root: {}}
	dirs := []string{}
	for _, f := range files {
		dir := filepath.Dir(f.abs)
		for {
			rel, err := filepath.Rel(root, dir)
			if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
				break
			}
			if _, ok := seen[dir]; !ok {
				seen[dir] = struct{}{}
				dirs = append(dirs, dir)
			}
			dir = filepath.Dir(dir)
		}
	}
	slices.Sort(dirs)
	return append([]string{root}, dirs...)
}

type tokenSet struct {
	seen  map[string]struct{}
	order []string
}

func newTokenSet() *tokenSet {
	return &tokenSet{seen: make(map[string]struct{})}
}

func (t *tokenSet) add(tokens ...string) {
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, ok := t.seen[tok]; ok {
			continue
		}
		t.seen[tok] = struct{}{}
		t.order = append(t.order, tok)
	}
}

func (t *tokenSet) list() []string {
	if t.order == nil {
		return []string{}
	}
	return t.order
}
