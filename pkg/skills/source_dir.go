package skills

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillFileName = "SKILL.md"

// DirectorySource discovers skills laid out as <dir>/<name>/SKILL.md, with
// the descriptor fields in the YAML frontmatter and the body in the markdown
// that follows it.
type DirectorySource struct {
	skillDirs  []string
	pluginDirs []pluginDirConfig
}

// pluginDirConfig represents a plugin directory with its id prefix
type pluginDirConfig struct {
	dir    string
	prefix string
}

// DirOption configures a DirectorySource
type DirOption func(*DirectorySource) error

// WithSkillDirs sets the skill directories, highest precedence first
func WithSkillDirs(dirs ...string) DirOption {
	return func(d *DirectorySource) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithPluginDirs scans plugin roots for nested <org>/<repo>/skills directories.
// Skills found there get an "<org>/<repo>/" id prefix.
func WithPluginDirs(roots ...string) DirOption {
	return func(d *DirectorySource) error {
		for _, root := range roots {
			d.addPluginDirs(root)
		}
		return nil
	}
}

// WithDefaultDirs uses the repo-local and user-global skill directories
func WithDefaultDirs() DirOption {
	return func(d *DirectorySource) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.skillDirs = []string{
			"./.skillkit/skills",
			filepath.Join(homeDir, ".skillkit", "skills"),
		}

		d.pluginDirs = []pluginDirConfig{}
		d.addPluginDirs("./.skillkit/plugins")
		d.addPluginDirs(filepath.Join(homeDir, ".skillkit", "plugins"))

		return nil
	}
}

func (d *DirectorySource) addPluginDirs(pluginsDir string) {
	_ = filepath.Walk(pluginsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}

		skillsDir := filepath.Join(path, "skills")
		if _, err := os.Stat(skillsDir); err != nil {
			return nil
		}

		relPath, err := filepath.Rel(pluginsDir, path)
		if err != nil {
			return nil
		}

		d.pluginDirs = append(d.pluginDirs, pluginDirConfig{
			dir:    skillsDir,
			prefix: filepath.ToSlash(relPath) + "/",
		})

		return filepath.SkipDir
	})
}

// NewDirectorySource creates a directory source. Without options the default
// directories are used.
func NewDirectorySource(opts ...DirOption) (*DirectorySource, error) {
	d := &DirectorySource{}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, err
		}
		return d, nil
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Records implements Source. Missing directories are skipped. When two
// directories hold a skill with the same name the first one wins.
func (d *DirectorySource) Records(ctx context.Context) ([]Record, error) {
	var records []Record
	seen := make(map[string]string)

	for _, dir := range d.skillDirs {
		records = d.recordsFromDir(ctx, dir, "", seen, records)
	}
	for _, pluginDir := range d.pluginDirs {
		records = d.recordsFromDir(ctx, pluginDir.dir, pluginDir.prefix, seen, records)
	}

	return records, nil
}

func (d *DirectorySource) recordsFromDir(ctx context.Context, dir, prefix string, seen map[string]string, records []Record) []Record {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return records
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skillPath := filepath.Join(entryPath, skillFileName)
		if _, err := os.Stat(skillPath); err != nil {
			continue
		}

		key := prefix + entry.Name()
		if first, exists := seen[key]; exists {
			logger.G(ctx).WithFields(map[string]any{
				"skill":     key,
				"shadowed":  skillPath,
				"active_in": first,
			}).Debug("skill shadowed by a higher precedence directory")
			continue
		}
		seen[key] = skillPath

		rec := loadSkillFile(skillPath)
		rec.Spec.ID = prefix + rec.Spec.ID
		if rec.Spec.ID == prefix {
			rec.Spec.ID = key
		}
		records = append(records, rec)
	}

	return records
}

// loadSkillFile reads a single SKILL.md. The id defaults to the directory name.
func loadSkillFile(path string) Record {
	rec := Record{Origin: path}
	dirName := filepath.Base(filepath.Dir(path))

	content, err := os.ReadFile(path)
	if err != nil {
		rec.Spec.ID = dirName
		rec.Err = errors.Wrap(err, "failed to read skill file")
		return rec
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		rec.Spec.ID = dirName
		rec.Err = errors.Wrap(err, "failed to parse markdown")
		return rec
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		rec.Spec.ID = dirName
		rec.Err = errors.Wrap(err, "invalid frontmatter")
		return rec
	}
	if metaData == nil {
		rec.Spec.ID = dirName
		rec.Err = errors.New("missing frontmatter")
		return rec
	}

	spec, err := decodeSpec(metaData)
	if err != nil {
		rec.Spec.ID = dirName
		rec.Err = err
		return rec
	}
	if strings.TrimSpace(spec.ID) == "" {
		spec.ID = dirName
	}
	spec.Body = extractBodyContent(string(content))

	rec.Spec = spec
	return rec
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}

// WatchPaths implements Watchable. fsnotify is not recursive, so each skill
// directory is listed along with its parent.
func (d *DirectorySource) WatchPaths() []string {
	var paths []string
	dirs := append([]string(nil), d.skillDirs...)
	for _, p := range d.pluginDirs {
		dirs = append(dirs, p.dir)
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		paths = append(paths, dir)
		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())
			if info, err := os.Stat(entryPath); err == nil && info.IsDir() {
				paths = append(paths, entryPath)
			}
		}
	}
	return paths
}
