package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ManifestSource reads descriptors from a single YAML file:
//
//	skills:
//	  - id: cap-cds
//	    name: CAP data modeling
//	    file_patterns: ["**/*.cds"]
//	    category: data
//	    body_file: guides/cds.md
//
// body_file is resolved relative to the manifest and takes precedence over body.
type ManifestSource struct {
	Path string
}

type manifestFile struct {
	Skills []yaml.Node `yaml:"skills"`
}

// Records implements Source
func (m ManifestSource) Records(_ context.Context) ([]Record, error) {
	content, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill manifest")
	}

	var file manifestFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse skill manifest %s", m.Path)
	}

	baseDir := filepath.Dir(m.Path)
	records := make([]Record, 0, len(file.Skills))
	for i := range file.Skills {
		records = append(records, m.record(baseDir, i, &file.Skills[i]))
	}
	return records, nil
}

func (m ManifestSource) record(baseDir string, index int, node *yaml.Node) Record {
	origin := fmt.Sprintf("%s#%d", m.Path, index)

	raw := map[string]any{}
	if err := node.Decode(&raw); err != nil {
		return Record{Origin: origin, Err: errors.Wrap(err, "entry is not a mapping")}
	}

	spec, err := decodeSpec(raw)
	if err != nil {
		return Record{Spec: Spec{ID: rawString(raw, "id")}, Origin: origin, Err: err}
	}

	if bodyFile := rawString(raw, "body_file"); bodyFile != "" {
		path := bodyFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return Record{Spec: spec, Origin: origin, Err: errors.Wrapf(err, "failed to read body_file %s", bodyFile)}
		}
		spec.Body = extractBodyContent(string(body))
	}

	return Record{Spec: spec, Origin: origin}
}

// WatchPaths implements Watchable
func (m ManifestSource) WatchPaths() []string {
	return []string{filepath.Dir(m.Path)}
}
