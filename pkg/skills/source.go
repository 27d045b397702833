package skills

import (
	"context"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Source produces raw descriptor records. An error means the source itself
// could not be read; problems with individual entries are reported as
// records with Err set.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// Watchable is implemented by sources backed by files. WatchPaths lists the
// directories whose changes should trigger a reload.
type Watchable interface {
	WatchPaths() []string
}

// StaticSource serves a fixed list of specs.
type StaticSource []Spec

// Records implements Source
func (s StaticSource) Records(_ context.Context) ([]Record, error) {
	records := make([]Record, len(s))
	for i, spec := range s {
		records[i] = Record{Spec: spec}
	}
	return records, nil
}

// MultiSource concatenates the records of several sources in order.
type MultiSource []Source

// Records implements Source
func (m MultiSource) Records(ctx context.Context) ([]Record, error) {
	var records []Record
	for _, src := range m {
		recs, err := src.Records(ctx)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// WatchPaths implements Watchable over the members that support it.
func (m MultiSource) WatchPaths() []string {
	var paths []string
	for _, src := range m {
		if w, ok := src.(Watchable); ok {
			paths = append(paths, w.WatchPaths()...)
		}
	}
	return paths
}

// decodeSpec turns a loosely-typed frontmatter or manifest entry into a Spec.
// Single values are accepted where lists are expected.
func decodeSpec(raw map[string]any) (Spec, error) {
	var spec Spec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &spec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return spec, errors.Wrap(err, "failed to create descriptor decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return spec, errors.Wrap(err, "failed to decode descriptor")
	}
	return spec, nil
}

// rawString reads a string field from a raw entry, ignoring other types.
func rawString(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}
