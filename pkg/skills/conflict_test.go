package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternExtensions(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		expected []string
	}{
		{name: "simple extension", patterns: []string{"**/*.cds"}, expected: []string{".cds"}},
		{name: "literal file name", patterns: []string{"**/manifest.json"}, expected: []string{".json"}},
		{name: "brace alternatives", patterns: []string{"src/**/*.{js,ts}"}, expected: []string{".js", ".ts"}},
		{name: "braces in directories", patterns: []string{"{app,srv}/**/*.cds"}, expected: []string{".cds"}},
		{name: "case folded and deduplicated", patterns: []string{"*.CDS", "db/*.cds"}, expected: []string{".cds"}},
		{name: "no extension", patterns: []string{"**/*", "Makefile"}, expected: nil},
		{name: "wildcard extension", patterns: []string{"**/*.test.*"}, expected: nil},
		{name: "nested braces", patterns: []string{"*.{x{ml,sd},json}"}, expected: []string{".xml", ".xsd", ".json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PatternExtensions(tt.patterns))
		})
	}
}

func TestSharedExtensions(t *testing.T) {
	reg, err := Load(context.Background(), records(
		Spec{ID: "a", FilePatterns: []string{"**/*.cds", "**/*.json"}, Body: "a"},
		Spec{ID: "b", FilePatterns: []string{"db/*.cds", "package.json"}, Body: "b"},
		Spec{ID: "c", FilePatterns: []string{"**/*.ts"}, Body: "c"},
	))
	require.NoError(t, err)

	a, _ := reg.Lookup("a")
	b, _ := reg.Lookup("b")
	c, _ := reg.Lookup("c")

	assert.Equal(t, []string{".cds", ".json"}, SharedExtensions(a, b, nil))
	assert.Equal(t, []string{".cds"}, SharedExtensions(a, b, map[string]struct{}{".json": {}}))
	assert.Empty(t, SharedExtensions(a, c, nil))
}
