package activation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReferences(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		refs       []string
		exclusions []string
	}{
		{name: "empty prompt", prompt: ""},
		{name: "plain text", prompt: "build a fiori list report"},
		{name: "single reference", prompt: "@cap-cds model the books entity", refs: []string{"cap-cds"}},
		{name: "exclusion", prompt: "use @fiori but !@ui5-legacy please", refs: []string{"fiori"}, exclusions: []string{"ui5-legacy"}},
		{name: "trailing punctuation", prompt: "follow @cap-service.", refs: []string{"cap-service"}},
		{name: "separators", prompt: "(@a),@b;@c", refs: []string{"a", "b", "c"}},
		{name: "email ignored", prompt: "mail jane@example.com about it"},
		{name: "deduplicated case-insensitively", prompt: "@Fiori and @fiori", refs: []string{"Fiori"}},
		{name: "namespaced ids", prompt: "@acme/cap-pack/odata", refs: []string{"acme/cap-pack/odata"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, exclusions := ParseReferences(tt.prompt)
			assert.Equal(t, tt.refs, refs)
			assert.Equal(t, tt.exclusions, exclusions)
		})
	}
}

func TestMergeRefs(t *testing.T) {
	assert.Equal(t, []string{"a", "B", "c"}, mergeRefs([]string{"a", " ", "B"}, "b", "c", "A"))
	assert.Empty(t, mergeRefs(nil))
}
