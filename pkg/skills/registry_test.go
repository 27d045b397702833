package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(specs ...Spec) []Record {
	out := make([]Record, len(specs))
	for i, s := range specs {
		out[i] = Record{Spec: s}
	}
	return out
}

func TestLoad(t *testing.T) {
	reg, err := Load(context.Background(), records(
		Spec{
			ID:           "cap-cds",
			DisplayName:  "CAP data modeling",
			Keywords:     []string{"CDS", "entity", "cds"},
			FilePatterns: []string{"./**/*.cds"},
			Category:     "Data",
			Dependencies: []string{"@sap/cds*"},
			Body:         "  Use cds entities.\n",
		},
		Spec{ID: "fiori", Keywords: []string{"fiori"}, Body: "Fiori guide"},
	), WithVersion(4))
	require.NoError(t, err)

	assert.Equal(t, uint64(4), reg.Version())
	assert.Equal(t, 2, reg.Len())
	assert.Empty(t, reg.Issues())
	assert.NoError(t, reg.Err())

	cds, ok := reg.Lookup("cap-cds")
	require.True(t, ok)
	assert.Equal(t, "CAP data modeling", cds.DisplayName)
	assert.Equal(t, []string{"cds", "entity"}, cds.Keywords)
	assert.Equal(t, []string{"**/*.cds"}, cds.FilePatterns)
	assert.Equal(t, CategoryData, cds.Category)
	assert.Equal(t, "Use cds entities.", cds.Body)
	assert.Equal(t, 17, cds.EstimatedSize)
	assert.Equal(t, []string{".cds"}, cds.TargetExtensions())
	assert.Equal(t, "index 0", cds.Origin)
	assert.True(t, cds.MatchesDependency("@sap/cds-dk"))
	assert.False(t, cds.MatchesDependency("express"))

	fiori, ok := reg.Lookup("FIORI")
	require.True(t, ok)
	assert.Equal(t, "fiori", fiori.DisplayName)
	assert.Equal(t, CategoryGeneral, fiori.Category)
	assert.Equal(t, 1, fiori.Index)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "cap-cds", all[0].ID)
	assert.Equal(t, "fiori", all[1].ID)
}

func TestRegistryByCategory(t *testing.T) {
	reg, err := Load(context.Background(), records(
		Spec{ID: "commit", Body: "c"},
		Spec{ID: "fiori", Category: "ui", Body: "f"},
		Spec{ID: "cap-cds", Category: "data", Body: "d"},
		Spec{ID: "ui5", Category: "ui", Body: "u"},
	))
	require.NoError(t, err)

	var ids []string
	for _, s := range reg.ByCategory() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"cap-cds", "fiori", "ui5", "commit"}, ids)
	assert.Equal(t, "commit", reg.All()[0].ID)
}

func TestLoadSkipsMalformedDescriptors(t *testing.T) {
	tests := []struct {
		name   string
		spec   Spec
		reason string
	}{
		{name: "empty body", spec: Spec{ID: "a", Body: "  \n"}, reason: "body is empty"},
		{name: "missing id", spec: Spec{Body: "x"}, reason: "id is required"},
		{name: "id with whitespace", spec: Spec{ID: "a b", Body: "x"}, reason: "whitespace"},
		{name: "bad glob", spec: Spec{ID: "a", Body: "x", FilePatterns: []string{"src/[a-"}}, reason: "invalid file pattern"},
		{name: "bad category", spec: Spec{ID: "a", Body: "x", Category: "backend"}, reason: "unknown category"},
		{name: "bad dependency hint", spec: Spec{ID: "a", Body: "x", Dependencies: []string{"[oops"}}, reason: "invalid dependency hint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Load(context.Background(), records(tt.spec, Spec{ID: "ok", Body: "fine"}))
			require.NoError(t, err)

			assert.Equal(t, 1, reg.Len())
			_, ok := reg.Lookup("ok")
			assert.True(t, ok)

			issues := reg.Issues()
			require.Len(t, issues, 1)
			var verr *ValidationError
			require.ErrorAs(t, issues[0], &verr)
			assert.Equal(t, 0, verr.Index)
			assert.Contains(t, verr.Reason, tt.reason)
		})
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	t.Run("both valid copies rejected", func(t *testing.T) {
		reg, err := Load(context.Background(), records(
			Spec{ID: "dup", Body: "one"},
			Spec{ID: "keep", Body: "kept"},
			Spec{ID: "Dup", Body: "two"},
		))
		require.NoError(t, err)

		assert.Equal(t, 1, reg.Len())
		_, ok := reg.Lookup("dup")
		assert.False(t, ok)

		keep, ok := reg.Lookup("keep")
		require.True(t, ok)
		assert.Equal(t, 0, keep.Index)

		require.Len(t, reg.Issues(), 1)
		var dup *DuplicateIDError
		require.ErrorAs(t, reg.Issues()[0], &dup)
		assert.Equal(t, "dup", dup.ID)
		assert.Equal(t, []int{0, 2}, dup.Indexes)
	})

	t.Run("malformed copy still rejects the valid one", func(t *testing.T) {
		reg, err := Load(context.Background(), records(
			Spec{ID: "dup", Body: ""},
			Spec{ID: "dup", Body: "valid"},
		))
		require.NoError(t, err)
		assert.Equal(t, 0, reg.Len())
		assert.Len(t, reg.Issues(), 2)
	})

	t.Run("two malformed copies are plain validation errors", func(t *testing.T) {
		reg, err := Load(context.Background(), records(
			Spec{ID: "dup"},
			Spec{ID: "dup"},
		))
		require.NoError(t, err)
		for _, issue := range reg.Issues() {
			assert.IsType(t, &ValidationError{}, issue)
		}
	})
}

func TestLoadRecordErrors(t *testing.T) {
	reg, err := Load(context.Background(), []Record{
		{Spec: Spec{ID: "broken"}, Origin: "skills/broken/SKILL.md", Err: assert.AnError},
		{Spec: Spec{ID: "fine", Body: "ok"}, Origin: "skills/fine/SKILL.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	require.Len(t, reg.Issues(), 1)
	assert.Contains(t, reg.Issues()[0].Error(), "skills/broken/SKILL.md")
	assert.Contains(t, reg.Issues()[0].Error(), `"broken"`)
}

func TestLoadStrict(t *testing.T) {
	reg, err := Load(context.Background(), records(
		Spec{ID: "a", Body: ""},
		Spec{ID: "b", Body: "ok"},
	), WithStrict())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body is empty")
	require.NotNil(t, reg)
	assert.Equal(t, 1, reg.Len())

	_, err = Load(context.Background(), records(Spec{ID: "b", Body: "ok"}), WithStrict())
	assert.NoError(t, err)
}

func TestLookupRef(t *testing.T) {
	reg, err := Load(context.Background(), records(
		Spec{ID: "cap-service", DisplayName: "CAP Services", Body: "x"},
		Spec{ID: "cap services", Body: "invalid id"},
		Spec{ID: "other", DisplayName: "cap-service", Body: "y"},
	))
	require.NoError(t, err)

	s, ok := reg.LookupRef("cap services")
	require.True(t, ok)
	assert.Equal(t, "cap-service", s.ID)

	s, ok = reg.LookupRef("CAP-SERVICE")
	require.True(t, ok)
	assert.Equal(t, "cap-service", s.ID, "ids take precedence over display names")

	_, ok = reg.LookupRef("missing")
	assert.False(t, ok)
}

func TestEmptyRegistry(t *testing.T) {
	reg := Empty()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, uint64(0), reg.Version())
	assert.Empty(t, reg.All())
	assert.NoError(t, reg.Err())
}
