package activation

import (
	"context"
	"testing"

	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, specs ...skills.Spec) *skills.Registry {
	t.Helper()
	reg, err := skills.Load(context.Background(), skillRecords(specs...), skills.WithStrict(), skills.WithVersion(1))
	require.NoError(t, err)
	return reg
}

func skillRecords(specs ...skills.Spec) []skills.Record {
	out := make([]skills.Record, len(specs))
	for i, s := range specs {
		out[i] = skills.Record{Spec: s}
	}
	return out
}

// scenarioRegistry is the A/B/C registry of the activation walkthrough.
func scenarioRegistry(t *testing.T) *skills.Registry {
	return newRegistry(t,
		skills.Spec{ID: "A", FilePatterns: []string{"**/*.cds"}, Category: "data", Body: "A body"},
		skills.Spec{ID: "B", Keywords: []string{"fiori"}, Category: "ui", Body: "B body"},
		skills.Spec{ID: "C", FilePatterns: []string{"**/manifest.json"}, Category: "ui", Body: "C body"},
	)
}

func matchIDs(matches []Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.SkillID
	}
	return ids
}
