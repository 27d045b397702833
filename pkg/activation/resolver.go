package activation

import (
	"strings"

	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Resolution is the outcome of resolving matches into an ordered skill set.
type Resolution struct {
	IDs      []string
	Matches  []Match
	Excluded []string
	Dropped  []Dropped

	// UnknownExclusions are exclusions that name no registered skill.
	UnknownExclusions []string
}

// Resolver orders matches and removes exclusions and conflicts.
type Resolver struct {
	exempt map[string]struct{}
}

// NewResolver creates a resolver. Skills sharing only exempt extensions
// (e.g. ".json" when many unrelated guides mention config files) never
// conflict.
func NewResolver(exemptExtensions ...string) *Resolver {
	r := &Resolver{exempt: make(map[string]struct{}, len(exemptExtensions))}
	for _, ext := range exemptExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.exempt[ext] = struct{}{}
	}
	return r
}

// Resolve applies, in order: removal of excluded skills, per-category
// conflict resolution on shared target extensions (highest score wins,
// explicit references are never dropped) and the final ordering by score
// with registration order as tie-break.
func (r *Resolver) Resolve(reg *skills.Registry, matches []Match, exclusions []string) Resolution {
	var res Resolution

	excluded := make(map[string]struct{}, len(exclusions))
	for _, ref := range exclusions {
		s, ok := reg.LookupRef(ref)
		if !ok {
			res.UnknownExclusions = append(res.UnknownExclusions, ref)
			continue
		}
		excluded[s.ID] = struct{}{}
	}

	candidates := make([]Match, 0, len(matches))
	for _, m := range matches {
		if _, ok := excluded[m.SkillID]; ok {
			res.Excluded = append(res.Excluded, m.SkillID)
			continue
		}
		if _, ok := reg.Lookup(m.SkillID); !ok {
			continue
		}
		candidates = append(candidates, m)
	}
	SortMatches(candidates)

	kept := make(map[skills.Category][]*skills.Skill)
	for _, m := range candidates {
		skill, _ := reg.Lookup(m.SkillID)

		if !m.Explicit {
			if winner, shared := r.conflict(skill, kept[skill.Category]); winner != nil {
				res.Dropped = append(res.Dropped, Dropped{
					SkillID:    skill.ID,
					KeptID:     winner.ID,
					Category:   skill.Category,
					Extensions: shared,
				})
				continue
			}
		}

		kept[skill.Category] = append(kept[skill.Category], skill)
		res.Matches = append(res.Matches, m)
		res.IDs = append(res.IDs, m.SkillID)
	}

	return res
}

func (r *Resolver) conflict(skill *skills.Skill, kept []*skills.Skill) (*skills.Skill, []string) {
	for _, k := range kept {
		if shared := skills.SharedExtensions(skill, k, r.exempt); len(shared) > 0 {
			return k, shared
		}
	}
	return nil, nil
}
