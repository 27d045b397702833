package activation

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the registry size above which skills are scored concurrently.
const parallelThreshold = 64

// preparedSignal is a signal normalized once per request.
type preparedSignal struct {
	files  []string
	tokens []string
	prompt string
	refs   map[string]string
}

func prepare(sig Signal) preparedSignal {
	p := preparedSignal{
		prompt: strings.ToLower(sig.PromptText),
		refs:   make(map[string]string, len(sig.ExplicitSkillRefs)),
	}
	for _, f := range sig.ActiveFiles {
		if f = NormalizePath(f); f != "" {
			p.files = append(p.files, f)
		}
	}
	seen := make(map[string]struct{}, len(sig.ManifestTokens))
	for _, tok := range sig.ManifestTokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		p.tokens = append(p.tokens, tok)
	}
	for _, ref := range sig.ExplicitSkillRefs {
		key := strings.ToLower(strings.TrimSpace(ref))
		if key != "" {
			if _, ok := p.refs[key]; !ok {
				p.refs[key] = ref
			}
		}
	}
	return p
}

// NormalizePath converts a path to the slash-separated, relative form file
// patterns are matched against.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return strings.TrimLeft(path, "/")
}

// Score computes the match of a single skill against a signal. Explicit
// references are compared with the skill id; ScoreAll resolves display
// names through the registry first.
func Score(skill *skills.Skill, sig Signal, w Weights) Match {
	return score(skill, prepare(sig), w)
}

func score(skill *skills.Skill, sig preparedSignal, w Weights) Match {
	m := Match{
		SkillID:  skill.ID,
		Category: skill.Category,
		Index:    skill.Index,
		Reasons:  []string{},
	}

	if ref, ok := sig.refs[strings.ToLower(skill.ID)]; ok {
		m.Explicit = true
		m.Score = w.Explicit
		m.Reasons = append(m.Reasons, fmt.Sprintf("explicit reference %q", ref))
		return m
	}

	for i, file := range sig.files {
		factor := w.Recency(i)
		for _, pattern := range skill.FilePatterns {
			// patterns are validated at load, so Match cannot fail
			if ok, _ := doublestar.Match(pattern, file); ok {
				m.Score += w.Pattern * factor
				m.Reasons = append(m.Reasons, fmt.Sprintf("pattern %q matched %s (recency %.2f)", pattern, file, factor))
			}
		}
	}

	if sig.prompt != "" {
		for _, kw := range skill.Keywords {
			if strings.Contains(sig.prompt, kw) {
				m.Score += w.Keyword
				m.Reasons = append(m.Reasons, fmt.Sprintf("keyword %q found in prompt", kw))
			}
		}
	}

	for _, tok := range sig.tokens {
		if skill.MatchesDependency(tok) {
			m.Score += w.Dependency
			m.Reasons = append(m.Reasons, fmt.Sprintf("manifest token %q satisfies a dependency hint", tok))
		}
	}

	return m
}

// ScoreAll scores every skill of the snapshot, zero scores included, in
// registration order. Large registries are scored in parallel; results are
// written by index so the output does not depend on scheduling.
func ScoreAll(ctx context.Context, reg *skills.Registry, sig Signal, w Weights) ([]Match, error) {
	all := reg.All()
	prepared := prepare(sig)
	prepared.refs = resolveRefs(reg, sig.ExplicitSkillRefs)
	out := make([]Match, len(all))

	if len(all) <= parallelThreshold {
		for i, s := range all {
			out[i] = score(s, prepared, w)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = score(s, prepared, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveRefs maps each reference to the lowercased id of the one skill
// LookupRef resolves it to, the same skill an exclusion with that text
// removes. Unresolved references select nothing.
func resolveRefs(reg *skills.Registry, refs []string) map[string]string {
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		s, ok := reg.LookupRef(strings.TrimSpace(ref))
		if !ok {
			continue
		}
		key := strings.ToLower(s.ID)
		if _, seen := out[key]; !seen {
			out[key] = ref
		}
	}
	return out
}

// MatchAll returns the matches with a positive score or an explicit
// reference in SortMatches order.
func MatchAll(ctx context.Context, reg *skills.Registry, sig Signal, w Weights) ([]Match, error) {
	all, err := ScoreAll(ctx, reg, sig, w)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(all))
	for _, m := range all {
		if m.Score > 0 || m.Explicit {
			matches = append(matches, m)
		}
	}
	SortMatches(matches)
	return matches, nil
}

// SortMatches puts explicit references first whatever the weights, then
// orders by descending score and registration order.
func SortMatches(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Explicit && !b.Explicit:
			return -1
		case !a.Explicit && b.Explicit:
			return 1
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.Index - b.Index
	})
}
