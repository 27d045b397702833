package skills

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillkit/pkg/logger"
)

// Registry is an immutable, versioned snapshot of validated skills.
type Registry struct {
	version  uint64
	loadedAt time.Time
	skills   []*Skill
	byID     map[string]*Skill
	byName   map[string]*Skill
	issues   []error
}

// LoadOption configures Load
type LoadOption func(*loadOptions)

type loadOptions struct {
	strict  bool
	version uint64
}

// WithStrict makes Load fail with the combined issues when any descriptor is rejected.
func WithStrict() LoadOption {
	return func(o *loadOptions) {
		o.strict = true
	}
}

// WithVersion stamps the snapshot with a version number.
func WithVersion(version uint64) LoadOption {
	return func(o *loadOptions) {
		o.version = version
	}
}

// Empty returns a registry without skills.
func Empty() *Registry {
	return &Registry{
		loadedAt: time.Now(),
		byID:     map[string]*Skill{},
		byName:   map[string]*Skill{},
	}
}

// Load validates records and builds a registry snapshot. Malformed records
// are skipped with a *ValidationError; ids shared by several records reject
// all of them with a *DuplicateIDError. Ids are compared case-insensitively.
// Without WithStrict, rejected records never make Load fail.
func Load(ctx context.Context, records []Record, opts ...LoadOption) (*Registry, error) {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	reg := Empty()
	reg.version = options.version

	candidates := make([]*Skill, len(records))
	groups := make(map[string][]int)
	var order []string

	for i, rec := range records {
		key := strings.ToLower(strings.TrimSpace(rec.Spec.ID))
		if key != "" {
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], i)
		}

		if rec.Err != nil {
			reg.issues = append(reg.issues, &ValidationError{Index: i, ID: strings.TrimSpace(rec.Spec.ID), Origin: rec.Origin, Reason: rec.Err.Error()})
			continue
		}

		skill, verr := validate(i, rec)
		if verr != nil {
			reg.issues = append(reg.issues, verr)
			continue
		}
		candidates[i] = skill
	}

	rejected := make(map[int]bool)
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		valid := false
		for _, i := range members {
			if candidates[i] != nil {
				valid = true
			}
		}
		if !valid {
			continue
		}
		dup := &DuplicateIDError{ID: strings.TrimSpace(records[members[0]].Spec.ID)}
		for _, i := range members {
			dup.Indexes = append(dup.Indexes, i)
			dup.Origins = append(dup.Origins, records[i].Origin)
			rejected[i] = true
		}
		reg.issues = append(reg.issues, dup)
	}

	for i, skill := range candidates {
		if skill == nil || rejected[i] {
			continue
		}
		skill.Index = len(reg.skills)
		reg.skills = append(reg.skills, skill)
		reg.byID[strings.ToLower(skill.ID)] = skill
		name := strings.ToLower(skill.DisplayName)
		if _, exists := reg.byName[name]; !exists {
			reg.byName[name] = skill
		}
	}

	log := logger.G(ctx).WithField("version", reg.version)
	for _, issue := range reg.issues {
		log.WithError(issue).Warn("skipping skill descriptor")
	}
	log.WithFields(map[string]any{
		"skills":   len(reg.skills),
		"rejected": len(reg.issues),
	}).Debug("skill registry loaded")

	if options.strict && len(reg.issues) > 0 {
		return reg, reg.Err()
	}
	return reg, nil
}

func validate(index int, rec Record) (*Skill, *ValidationError) {
	spec := rec.Spec
	fail := func(format string, args ...any) *ValidationError {
		return &ValidationError{Index: index, ID: strings.TrimSpace(spec.ID), Origin: rec.Origin, Reason: fmt.Sprintf(format, args...)}
	}

	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return nil, fail("id is required")
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return nil, fail("id must not contain whitespace")
	}

	body := strings.TrimSpace(spec.Body)
	if body == "" {
		return nil, fail("body is empty")
	}

	category, err := ParseCategory(spec.Category)
	if err != nil {
		return nil, fail("%v", err)
	}

	var patterns []string
	for _, p := range spec.FilePatterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fail("invalid file pattern %q", p)
		}
		patterns = append(patterns, p)
	}

	var deps []string
	var depGlobs []glob.Glob
	for _, d := range spec.Dependencies {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		g, err := glob.Compile(d)
		if err != nil {
			return nil, fail("invalid dependency hint %q: %v", d, err)
		}
		deps = append(deps, d)
		depGlobs = append(depGlobs, g)
	}

	name := strings.TrimSpace(spec.DisplayName)
	if name == "" {
		name = id
	}

	origin := rec.Origin
	if origin == "" {
		origin = fmt.Sprintf("index %d", index)
	}

	return &Skill{
		ID:              id,
		DisplayName:     name,
		Description:     strings.TrimSpace(spec.Description),
		Keywords:        normalizeKeywords(spec.Keywords),
		FilePatterns:    patterns,
		Category:        category,
		Dependencies:    deps,
		Body:            body,
		EstimatedSize:   utf8.RuneCountInString(body),
		Origin:          origin,
		dependencyGlobs: depGlobs,
		extensions:      PatternExtensions(patterns),
	}, nil
}

func normalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Version returns the snapshot version.
func (r *Registry) Version() uint64 {
	return r.version
}

// LoadedAt returns when the snapshot was built.
func (r *Registry) LoadedAt() time.Time {
	return r.loadedAt
}

// Len returns the number of skills in the snapshot.
func (r *Registry) Len() int {
	return len(r.skills)
}

// Lookup returns the skill with the given id.
func (r *Registry) Lookup(id string) (*Skill, bool) {
	s, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	return s, ok
}

// LookupRef resolves a reference written by a user: an id or a display name,
// both case-insensitive. Ids take precedence over names.
func (r *Registry) LookupRef(ref string) (*Skill, bool) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if s, ok := r.byID[key]; ok {
		return s, true
	}
	s, ok := r.byName[key]
	return s, ok
}

// All returns the skills in registration order.
func (r *Registry) All() []*Skill {
	return append([]*Skill(nil), r.skills...)
}

// ByCategory returns the skills ordered by category precedence, then
// registration order.
func (r *Registry) ByCategory() []*Skill {
	out := r.All()
	slices.SortStableFunc(out, func(a, b *Skill) int {
		if d := a.Category.Rank() - b.Category.Rank(); d != 0 {
			return d
		}
		return a.Index - b.Index
	})
	return out
}

// Issues returns the errors recorded while loading the snapshot.
func (r *Registry) Issues() []error {
	return append([]error(nil), r.issues...)
}

// Err combines the load issues into a single error, or nil when there are none.
func (r *Registry) Err() error {
	var result *multierror.Error
	for _, issue := range r.issues {
		result = multierror.Append(result, issue)
	}
	return result.ErrorOrNil()
}
