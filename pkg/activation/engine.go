package activation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultBudget is the document budget used when a request sets none.
const DefaultBudget = 24000

// RegistryProvider hands out the registry snapshot a request runs against.
type RegistryProvider interface {
	Current() *skills.Registry
}

// RegistryFunc adapts a function to RegistryProvider.
type RegistryFunc func() *skills.Registry

// Current implements RegistryProvider
func (f RegistryFunc) Current() *skills.Registry {
	return f()
}

// StaticRegistry serves a fixed snapshot.
func StaticRegistry(reg *skills.Registry) RegistryProvider {
	return RegistryFunc(func() *skills.Registry { return reg })
}

// Engine runs activation requests: match, resolve, compose.
type Engine struct {
	provider RegistryProvider
	weights  Weights
	resolver *Resolver
	budget   int
	exempt   []string
}

// Option configures an Engine
type Option func(*Engine)

// WithWeights overrides the scoring constants
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithDefaultBudget sets the budget for requests that carry none
func WithDefaultBudget(budget int) Option {
	return func(e *Engine) {
		e.budget = budget
	}
}

// WithExemptExtensions lists extensions that never make skills conflict
func WithExemptExtensions(exts ...string) Option {
	return func(e *Engine) {
		e.exempt = exts
	}
}

// NewEngine creates an engine reading snapshots from provider.
func NewEngine(provider RegistryProvider, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("registry provider is required")
	}
	e := &Engine{
		provider: provider,
		weights:  DefaultWeights(),
		budget:   DefaultBudget,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid activation weights")
	}
	if e.budget <= 0 {
		return nil, errors.Errorf("default budget must be positive, got %d", e.budget)
	}
	e.resolver = NewResolver(e.exempt...)
	return e, nil
}

// run is the shared state of one request.
type run struct {
	id         string
	reg        *skills.Registry
	signal     Signal
	exclusions []string
	unknown    []string
	budget     int
}

func (e *Engine) begin(ctx context.Context, req Request) (context.Context, *run, error) {
	if req.Budget < 0 {
		return ctx, nil, errors.Errorf("budget must not be negative, got %d", req.Budget)
	}

	r := &run{
		id:     uuid.NewString(),
		reg:    e.provider.Current(),
		signal: req.Signal(),
		budget: req.Budget,
	}
	if r.budget == 0 {
		r.budget = e.budget
	}

	promptRefs, promptExclusions := ParseReferences(req.PromptText)
	r.signal.ExplicitSkillRefs = mergeRefs(req.ExplicitSkillRefs, knownPathRefs(r.reg, promptRefs)...)
	r.exclusions = mergeRefs(req.ExplicitExclusions, knownPathRefs(r.reg, promptExclusions)...)

	for _, ref := range mergeRefs(r.signal.ExplicitSkillRefs, r.exclusions...) {
		if _, ok := r.reg.LookupRef(ref); !ok {
			r.unknown = append(r.unknown, ref)
		}
	}

	ctx = logger.WithFields(ctx, logrus.Fields{
		"request_id":       r.id,
		"registry_version": r.reg.Version(),
	})
	for _, ref := range r.unknown {
		logger.G(ctx).WithError(&UnknownReferenceError{Ref: ref}).Debug("ignoring skill reference")
	}
	return ctx, r, nil
}

// knownPathRefs drops prompt references containing a slash that name no
// skill. Prompts mention scoped packages such as @sap/cds far more often
// than plugin skills.
func knownPathRefs(reg *skills.Registry, refs []string) []string {
	out := refs[:0:0]
	for _, ref := range refs {
		if strings.Contains(ref, "/") {
			if _, ok := reg.LookupRef(ref); !ok {
				continue
			}
		}
		out = append(out, ref)
	}
	return out
}

// Activate selects the skills that apply to the request and composes their
// bodies. No match is not an error: the response is simply empty.
func (e *Engine) Activate(ctx context.Context, req Request) (*Response, error) {
	ctx, r, err := e.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = telemetry.WithSpan(ctx, "activation.activate", func(ctx context.Context) error {
		start := time.Now()

		matches, err := MatchAll(ctx, r.reg, r.signal, e.weights)
		if err != nil {
			return errors.Wrap(err, "failed to score skills")
		}
		res := e.resolver.Resolve(r.reg, matches, r.exclusions)
		comp := Compose(r.reg, res.IDs, r.budget)

		resp = &Response{
			RequestID:         r.id,
			RegistryVersion:   r.reg.Version(),
			SkillIDs:          comp.Included,
			Document:          comp.Document,
			Truncated:         comp.Truncated,
			Omitted:           comp.Omitted,
			Diagnostics:       diagnostics(res.Matches, comp.Included, r.unknown),
			UnknownReferences: r.unknown,
		}
		if resp.SkillIDs == nil {
			resp.SkillIDs = []string{}
		}

		for _, d := range res.Dropped {
			telemetry.AddEvent(ctx, "activation.dropped",
				attribute.String("skill.id", d.SkillID),
				attribute.String("skill.kept_id", d.KeptID),
				attribute.StringSlice("skill.extensions", d.Extensions),
			)
		}
		if len(comp.Omitted) > 0 {
			telemetry.AddEvent(ctx, "activation.omitted", attribute.StringSlice("skill.ids", comp.Omitted))
		}
		telemetry.SetAttributes(ctx,
			attribute.Int("activation.matches", len(matches)),
			attribute.Int("activation.skills", len(resp.SkillIDs)),
			attribute.Bool("activation.truncated", resp.Truncated),
		)
		logger.G(ctx).WithFields(logrus.Fields{
			"skills":    resp.SkillIDs,
			"truncated": resp.Truncated,
			"omitted":   len(resp.Omitted),
			"dropped":   len(res.Dropped),
			"duration":  time.Since(start),
		}).Debug("activation finished")
		return nil
	}, attribute.String("request.id", r.id), attribute.Int64("registry.version", int64(r.reg.Version())))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Diagnose runs the same pipeline as Activate and returns every skill's
// score, zero scores included, along with what was excluded or dropped.
func (e *Engine) Diagnose(ctx context.Context, req Request) (*Diagnosis, error) {
	ctx, r, err := e.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	var diag *Diagnosis
	err = telemetry.WithSpan(ctx, "activation.diagnose", func(ctx context.Context) error {
		all, err := ScoreAll(ctx, r.reg, r.signal, e.weights)
		if err != nil {
			return errors.Wrap(err, "failed to score skills")
		}
		SortMatches(all)

		var matched []Match
		for _, m := range all {
			if m.Score > 0 || m.Explicit {
				matched = append(matched, m)
			}
		}
		res := e.resolver.Resolve(r.reg, matched, r.exclusions)
		comp := Compose(r.reg, res.IDs, r.budget)

		diag = &Diagnosis{
			RequestID:         r.id,
			RegistryVersion:   r.reg.Version(),
			Matches:           all,
			Excluded:          res.Excluded,
			Dropped:           res.Dropped,
			UnknownReferences: r.unknown,
			SkillIDs:          comp.Included,
		}
		if diag.SkillIDs == nil {
			diag.SkillIDs = []string{}
		}
		if diag.Matches == nil {
			diag.Matches = []Match{}
		}
		return nil
	}, attribute.String("request.id", r.id))
	if err != nil {
		return nil, err
	}
	return diag, nil
}

func diagnostics(matches []Match, included, unknown []string) []Diagnostic {
	byID := make(map[string]Match, len(matches))
	for _, m := range matches {
		byID[m.SkillID] = m
	}

	out := make([]Diagnostic, 0, len(included)+len(unknown))
	for _, id := range included {
		out = append(out, Diagnostic{SkillID: id, Reasons: byID[id].Reasons})
	}
	for _, ref := range unknown {
		out = append(out, Diagnostic{SkillID: ref, Reasons: []string{(&UnknownReferenceError{Ref: ref}).Error()}})
	}
	return out
}
