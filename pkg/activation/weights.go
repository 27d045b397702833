package activation

import (
	"github.com/pkg/errors"
)

// Weights are the scoring constants of the matcher.
//
// A file pattern hit on the most recent active file is worth Pattern. Each
// older file position reduces the factor by DecayStep until it reaches
// DecayFloor. A keyword found in the prompt is worth Keyword, a manifest
// token satisfying a dependency hint is worth Dependency. Explicitly
// referenced skills score Explicit and skip the other rules.
type Weights struct {
	Pattern    float64 `json:"pattern" mapstructure:"pattern"`
	Keyword    float64 `json:"keyword" mapstructure:"keyword"`
	Dependency float64 `json:"dependency" mapstructure:"dependency"`
	DecayStep  float64 `json:"decayStep" mapstructure:"decay_step"`
	DecayFloor float64 `json:"decayFloor" mapstructure:"decay_floor"`
	Explicit   float64 `json:"explicit" mapstructure:"explicit"`
}

// DefaultWeights returns the default scoring constants.
func DefaultWeights() Weights {
	return Weights{
		Pattern:    10,
		Keyword:    4,
		Dependency: 6,
		DecayStep:  0.25,
		DecayFloor: 0.25,
		Explicit:   1e9,
	}
}

// Validate checks that the weights keep explicit references on top and
// file identity above prompt phrasing.
func (w Weights) Validate() error {
	switch {
	case w.Pattern <= 0:
		return errors.New("pattern weight must be positive")
	case w.Keyword < 0, w.Dependency < 0:
		return errors.New("keyword and dependency weights must not be negative")
	case w.Keyword >= w.Pattern:
		return errors.Errorf("keyword weight %g must be smaller than pattern weight %g", w.Keyword, w.Pattern)
	case w.DecayStep < 0:
		return errors.New("decay step must not be negative")
	case w.DecayFloor < 0 || w.DecayFloor > 1:
		return errors.Errorf("decay floor %g must be within [0, 1]", w.DecayFloor)
	case w.Explicit <= 0:
		return errors.New("explicit score must be positive")
	}
	return nil
}

// Recency is the factor applied to a pattern hit on the file at position i
// of the active files.
func (w Weights) Recency(position int) float64 {
	factor := 1 - float64(position)*w.DecayStep
	if factor < w.DecayFloor {
		return w.DecayFloor
	}
	return factor
}
