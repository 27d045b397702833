// Package skills loads skill descriptors into validated, immutable registry
// snapshots. A skill is a unit of markdown guidance tagged with file globs,
// keywords and dependency hints; the activation engine decides which skills
// apply to a workspace and composes their bodies.
//
// Descriptors come from a Source (a YAML manifest, directories of SKILL.md
// files, or memory). Each raw record is validated individually: a malformed
// record is skipped and reported, it never fails the whole load.
package skills

import (
	"github.com/gobwas/glob"
)

// Spec is the loosely-typed descriptor as read from a source, before validation.
type Spec struct {
	ID           string   `yaml:"id" json:"id" mapstructure:"id"`
	DisplayName  string   `yaml:"name" json:"name" mapstructure:"name"`
	Description  string   `yaml:"description" json:"description" mapstructure:"description"`
	Keywords     []string `yaml:"keywords" json:"keywords" mapstructure:"keywords"`
	FilePatterns []string `yaml:"file_patterns" json:"file_patterns" mapstructure:"file_patterns"`
	Category     string   `yaml:"category" json:"category" mapstructure:"category"`
	Dependencies []string `yaml:"dependencies" json:"dependencies" mapstructure:"dependencies"`
	Body         string   `yaml:"body" json:"body" mapstructure:"body"`
}

// Record is a single entry produced by a Source. Err is set when the source
// could not turn the entry into a Spec; such records are reported and skipped.
type Record struct {
	Spec   Spec
	Origin string
	Err    error
}

// Skill is a validated descriptor. Skills are shared between concurrent
// requests and must be treated as read-only.
type Skill struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	FilePatterns []string `json:"filePatterns"`
	Category     Category `json:"category"`
	Dependencies []string `json:"dependencies,omitempty"`
	Body         string   `json:"body"`
	// EstimatedSize is the length of Body in runes.
	EstimatedSize int `json:"estimatedSize"`
	// Origin is the file the skill was read from, or "index N" for in-memory specs.
	Origin string `json:"origin"`
	// Index is the registration order inside the snapshot.
	Index int `json:"index"`

	dependencyGlobs []glob.Glob
	extensions      []string
}

// MatchesDependency reports whether a manifest token satisfies one of the
// skill's dependency hints.
func (s *Skill) MatchesDependency(token string) bool {
	for _, g := range s.dependencyGlobs {
		if g.Match(token) {
			return true
		}
	}
	return false
}

// TargetExtensions returns the file extensions claimed by the skill's file
// patterns, lower-cased and with a leading dot.
func (s *Skill) TargetExtensions() []string {
	return s.extensions
}
