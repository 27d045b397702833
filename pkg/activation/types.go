// Package activation decides which skills apply to a workspace signal and
// composes their bodies into a bounded context document.
//
// A request flows through three pure stages against one registry snapshot:
// the matcher scores every skill, the resolver applies exclusions and
// per-category conflicts, and the composer renders the survivors within the
// budget. The same snapshot and request always produce the same result.
package activation

import (
	"fmt"

	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Signal is the observable workspace state for one request.
type Signal struct {
	// ActiveFiles are workspace-relative paths, most recently touched first.
	ActiveFiles       []string `json:"activeFiles"`
	ManifestTokens    []string `json:"manifestTokens"`
	PromptText        string   `json:"promptText"`
	ExplicitSkillRefs []string `json:"explicitSkillRefs"`
}

// Request is an activation request.
type Request struct {
	ActiveFiles        []string `json:"activeFiles,omitempty" jsonschema:"description=Workspace-relative file paths ordered most recently touched first"`
	ManifestTokens     []string `json:"manifestTokens,omitempty" jsonschema:"description=Dependency identifiers extracted from project manifests"`
	PromptText         string   `json:"promptText,omitempty" jsonschema:"description=Free text of the user prompt; @id references and !@id exclusions are honored"`
	ExplicitSkillRefs  []string `json:"explicitSkillRefs,omitempty" jsonschema:"description=Skill ids or display names that must be activated"`
	ExplicitExclusions []string `json:"explicitExclusions,omitempty" jsonschema:"description=Skill ids or display names that must not be activated"`
	Budget             int      `json:"budget,omitempty" jsonschema:"minimum=0,description=Maximum document length in characters; 0 uses the configured default"`
}

// Signal returns the workspace signal carried by the request.
func (r Request) Signal() Signal {
	return Signal{
		ActiveFiles:       r.ActiveFiles,
		ManifestTokens:    r.ManifestTokens,
		PromptText:        r.PromptText,
		ExplicitSkillRefs: r.ExplicitSkillRefs,
	}
}

// Match is the score of one skill against a signal.
type Match struct {
	SkillID  string          `json:"skillId"`
	Category skills.Category `json:"category"`
	Score    float64         `json:"score"`
	Explicit bool            `json:"explicit,omitempty"`
	Reasons  []string        `json:"reasons"`
	Index    int             `json:"index"`
}

// Diagnostic explains why a skill is part of a response.
type Diagnostic struct {
	SkillID string   `json:"skillId"`
	Reasons []string `json:"reasons"`
}

// Response is the result of an activation.
type Response struct {
	RequestID         string       `json:"requestId"`
	RegistryVersion   uint64       `json:"registryVersion"`
	SkillIDs          []string     `json:"skillIds"`
	Document          string       `json:"document"`
	Truncated         bool         `json:"truncated"`
	Omitted           []string     `json:"omitted,omitempty"`
	Diagnostics       []Diagnostic `json:"diagnostics"`
	UnknownReferences []string     `json:"unknownReferences,omitempty"`
}

// Dropped records a skill removed by a category conflict.
type Dropped struct {
	SkillID    string          `json:"skillId"`
	KeptID     string          `json:"keptId"`
	Category   skills.Category `json:"category"`
	Extensions []string        `json:"extensions"`
}

// Diagnosis is the full introspection of a request, including the skills
// that scored zero.
type Diagnosis struct {
	RequestID         string    `json:"requestId"`
	RegistryVersion   uint64    `json:"registryVersion"`
	Matches           []Match   `json:"matches"`
	Excluded          []string  `json:"excluded,omitempty"`
	Dropped           []Dropped `json:"dropped,omitempty"`
	UnknownReferences []string  `json:"unknownReferences,omitempty"`
	SkillIDs          []string  `json:"skillIds"`
}

// UnknownReferenceError reports a skill reference that names no registered
// skill. It is reported, never returned from Activate.
type UnknownReferenceError struct {
	Ref string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown skill reference %q", e.Ref)
}
