package skills

import (
	"strings"
)

// PatternExtensions returns the file extensions a set of glob patterns
// target. Only the final path segment is considered; brace alternatives are
// expanded and segments whose extension contains a wildcard are ignored.
//
//	"**/*.cds"          -> .cds
//	"**/manifest.json"  -> .json
//	"src/**/*.{js,ts}"  -> .js .ts
//	"**/*"              -> (none)
func PatternExtensions(patterns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range patterns {
		segment := pattern
		if i := strings.LastIndex(pattern, "/"); i >= 0 && !insideBraces(pattern, i) {
			segment = pattern[i+1:]
		}
		for _, variant := range expandBraces(segment) {
			ext := extensionOf(variant)
			if ext == "" {
				continue
			}
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			out = append(out, ext)
		}
	}
	return out
}

// SharedExtensions returns the extensions claimed by both a and b that are not exempt.
func SharedExtensions(a, b *Skill, exempt map[string]struct{}) []string {
	var shared []string
	for _, ea := range a.extensions {
		if _, skip := exempt[ea]; skip {
			continue
		}
		for _, eb := range b.extensions {
			if ea == eb {
				shared = append(shared, ea)
				break
			}
		}
	}
	return shared
}

func extensionOf(segment string) string {
	dot := strings.LastIndex(segment, ".")
	if dot < 0 || dot == len(segment)-1 {
		return ""
	}
	ext := segment[dot:]
	if strings.ContainsAny(ext, "*?[]{}\\") {
		return ""
	}
	return strings.ToLower(ext)
}

func insideBraces(s string, pos int) bool {
	depth := 0
	for i := 0; i < pos; i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

// expandBraces expands "{a,b}" alternatives, nested groups included.
func expandBraces(s string) []string {
	open := strings.Index(s, "{")
	if open < 0 {
		return []string{s}
	}

	depth := 0
	closing := -1
	var splits []int
	for i := open; i < len(s) && closing < 0; i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				closing = i
			}
		case ',':
			if depth == 1 {
				splits = append(splits, i)
			}
		}
	}
	if closing < 0 {
		return []string{s}
	}

	prefix, suffix := s[:open], s[closing+1:]
	var alternatives []string
	start := open + 1
	for _, sp := range splits {
		alternatives = append(alternatives, s[start:sp])
		start = sp + 1
	}
	alternatives = append(alternatives, s[start:closing])

	var out []string
	for _, alt := range alternatives {
		out = append(out, expandBraces(prefix+alt+suffix)...)
	}
	return out
}
