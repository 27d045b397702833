package activation

import (
	"regexp"
	"strings"
)

// refPattern matches "@id" and "!@id" tokens at the start of the prompt or
// after whitespace, a separator or an opening bracket, so e-mail addresses
// are ignored.
var refPattern = regexp.MustCompile(`(?:^|[\s,;(\[{"'])(!?)@([A-Za-z0-9][A-Za-z0-9_./:-]*)`)

// ParseReferences scans a prompt for explicit skill references. "@cap-cds"
// asks for a skill, "!@cap-cds" excludes it. Trailing punctuation is not part
// of the reference. Results keep prompt order without duplicates.
func ParseReferences(prompt string) (refs, exclusions []string) {
	seenRef := make(map[string]struct{})
	seenExcl := make(map[string]struct{})

	for _, m := range refPattern.FindAllStringSubmatch(prompt, -1) {
		ref := strings.TrimRight(m[2], ".:/-")
		if ref == "" {
			continue
		}
		key := strings.ToLower(ref)
		if m[1] == "!" {
			if _, ok := seenExcl[key]; !ok {
				seenExcl[key] = struct{}{}
				exclusions = append(exclusions, ref)
			}
			continue
		}
		if _, ok := seenRef[key]; !ok {
			seenRef[key] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs, exclusions
}

// mergeRefs appends extra references to base, skipping case-insensitive duplicates.
func mergeRefs(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, ref := range list {
			ref = strings.TrimSpace(ref)
			if ref == "" {
				continue
			}
			key := strings.ToLower(ref)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}
