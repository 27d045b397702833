package activation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jingkaihe/skillkit/pkg/skills"
)

const sectionSeparator = "\n\n"

// Composition is a rendered context document.
type Composition struct {
	Document  string
	Truncated bool
	// Included are the skills present in Document, in order.
	Included []string
	// Omitted are the skills left out because the budget ran out.
	Omitted []string
}

// Section renders a skill as a labeled document section.
func Section(s *skills.Skill) string {
	return fmt.Sprintf("## %s\n<!-- skill: %s -->\n\n%s", s.DisplayName, s.ID, s.Body)
}

// Compose renders the skills in order into a document of at most budget
// characters. Whole sections are appended while they fit; composition stops
// at the first one that does not. Only a first section larger than the
// whole budget is cut, to exactly budget characters, and flagged Truncated.
// Unknown ids are skipped.
func Compose(reg *skills.Registry, ids []string, budget int) Composition {
	var c Composition
	var doc strings.Builder
	used := 0

	for i, id := range ids {
		skill, ok := reg.Lookup(id)
		if !ok {
			continue
		}

		section := Section(skill)
		size := utf8.RuneCountInString(section)
		sep := 0
		if len(c.Included) > 0 {
			sep = utf8.RuneCountInString(sectionSeparator)
		}

		if used+sep+size <= budget {
			if sep > 0 {
				doc.WriteString(sectionSeparator)
			}
			doc.WriteString(section)
			used += sep + size
			c.Included = append(c.Included, skill.ID)
			continue
		}

		rest := ids[i:]
		if len(c.Included) == 0 {
			c.Truncated = true
			if budget > 0 {
				doc.WriteString(truncateRunes(section, budget))
				c.Included = append(c.Included, skill.ID)
				rest = ids[i+1:]
			}
		}
		for _, omitted := range rest {
			if _, ok := reg.Lookup(omitted); ok {
				c.Omitted = append(c.Omitted, omitted)
			}
		}
		break
	}

	c.Document = doc.String()
	return c
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
