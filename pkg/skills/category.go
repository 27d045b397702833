package skills

import (
	"strings"

	"github.com/pkg/errors"
)

// Category groups skills for conflict resolution.
type Category string

// Categories in precedence order.
const (
	CategoryCore        Category = "core"
	CategoryData        Category = "data"
	CategoryService     Category = "service"
	CategoryUI          Category = "ui"
	CategoryIntegration Category = "integration"
	CategorySecurity    Category = "security"
	CategoryDeployment  Category = "deployment"
	CategoryTesting     Category = "testing"
	CategoryGeneral     Category = "general"
)

var categoryOrder = []Category{
	CategoryCore,
	CategoryData,
	CategoryService,
	CategoryUI,
	CategoryIntegration,
	CategorySecurity,
	CategoryDeployment,
	CategoryTesting,
	CategoryGeneral,
}

// Categories returns every known category in precedence order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// Rank is the position of the category in precedence order; lower ranks first.
func (c Category) Rank() int {
	for i, known := range categoryOrder {
		if c == known {
			return i
		}
	}
	return len(categoryOrder)
}

// ParseCategory normalizes a raw category name. An empty name is general.
func ParseCategory(raw string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return CategoryGeneral, nil
	}
	for _, c := range categoryOrder {
		if string(c) == name {
			return c, nil
		}
	}
	return "", errors.Errorf("unknown category %q", raw)
}
