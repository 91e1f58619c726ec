// Package category lists the project configuration areas that can be
// previewed and where the management API serves each of them.
package category

import (
	"fmt"
	"strings"
)

type Category struct {
	// Name is the category name reported in preview results.
	Name string
	// Flag is the query parameter that selects the category.
	Flag string
	// Label names the category in fetch error messages.
	Label string

	pathTemplate string
}

// Path returns the management API path for the given project.
func (c Category) Path(projectRef string) string {
	return fmt.Sprintf(c.pathTemplate, projectRef)
}

var registry = []Category{
	{Name: "Auth", Flag: "auth", Label: "auth", pathTemplate: "/projects/%s/config/auth"},
	{Name: "Postgrest", Flag: "postgrest", Label: "postgrest", pathTemplate: "/projects/%s/postgrest"},
	{Name: "EdgeFunctions", Flag: "edge_functions", Label: "functions", pathTemplate: "/projects/%s/functions"},
	{Name: "Secrets", Flag: "secrets", Label: "secrets", pathTemplate: "/projects/%s/secrets"},
	{Name: "Postgres", Flag: "postgres", Label: "postgres", pathTemplate: "/projects/%s/config/database/postgres"},
}

// All returns every category in preview order.
func All() []Category {
	out := make([]Category, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a category by name or query flag, ignoring case.
func Lookup(name string) (Category, bool) {
	for _, c := range registry {
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.Flag, name) {
			return c, true
		}
	}
	return Category{}, false
}

// Select returns the categories whose flag is set, in preview order.
func Select(flags map[string]bool) []Category {
	var selected []Category
	for _, c := range registry {
		if flags[c.Flag] {
			selected = append(selected, c)
		}
	}
	return selected
}

// Names returns the names of the given categories.
func Names(categories []Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// Flags returns the query flags of every category.
func Flags() []string {
	flags := make([]string, len(registry))
	for i, c := range registry {
		flags[i] = c.Flag
	}
	return flags
}
