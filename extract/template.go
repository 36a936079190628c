// Package extract turns semi-structured command output into rows of named fields.
//
// A template names an ordered list of fields and one or more line patterns (RE2 with named
// capture groups). Every input line matching one of the patterns becomes one tuple.
package extract

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names of the templates shipped with the binary.
const (
	InterfaceStatus = "interface-status"
	MACTable        = "mac-table"
	ARPTable        = "arp-table"
)

//go:embed templates/*.yaml
var templateFS embed.FS

var builtinTemplates = mustLoadBuiltin()

// Template - A named extraction schema. Read-only once parsed.
type Template struct {
	Name       string
	Fields     []string
	fieldIndex map[string]int
	patterns   []*regexp.Regexp
}

type templateFile struct {
	Name     string   `yaml:"name"`
	Fields   []string `yaml:"fields"`
	Patterns []string `yaml:"patterns"`
}

// Parse - Parse a YAML template definition.
func Parse(data []byte) (*Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("template name missing")
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("template %v: no fields", file.Name)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("template %v: no patterns", file.Name)
	}

	template := &Template{
		Name:       file.Name,
		Fields:     file.Fields,
		fieldIndex: make(map[string]int, len(file.Fields)),
	}
	for i, field := range file.Fields {
		if _, found := template.fieldIndex[field]; found {
			return nil, fmt.Errorf("template %v: duplicate field %q", file.Name, field)
		}
		template.fieldIndex[field] = i
	}
	for _, rawPattern := range file.Patterns {
		pattern, err := regexp.Compile(rawPattern)
		if err != nil {
			return nil, fmt.Errorf("template %v: %w", file.Name, err)
		}
		captures := 0
		for _, group := range pattern.SubexpNames() {
			if group == "" {
				continue
			}
			if _, found := template.fieldIndex[group]; !found {
				return nil, fmt.Errorf("template %v: group %q is not a declared field", file.Name, group)
			}
			captures++
		}
		if captures == 0 {
			return nil, fmt.Errorf("template %v: pattern has no named groups: %v", file.Name, rawPattern)
		}
		template.patterns = append(template.patterns, pattern)
	}

	return template, nil
}

func mustLoadBuiltin() map[string]*Template {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		panic(err)
	}
	templates := make(map[string]*Template, len(entries))
	for _, entry := range entries {
		data, err := templateFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			panic(err)
		}
		template, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("builtin template %v: %v", entry.Name(), err))
		}
		templates[template.Name] = template
	}
	return templates
}

// Lookup - Get a shipped template by name.
func Lookup(name string) (*Template, error) {
	template, found := builtinTemplates[name]
	if !found {
		return nil, fmt.Errorf("unknown template %q, known: %v", name, strings.Join(names(), ", "))
	}
	return template, nil
}

// MustLookup - Like Lookup, panics for unknown names.
func MustLookup(name string) *Template {
	template, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return template
}

// Shipped template names, sorted.
func names() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
