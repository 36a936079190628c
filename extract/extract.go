package extract

import (
	"iter"
	"strings"
)

// Tuple - One extracted row. Values are in the template's field order.
type Tuple struct {
	template *Template
	values   []string
}

// Get - Value of the named field, empty if the field is unknown or wasn't captured.
func (tuple Tuple) Get(field string) string {
	if tuple.template == nil {
		return ""
	}
	index, found := tuple.template.fieldIndex[field]
	if !found {
		return ""
	}
	return tuple.values[index]
}

// Values - Copy of all values, in field order.
func (tuple Tuple) Values() []string {
	return append([]string(nil), tuple.values...)
}

// Extract - Lazily yield one tuple per matching line of text, in document order.
// The text is rescanned every time the sequence is ranged over.
func Extract(template *Template, text string) iter.Seq[Tuple] {
	return func(yield func(Tuple) bool) {
		if template == nil {
			return
		}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			tuple, ok := template.match(line)
			if !ok {
				continue
			}
			if !yield(tuple) {
				return
			}
		}
	}
}

// First pattern to match wins.
func (template *Template) match(line string) (Tuple, bool) {
	for _, pattern := range template.patterns {
		submatches := pattern.FindStringSubmatch(line)
		if submatches == nil {
			continue
		}
		values := make([]string, len(template.Fields))
		for i, group := range pattern.SubexpNames() {
			if group == "" {
				continue
			}
			values[template.fieldIndex[group]] = strings.TrimSpace(submatches[i])
		}
		return Tuple{template: template, values: values}, true
	}
	return Tuple{}, false
}

// Column - Values of one field from every tuple.
func Column(tuples iter.Seq[Tuple], field string) []string {
	var values []string
	for tuple := range tuples {
		values = append(values, tuple.Get(field))
	}
	return values
}

// Join - Flatten tuples, joining fields with fieldSeparator and rows with rowSeparator.
func Join(tuples iter.Seq[Tuple], fieldSeparator string, rowSeparator string) string {
	var rows []string
	for tuple := range tuples {
		rows = append(rows, strings.Join(tuple.values, fieldSeparator))
	}
	return strings.Join(rows, rowSeparator)
}
