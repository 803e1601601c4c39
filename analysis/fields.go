package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// fieldLine matches `FIELD_NAME: value` with optional bullet or markdown
	// decoration in front. Field names are upper snake case.
	fieldLine = regexp.MustCompile(`^[\s\-\*#>]*([A-Z][A-Z0-9_]*)\s*[:：]\s*(.*)$`)

	firstIntPattern = regexp.MustCompile(`-?\d+`)
)

// ParseFields scans a raw reply for field lines and returns the raw value per
// field name. The first occurrence of a field wins; later duplicates are
// ignored.
func ParseFields(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		m := fieldLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = stripBrackets(strings.TrimSpace(m[2]))
	}
	return fields
}

// firstInt extracts the first integer in a value, e.g. "82/100" yields 82.
func firstInt(value string) (int, bool) {
	m := firstIntPattern.FindString(value)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitList breaks a value on commas and newlines and strips per-item
// decoration. Empty items are dropped.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	}) {
		item := cleanItem(part)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// cleanItem trims whitespace, leading dashes and bullets, and quote pairs
// from a single list item.
func cleanItem(item string) string {
	item = strings.TrimSpace(item)
	item = strings.TrimLeft(item, "-*• \t")
	item = strings.TrimSpace(item)
	if len(item) >= 2 {
		if (item[0] == '"' && item[len(item)-1] == '"') ||
			(item[0] == '\'' && item[len(item)-1] == '\'') {
			item = item[1 : len(item)-1]
		}
	}
	return strings.TrimSpace(item)
}

// stripBrackets removes one matching pair of surrounding brackets.
func stripBrackets(value string) string {
	if len(value) >= 2 {
		if (value[0] == '[' && value[len(value)-1] == ']') ||
			(value[0] == '(' && value[len(value)-1] == ')') {
			return strings.TrimSpace(value[1 : len(value)-1])
		}
	}
	return value
}
