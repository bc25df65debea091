package reconcile

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims a name or value and folds its case so that two strings
// that differ only in surrounding whitespace or letter case compare equal.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// SameName reports whether two field or column names refer to the same thing.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// SameValue compares two cell values as trimmed text. Case is significant.
func SameValue(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// Disambiguate returns the header names trimmed, with repeated names suffixed
// " (2)", " (3)" and so on in order of appearance. Repeats are counted
// case-insensitively. Blank names stay blank and are not counted.
func Disambiguate(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	taken := make(map[string]bool, len(names))

	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		key := Normalize(name)
		seen[key]++
		candidate := name
		if n := seen[key]; n > 1 {
			candidate = fmt.Sprintf("%s (%d)", name, n)
		}

		// A literal "Make (2)" header later in the row must not collide with a
		// generated one.
		for taken[Normalize(candidate)] {
			seen[key]++
			candidate = fmt.Sprintf("%s (%d)", name, seen[key])
		}
		taken[Normalize(candidate)] = true
		out[i] = candidate
	}

	return out
}
