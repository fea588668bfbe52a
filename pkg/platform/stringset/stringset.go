// Package stringset treats string slices as unordered sets with unique members.
// All functions return new slices and never modify their input, so results can
// be shared between draft snapshots.
package stringset

import (
	"slices"
	"strings"
)

// Normalize trims members, drops empty ones and removes duplicates while
// keeping first-seen order.
//
// Example:
//
//	Normalize([]string{"  JCI ", "NABH", "JCI", "", "  "})
//	// Returns: []string{"JCI", "NABH"}
func Normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// With returns values plus v. When v is already a member the input is
// returned unchanged.
func With(values []string, v string) []string {
	if slices.Contains(values, v) {
		return values
	}
	out := make([]string, 0, len(values)+1)
	out = append(out, values...)
	return append(out, v)
}

// Without returns values minus v. When v is absent the input is returned unchanged.
func Without(values []string, v string) []string {
	if !slices.Contains(values, v) {
		return values
	}
	out := make([]string, 0, len(values)-1)
	for _, m := range values {
		if m != v {
			out = append(out, m)
		}
	}
	return out
}

// Equal reports whether a and b hold the same members, ignoring order.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
