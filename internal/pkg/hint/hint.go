// Package hint builds the progressive hints shown while a learner tries to
// recall a concept name.
package hint

import "strings"

const (
	// MaxLevel reveals the whole target.
	MaxLevel = 4
)

// Clamp bounds a requested level to [0, MaxLevel].
func Clamp(level int) int {
	switch {
	case level < 0:
		return 0
	case level > MaxLevel:
		return MaxLevel
	}
	return level
}

// For returns the hint text for target at the given level:
//
//	1: first letter of each word
//	2: first and last letter of each word
//	3: every other word, starting with the first
//	4: the full target
//
// Levels above 4 behave as 4; level 0 (no hint) returns an empty string.
func For(target string, level int) string {
	level = Clamp(level)
	if level == 0 {
		return ""
	}
	if level == MaxLevel {
		return target
	}

	words := strings.Fields(target)
	out := make([]string, len(words))
	for i, w := range words {
		r := []rune(w)
		switch level {
		case 1:
			out[i] = string(r[0]) + strings.Repeat("_", len(r)-1)
		case 2:
			if len(r) <= 1 {
				out[i] = w
				continue
			}
			out[i] = string(r[0]) + strings.Repeat("_", len(r)-2) + string(r[len(r)-1])
		case 3:
			if i%2 == 0 {
				out[i] = w
				continue
			}
			out[i] = strings.Repeat("_", len(r))
		}
	}
	return strings.Join(out, " ")
}
