package sanitizer

import "strings"

// TrimAndNormalize collapses every run of whitespace, newlines included,
// into one space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}
