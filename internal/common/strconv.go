package common

import "strconv"

// AtoiDefault parses an integer query value, returning def when the value is
// empty or malformed.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
