package parker

import "strings"

// NormalizePlate canonicalises a license plate for storage and lookup:
// spaces and dashes removed, all characters uppercased. Kiosks, ANPR feeds,
// and manual entry all funnel through this so the same vehicle always maps
// to the same row.
func NormalizePlate(value string) string {
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "-", "")
	return strings.ToUpper(value)
}
