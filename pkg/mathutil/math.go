// Package mathutil provides small numeric helpers shared across domains.
package mathutil

import "cmp"

// Clamp confines value to the range [lo, hi].
func Clamp[T cmp.Ordered](value, lo, hi T) T {
	return min(max(value, lo), hi)
}

// ClampLimit validates a pagination limit, applying default and max constraints.
// If limit <= 0, returns defaultVal. If limit > maxVal, returns maxVal.
func ClampLimit(limit, defaultVal, maxVal int) int {
	if limit <= 0 {
		return defaultVal
	}
	return Clamp(limit, 1, maxVal)
}
