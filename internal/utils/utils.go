// Package utils contains general helpers shared by the rmtree commands.
package utils

import (
	"os"
	"strings"
)

// DeduplicateIntegers removes duplicate values while preserving order.
// The first occurrence of each value is kept.
func DeduplicateIntegers(values []int) []int {
	encountered := make(map[int]struct{}, len(values))
	result := make([]int, 0, len(values))
	for _, value := range values {
		if _, exists := encountered[value]; exists {
			continue
		}
		encountered[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return EmptyString
}

// ResolveSecret returns value unless it is empty, in which case the named environment variable is used.
func ResolveSecret(value string, environmentVariable string) string {
	if value != "" {
		return value
	}
	if environmentVariable == "" {
		return EmptyString
	}
	return os.Getenv(environmentVariable)
}
