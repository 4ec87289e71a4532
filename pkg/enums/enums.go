// Package enums holds the closed string sets stored in the database and
// carried on events.
package enums

import (
	"fmt"
	"slices"
)

// set is an ordered list of allowed values for a string enum.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

func (s set[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
