// Package enums holds the closed value sets stored in Postgres enum columns.
// Every type accepts exactly the lowercase wire form listed in its set.
package enums

import (
	"fmt"
	"slices"
)

type set[T ~string] struct {
	kind   string
	values []T
}

func newSet[T ~string](kind string, values ...T) set[T] {
	return set[T]{kind: kind, values: values}
}

func (s set[T]) contains(v T) bool {
	return slices.Contains(s.values, v)
}

func (s set[T]) parse(raw string) (T, error) {
	if v := T(raw); s.contains(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.kind, raw)
}

// Values returns a copy of the members in declaration order.
func (s set[T]) Values() []T {
	return slices.Clone(s.values)
}
