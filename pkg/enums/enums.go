// Package enums holds the string-backed vocabularies stored in Postgres and
// exchanged over the API. Every type has IsValid, and most have a Parse func
// that rejects unknown values.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](kind, raw string, set []T) (T, error) {
	if v := T(raw); known(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
