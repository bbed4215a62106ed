// Package flags has helpers for bit flag sets like permissions.
package flags

import (
	"golang.org/x/exp/constraints"
)

func Add[T constraints.Integer](f T, bits ...T) T {
	for _, bit := range bits {
		f |= bit
	}
	return f
}

func Remove[T constraints.Integer](f T, bits ...T) T {
	for _, bit := range bits {
		f &^= bit
	}
	return f
}

// Has reports whether all bits are set in f.
func Has[T constraints.Integer](f T, bits ...T) bool {
	for _, bit := range bits {
		if f&bit != bit {
			return false
		}
	}
	return true
}

// Misses reports whether any of the bits is not set in f.
func Misses[T constraints.Integer](f T, bits ...T) bool {
	return !Has(f, bits...)
}
