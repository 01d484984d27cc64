// Package mathx holds small generic numeric helpers used when normalising
// configuration and task timings.
package mathx

import "golang.org/x/exp/constraints"

// Clamp returns v limited to the closed range [lo, hi].
// Bounds given in the wrong order are swapped first.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	lo, hi = order(lo, hi)
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// Between reports whether v lies in the closed range spanned by a and b.
func Between[T constraints.Ordered](v, a, b T) bool {
	lo, hi := order(a, b)
	return lo <= v && v <= hi
}

func order[T constraints.Ordered](a, b T) (T, T) {
	if b < a {
		return b, a
	}
	return a, b
}
