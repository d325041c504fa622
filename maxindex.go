package maxlines

import "cmp"

// MaxIndex returns the index of the greatest element in values.
// When several elements share the maximum, the lowest index wins.
// An empty slice returns ErrEmptySequence.
func MaxIndex[T cmp.Ordered](values []T) (int, error) {
	if len(values) == 0 {
		return -1, ErrEmptySequence
	}

	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best, nil
}
