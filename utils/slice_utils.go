package utils

// SliceSelect provides a way of mapping a specific element from a slice's elements into a slice of its own.
func SliceSelect[T any, K any](x []T, f func(x T) K) []K {
	r := make([]K, len(x))
	for i := 0; i < len(x); i++ {
		r[i] = f(x[i])
	}
	return r
}

// SliceWhere provides a way of querying specific elements which fit some criteria into a new slice.
func SliceWhere[T any](x []T, f func(x T) bool) []T {
	r := make([]T, 0)
	for i := 0; i < len(x); i++ {
		if f(x[i]) {
			r = append(r, x[i])
		}
	}
	return r
}

// SliceCount counts the elements of a slice which fit some criteria.
func SliceCount[T any](x []T, f func(x T) bool) int {
	count := 0
	for i := 0; i < len(x); i++ {
		if f(x[i]) {
			count++
		}
	}
	return count
}
