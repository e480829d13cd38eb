// Package cmp provides comparators used mainly in tests.
package cmp

// BiPredicator tells whether a and b are equivalent.
type BiPredicator[V any, U any] func(a V, b U) bool

// a == b as BiPredicator
func EqEq[T comparable](a, b T) bool {
	return a == b
}

// *a == *b as BiPredicator. Two nils are equal.
func PEqEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// PEqualWith compares pointees with pred. Two nils are equal.
func PEqualWith[T any](a, b *T, pred func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return pred(*a, *b)
}

func SliceEq[T comparable](a []T, b []T) bool {
	return SliceEqWith(a, b, EqEq[T])
}

func SliceEqWith[T any, U any](a []T, b []U, pred func(a T, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// SliceContentEq checks that a and b have same elements, ignoring order.
//
// Multiplicity matters: {a, b, c, c} and {a, b, c} are not equal.
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, EqEq[T])
}

// SliceContentEqWith is SliceContentEq with equivalence relation.
func SliceContentEqWith[S, T any](a []S, b []T, equiv BiPredicator[S, T]) bool {
	if len(a) != len(b) {
		return false
	}

	used := make([]bool, len(b))
NEXT_A:
	for _, va := range a {
		for i, vb := range b {
			if used[i] || !equiv(va, vb) {
				continue
			}
			used[i] = true
			continue NEXT_A
		}
		return false
	}
	return true
}

// check a == b
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapEqWith(a, b, EqEq[V])
}

// check a == b, in context of comparator
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, comparator BiPredicator[V, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for ka, va := range a {
		vb, ok := b[ka]
		if !ok || !comparator(va, vb) {
			return false
		}
	}
	return true
}
