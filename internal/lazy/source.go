package lazy

import (
	"iter"
)

// A Source is a repeatable sequence of items: each iteration starts over from the first item.
// The error slot reports read failures of I/O-backed sources, an iteration ends after yielding an error.
// A nil Source is an empty sequence.
type Source[T any] iter.Seq2[T, error]

// A Predicate reports whether an item belongs to the effective sequence, a nil Predicate keeps every item.
type Predicate[T any] func(item T) (bool, error)

// FromSlice returns a Source iterating over the elements of s, s is not copied.
func FromSlice[T any](s []T) Source[T] {
	return func(yield func(T, error) bool) {
		for _, e := range s {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// FromSeq returns a Source iterating over seq, seq should be repeatable.
func FromSeq[T any](seq iter.Seq[T]) Source[T] {
	if seq == nil {
		return nil
	}
	return func(yield func(T, error) bool) {
		for e := range seq {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Match turns an infallible test function into a Predicate.
func Match[T any](test func(item T) bool) Predicate[T] {
	if test == nil {
		return nil
	}
	return func(item T) (bool, error) {
		return test(item), nil
	}
}

// Filter returns the effective sequence of source: the items for which predicate holds, in their original order.
// source itself is returned if predicate is nil. The filtered sequence is lazy: it only pulls from source
// when it is iterated and never looks ahead, so unbounded sources are supported.
// A source error or a predicate error is yielded unmodified and ends the iteration.
func Filter[T any](source Source[T], predicate Predicate[T]) Source[T] {
	if predicate == nil || source == nil {
		return source
	}

	return func(yield func(T, error) bool) {
		var zero T

		for item, err := range source {
			if err != nil {
				yield(zero, err)
				return
			}

			keep, err := predicate(item)
			if err != nil {
				yield(zero, err)
				return
			}

			if keep && !yield(item, nil) {
				return
			}
		}
	}
}
