package memds

import (
	"iter"
	"slices"
)

// thread unsafe append-only list, the only supported mutations are appending at the end and clearing.
type ArrayList[T any] struct {
	elements []T
}

func NewArrayList[T any]() *ArrayList[T] {
	return &ArrayList[T]{}
}

// Append adds a value to the end of the list.
func (l *ArrayList[T]) Append(value T) {
	l.elements = append(l.elements, value)
}

// AppendAll adds zero or more values to the end of the list.
func (l *ArrayList[T]) AppendAll(values ...T) {
	l.elements = append(l.elements, values...)
}

// At returns the element at index i, the second result is false if i is out of bounds.
func (l *ArrayList[T]) At(i int) (value T, ok bool) {
	if i < 0 || i >= len(l.elements) {
		return
	}
	return l.elements[i], true
}

// Size returns the number of elements within the list.
func (l *ArrayList[T]) Size() int {
	return len(l.elements)
}

// Clear removes all elements from the list, the backing array is kept but its slots are zeroed
// so that removed elements can be collected.
func (l *ArrayList[T]) Clear() {
	clear(l.elements)
	l.elements = l.elements[:0]
}

// Values returns a copy of all elements in the list (insertion order).
func (l *ArrayList[T]) Values() []T {
	return slices.Clone(l.elements)
}

// Range returns a copy of the elements in [start, end), the bounds are clamped.
func (l *ArrayList[T]) Range(start, end int) []T {
	start = max(start, 0)
	end = min(end, len(l.elements))
	if start >= end {
		return nil
	}
	return slices.Clone(l.elements[start:end])
}

// All returns an iterator over the (index, element) pairs present when iteration starts.
func (l *ArrayList[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		elements := l.elements
		for i, e := range elements {
			if !yield(i, e) {
				return
			}
		}
	}
}
