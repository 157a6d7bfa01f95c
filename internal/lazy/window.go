package lazy

import (
	"iter"
	"slices"

	"github.com/inoxlang/lazyview/internal/memds"
)

// A WindowObserver is notified of the two kinds of window mutations. The slice passed to ItemsAppended is shared
// between observers and should not be modified.
type WindowObserver[T any] interface {
	ItemsAppended(items []T)
	Cleared()
}

// ObserverFuncs implements WindowObserver with optional functions.
type ObserverFuncs[T any] struct {
	OnItemsAppended func(items []T)
	OnCleared       func()
}

func (f ObserverFuncs[T]) ItemsAppended(items []T) {
	if f.OnItemsAppended != nil {
		f.OnItemsAppended(items)
	}
}

func (f ObserverFuncs[T]) Cleared() {
	if f.OnCleared != nil {
		f.OnCleared()
	}
}

// A Window is the materialized, display-ready prefix of an effective sequence.
// Only the Loader owning the window mutates it: items are appended at the end or the window is cleared.
type Window[T any] struct {
	items *memds.ArrayList[T]

	observers      []windowSubscription[T]
	nextObserverId int
}

type windowSubscription[T any] struct {
	id       int
	observer WindowObserver[T]
}

func newWindow[T any]() *Window[T] {
	return &Window[T]{
		items: memds.NewArrayList[T](),
	}
}

// Subscribe registers an observer, observers are notified in subscription order.
// The returned function removes the subscription.
func (w *Window[T]) Subscribe(observer WindowObserver[T]) (unsubscribe func()) {
	id := w.nextObserverId
	w.nextObserverId++
	w.observers = append(w.observers, windowSubscription[T]{id: id, observer: observer})

	return func() {
		w.observers = slices.DeleteFunc(w.observers, func(s windowSubscription[T]) bool {
			return s.id == id
		})
	}
}

func (w *Window[T]) Len() int {
	return w.items.Size()
}

// At returns the item at index i, the second result is false if i is out of bounds.
func (w *Window[T]) At(i int) (T, bool) {
	return w.items.At(i)
}

// Values returns a copy of the items.
func (w *Window[T]) Values() []T {
	return w.items.Values()
}

// Range returns a copy of the items in [start, end), the bounds are clamped.
func (w *Window[T]) Range(start, end int) []T {
	return w.items.Range(start, end)
}

func (w *Window[T]) All() iter.Seq2[int, T] {
	return w.items.All()
}

func (w *Window[T]) append(items []T) {
	if len(items) == 0 {
		return
	}
	w.items.AppendAll(items...)

	for _, s := range slices.Clone(w.observers) {
		s.observer.ItemsAppended(items)
	}
}

func (w *Window[T]) clear() {
	w.items.Clear()

	for _, s := range slices.Clone(w.observers) {
		s.observer.Cleared()
	}
}
