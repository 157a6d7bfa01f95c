package lazy

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/inoxlang/lazyview/internal/memds"
	"github.com/inoxlang/lazyview/internal/utils"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intRange(start, end int) []int {
	var ints []int
	for i := start; i < end; i++ {
		ints = append(ints, i)
	}
	return ints
}

func isEven(i int) bool {
	return i%2 == 0
}

// counter is an unbounded source.
func counter() Source[int] {
	return func(yield func(int, error) bool) {
		for i := 0; ; i++ {
			if !yield(i, nil) {
				return
			}
		}
	}
}

// recordingObserver records the window notifications.
type recordingObserver struct {
	events []string
	items  []int
}

func (o *recordingObserver) ItemsAppended(items []int) {
	o.events = append(o.events, "appended")
	o.items = append(o.items, items...)
}

func (o *recordingObserver) Cleared() {
	o.events = append(o.events, "cleared")
	o.items = nil
}

func TestLoader(t *testing.T) {

	t.Run("new loader", func(t *testing.T) {
		loader := NewLoader[int](DefaultConfig())

		assert.Equal(t, Empty, loader.State())
		assert.Zero(t, loader.Window().Len())
		assert.Equal(t, ulid.ULID{}, loader.Generation())

		n, err := loader.LoadMore(10)
		assert.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, Empty, loader.State())
	})

	t.Run("attach then load a page", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 20, PageSize: 10})

		require.NoError(t, loader.Attach(FromSlice(intRange(0, 100))))
		assert.Equal(t, intRange(0, 20), loader.Window().Values())
		assert.Equal(t, Idle, loader.State())

		n, err := loader.LoadPage()
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, intRange(0, 30), loader.Window().Values())
		assert.Equal(t, Idle, loader.State())
	})

	t.Run("filter applied after attach", func(t *testing.T) {
		loader := NewLoader[string](DefaultConfig())

		require.NoError(t, loader.Attach(FromSlice([]string{"apple", "banana", "cherry"})))
		require.NoError(t, loader.SetFilter(Match(func(s string) bool {
			return strings.Contains(s, "an")
		})))

		assert.Equal(t, []string{"banana"}, loader.Window().Values())
		assert.Equal(t, Exhausted, loader.State())
	})

	t.Run("source shorter than the initial batch", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 20, PageSize: 1})

		require.NoError(t, loader.Attach(FromSlice(intRange(0, 5))))
		assert.Equal(t, []int{0, 1, 2, 3, 4}, loader.Window().Values())
		assert.Equal(t, Exhausted, loader.State())

		n, err := loader.LoadMore(5)
		assert.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, Exhausted, loader.State())
	})

	t.Run("two successive filters", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 5, PageSize: 1})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 100))))

		require.NoError(t, loader.SetFilter(Match(isEven)))
		require.NoError(t, loader.SetFilter(Match(func(i int) bool { return i%3 == 0 })))

		assert.Equal(t, []int{0, 3, 6, 9, 12}, loader.Window().Values())

		loader.LoadMore(2)
		assert.Equal(t, []int{0, 3, 6, 9, 12, 15, 18}, loader.Window().Values())
	})

	t.Run("the window is a prefix of the effective sequence", func(t *testing.T) {
		source := intRange(0, 57)

		var expected []int
		for _, i := range source {
			if isEven(i) {
				expected = append(expected, i)
			}
		}

		for _, initial := range []int{0, 1, 7, 29, 100} {
			loader := NewLoader[int](Config{InitialBatchSize: initial})
			require.NoError(t, loader.Attach(FromSlice(source)))
			require.NoError(t, loader.SetFilter(Match(isEven)))

			total := initial
			for _, k := range []int{1, 3, 0, 10, 2, 50} {
				_, err := loader.LoadMore(k)
				require.NoError(t, err)
				total += k

				assert.Equal(t, expected[:min(total, len(expected))], loader.Window().Values())
			}
		}
	})

	t.Run("exhaustion is idempotent", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 3})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))

		n, err := loader.LoadMore(5)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, Idle, loader.State())

		n, err = loader.LoadMore(5)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, Exhausted, loader.State())

		windowBefore := loader.Window().Values()

		for range 3 {
			n, err = loader.LoadMore(4)
			assert.NoError(t, err)
			assert.Zero(t, n)
			assert.Equal(t, windowBefore, loader.Window().Values())
			assert.Equal(t, Exhausted, loader.State())
		}
	})

	t.Run("exhaustion is confirmed by the first short load", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 5})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 5))))

		//the cursor has not seen the end of the source yet.
		assert.Equal(t, Idle, loader.State())

		n, err := loader.LoadMore(1)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, Exhausted, loader.State())
	})

	t.Run("a reset never carries items over", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 4})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 100))))
		loader.LoadMore(30)

		require.NoError(t, loader.Attach(FromSlice(intRange(1000, 1010))))
		assert.Equal(t, []int{1000, 1001, 1002, 1003}, loader.Window().Values())

		require.NoError(t, loader.SetFilter(Match(func(i int) bool { return i > 1007 })))
		assert.Equal(t, []int{1008, 1009}, loader.Window().Values())
		assert.Equal(t, Exhausted, loader.State())
	})

	t.Run("no filter yields the unfiltered sequence", func(t *testing.T) {
		source := FromSlice(intRange(0, 40))

		unfiltered := NewLoader[int](Config{InitialBatchSize: 7})
		require.NoError(t, unfiltered.Attach(source))
		unfiltered.LoadMore(9)

		filtered := NewLoader[int](Config{InitialBatchSize: 7})
		require.NoError(t, filtered.Attach(source))
		require.NoError(t, filtered.SetFilter(Match(isEven)))
		require.NoError(t, filtered.SetFilter(nil))
		filtered.LoadMore(9)

		assert.Equal(t, intRange(0, 16), unfiltered.Window().Values())
		assert.Equal(t, unfiltered.Window().Values(), filtered.Window().Values())
	})

	t.Run("re-attaching the same source resets", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 2})
		source := FromSlice(intRange(0, 10))
		require.NoError(t, loader.Attach(source))
		loader.LoadMore(5)
		firstGeneration := loader.Generation()

		observer := &recordingObserver{}
		loader.Window().Subscribe(observer)

		require.NoError(t, loader.Attach(source))
		assert.Equal(t, []int{0, 1}, loader.Window().Values())
		assert.Equal(t, []string{"cleared", "appended"}, observer.events)
		assert.NotEqual(t, firstGeneration, loader.Generation())
	})

	t.Run("setting the same filter again resets", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 2})
		predicate := Match(isEven)
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))
		require.NoError(t, loader.SetFilter(predicate))
		loader.LoadMore(2)
		assert.Equal(t, []int{0, 2, 4, 6}, loader.Window().Values())
		firstGeneration := loader.Generation()

		observer := &recordingObserver{}
		loader.Window().Subscribe(observer)

		require.NoError(t, loader.SetFilter(predicate))
		assert.Equal(t, []int{0, 2}, loader.Window().Values())
		assert.Equal(t, []string{"cleared", "appended"}, observer.events)
		assert.NotEqual(t, firstGeneration, loader.Generation())
		assert.Equal(t, Idle, loader.State())
	})

	t.Run("appended items are not shared with later loads", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 2})

		var batches [][]int
		loader.Window().Subscribe(ObserverFuncs[int]{
			OnItemsAppended: func(items []int) {
				batches = append(batches, items)
			},
		})

		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))
		loader.LoadMore(3)
		loader.LoadMore(3)

		assert.Equal(t, [][]int{{0, 1}, {2, 3, 4}, {5, 6, 7}}, batches)
		assert.Zero(t, loader.staging.Size())
	})

	t.Run("filter set before attach", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 3})
		require.NoError(t, loader.SetFilter(Match(isEven)))
		assert.Equal(t, Empty, loader.State())
		assert.Zero(t, loader.Window().Len())

		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))
		assert.Equal(t, []int{0, 2, 4}, loader.Window().Values())
	})

	t.Run("nil source", func(t *testing.T) {
		loader := NewLoader[int](DefaultConfig())
		require.NoError(t, loader.Attach(nil))

		assert.Equal(t, Exhausted, loader.State())
		assert.Zero(t, loader.Window().Len())

		n, err := loader.LoadMore(3)
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unbounded source", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 10, PageSize: 1})
		require.NoError(t, loader.Attach(counter()))
		require.NoError(t, loader.SetFilter(Match(func(i int) bool { return i%1000 == 0 })))

		assert.Equal(t, []int{0, 1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 9000}, loader.Window().Values())

		n, err := loader.LoadPage()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, Idle, loader.State())
	})

	t.Run("the source is only pulled on demand", func(t *testing.T) {
		pulled := 0
		source := Source[int](func(yield func(int, error) bool) {
			for i := 0; ; i++ {
				pulled++
				if !yield(i, nil) {
					return
				}
			}
		})

		loader := NewLoader[int](Config{InitialBatchSize: 4})
		require.NoError(t, loader.Attach(source))
		assert.Equal(t, 4, pulled)

		loader.LoadMore(3)
		assert.Equal(t, 7, pulled)
	})

	t.Run("replaced cursors are stopped", func(t *testing.T) {
		stopped := 0
		source := Source[int](func(yield func(int, error) bool) {
			defer func() {
				stopped++
			}()
			for i := 0; ; i++ {
				if !yield(i, nil) {
					return
				}
			}
		})

		loader := NewLoader[int](Config{InitialBatchSize: 4})
		require.NoError(t, loader.Attach(source))
		assert.Zero(t, stopped)

		require.NoError(t, loader.Attach(source))
		assert.Equal(t, 1, stopped)

		loader.Close()
		assert.Equal(t, 2, stopped)
		assert.Equal(t, Exhausted, loader.State())
	})

	t.Run("sizes <= 0 are clamped", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: -3, PageSize: -1})
		assert.Zero(t, loader.Config().InitialBatchSize)
		assert.Zero(t, loader.Config().PageSize)

		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))
		assert.Zero(t, loader.Window().Len())
		assert.Equal(t, Idle, loader.State())

		n, err := loader.LoadPage()
		assert.NoError(t, err)
		assert.Zero(t, n)

		n, err = loader.LoadMore(-2)
		assert.NoError(t, err)
		assert.Zero(t, n)

		n, err = loader.LoadMore(3)
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []int{0, 1, 2}, loader.Window().Values())
	})

	t.Run("load if near end", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 2, PageSize: 3})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))

		n, err := loader.LoadIfNearEnd(5, 2)
		assert.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 2, loader.Window().Len())

		n, err = loader.LoadIfNearEnd(2, 2)
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 5, loader.Window().Len())
	})

	t.Run("state is loading during the notifications of a reset", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 2})
		var states []State

		loader.Window().Subscribe(ObserverFuncs[int]{
			OnItemsAppended: func(items []int) {
				states = append(states, loader.State())
			},
			OnCleared: func() {
				states = append(states, loader.State())
			},
		})

		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))
		loader.LoadMore(1)

		assert.Equal(t, []State{Loading, Loading, Idle}, states)
	})

	t.Run("many resets over unbounded sources do not leak", func(t *testing.T) {
		start := utils.CurrentResourceUsage()

		loader := NewLoader[int](Config{InitialBatchSize: 20, PageSize: 5})
		for i := range 5_000 {
			require.NoError(t, loader.Attach(counter()))
			if i%2 == 0 {
				loader.LoadPage()
			}
		}
		loader.Close()

		utils.AssertResourcesReleased(t, start, 5_000_000)
	})
}

func TestLoaderErrors(t *testing.T) {

	errPredicate := errors.New("predicate error")
	errRead := errors.New("read error")

	failAt := func(n int) Predicate[int] {
		return func(i int) (bool, error) {
			if i == n {
				return false, errPredicate
			}
			return true, nil
		}
	}

	t.Run("predicate error during a load", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 5})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 20))))
		require.NoError(t, loader.SetFilter(failAt(7)))

		observer := &recordingObserver{}
		loader.Window().Subscribe(observer)

		//items 5 and 6 are pulled before the error, they should not be appended.
		n, err := loader.LoadMore(5)
		assert.ErrorIs(t, err, errPredicate)
		assert.Same(t, errPredicate, err)
		assert.Zero(t, n)
		assert.Equal(t, intRange(0, 5), loader.Window().Values())
		assert.Equal(t, Failed, loader.State())
		assert.Empty(t, observer.events)
		assert.Zero(t, loader.staging.Size())

		//the error is sticky.
		n, err = loader.LoadMore(1)
		assert.ErrorIs(t, err, errPredicate)
		assert.Zero(t, n)
		assert.Equal(t, intRange(0, 5), loader.Window().Values())

		//a new filter recovers the loader.
		require.NoError(t, loader.SetFilter(nil))
		assert.Equal(t, intRange(0, 5), loader.Window().Values())
		assert.Equal(t, Idle, loader.State())
		n, err = loader.LoadMore(5)
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("predicate error during a reset", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 5})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 20))))
		loader.LoadMore(2)
		previousGeneration := loader.Generation()

		observer := &recordingObserver{}
		loader.Window().Subscribe(observer)

		err := loader.SetFilter(failAt(3))
		assert.ErrorIs(t, err, errPredicate)
		assert.Zero(t, loader.staging.Size())

		//the previous state is kept.
		assert.Equal(t, intRange(0, 7), loader.Window().Values())
		assert.Empty(t, observer.events)
		assert.Nil(t, loader.Predicate())
		assert.Equal(t, Idle, loader.State())
		assert.Equal(t, previousGeneration, loader.Generation())

		n, err := loader.LoadMore(3)
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, intRange(0, 10), loader.Window().Values())
	})

	t.Run("source error", func(t *testing.T) {
		source := Source[int](func(yield func(int, error) bool) {
			for i := range 3 {
				if !yield(i, nil) {
					return
				}
			}
			yield(0, errRead)
		})

		loader := NewLoader[int](Config{InitialBatchSize: 2})
		require.NoError(t, loader.Attach(source))
		assert.Equal(t, []int{0, 1}, loader.Window().Values())

		n, err := loader.LoadMore(2)
		assert.ErrorIs(t, err, errRead)
		assert.Zero(t, n)
		assert.Equal(t, []int{0, 1}, loader.Window().Values())

		err = loader.Attach(source)
		assert.NoError(t, err)

		err = NewLoader[int](Config{InitialBatchSize: 10}).Attach(source)
		assert.ErrorIs(t, err, errRead)
	})

	t.Run("panicking predicate", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 3})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))
		require.NoError(t, loader.SetFilter(Match(func(i int) bool {
			if i == 4 {
				panic("boom")
			}
			return true
		})))

		assert.PanicsWithValue(t, "boom", func() {
			loader.LoadMore(3)
		})

		assert.Equal(t, Failed, loader.State())
		assert.Equal(t, intRange(0, 3), loader.Window().Values())

		n, err := loader.LoadMore(1)
		assert.ErrorIs(t, err, ErrIterationPanicked)
		assert.Zero(t, n)
	})

	t.Run("panicking predicate during a reset", func(t *testing.T) {
		loader := NewLoader[int](Config{InitialBatchSize: 3})
		require.NoError(t, loader.Attach(FromSlice(intRange(0, 10))))

		assert.Panics(t, func() {
			loader.SetFilter(Match(func(i int) bool {
				panic("boom")
			}))
		})

		assert.Equal(t, Idle, loader.State())
		assert.Equal(t, intRange(0, 3), loader.Window().Values())
		n, err := loader.LoadMore(2)
		assert.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestFilter(t *testing.T) {

	t.Run("nil predicate returns the source", func(t *testing.T) {
		source := FromSlice([]int{1, 2})
		filtered := Filter(source, nil)

		assert.True(t, utils.SamePointer(source, filtered))
	})

	t.Run("order and duplicates are preserved", func(t *testing.T) {
		source := FromSlice([]int{4, 1, 4, 3, 2, 2})
		filtered := Filter(source, Match(isEven))

		var items []int
		for item, err := range filtered {
			require.NoError(t, err)
			items = append(items, item)
		}
		assert.Equal(t, []int{4, 4, 2, 2}, items)
	})

	t.Run("the filtered sequence is repeatable", func(t *testing.T) {
		filtered := Filter(FromSlice(intRange(0, 6)), Match(isEven))

		collect := func() (items []int) {
			for item := range filtered {
				items = append(items, item)
			}
			return
		}
		assert.Equal(t, collect(), collect())
	})

	t.Run("unbounded source", func(t *testing.T) {
		filtered := Filter(counter(), Match(isEven))

		var items []int
		for item := range filtered {
			items = append(items, item)
			if len(items) == 3 {
				break
			}
		}
		assert.Equal(t, []int{0, 2, 4}, items)
	})

	t.Run("FromSeq", func(t *testing.T) {
		var items []int
		for item := range Filter(FromSeq(slices.Values([]int{1, 2, 3})), Match(isEven)) {
			items = append(items, item)
		}
		assert.Equal(t, []int{2}, items)
		assert.Nil(t, FromSeq[int](nil))
	})
}

func TestCursor(t *testing.T) {

	t.Run("take", func(t *testing.T) {
		cursor := NewCursor(FromSlice(intRange(0, 5)))
		list := memds.NewArrayList[int]()

		n, err := cursor.TakeInto(3, list)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []int{0, 1, 2}, list.Values())
		assert.False(t, cursor.Exhausted())
		assert.Equal(t, 3, cursor.Advanced())

		n, err = cursor.TakeInto(3, list)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, list.Values())
		assert.True(t, cursor.Exhausted())

		n, err = cursor.TakeInto(3, list)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 5, cursor.Advanced())
	})

	t.Run("take stops at the first error", func(t *testing.T) {
		errRead := errors.New("read error")
		cursor := NewCursor(Source[int](func(yield func(int, error) bool) {
			if yield(0, nil) {
				yield(0, errRead)
			}
		}))
		list := memds.NewArrayList[int]()

		n, err := cursor.TakeInto(5, list)
		assert.Same(t, errRead, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []int{0}, list.Values())

		n, err = cursor.TakeInto(5, list)
		assert.Same(t, errRead, err)
		assert.Zero(t, n)
	})

	t.Run("close", func(t *testing.T) {
		cursor := NewCursor(counter())
		cursor.TakeInto(2, memds.NewArrayList[int]())
		cursor.Close()

		_, ok, err := cursor.Next()
		assert.False(t, ok)
		assert.NoError(t, err)
		assert.True(t, cursor.Exhausted())
	})

	t.Run("nil source", func(t *testing.T) {
		cursor := NewCursor[int](nil)
		assert.True(t, cursor.Exhausted())

		_, ok, err := cursor.Next()
		assert.False(t, ok)
		assert.NoError(t, err)
	})
}

func TestProximity(t *testing.T) {
	assert.True(t, IsNearEnd(0, 0))
	assert.True(t, IsNearEnd(2, 3))
	assert.True(t, IsNearEnd(3, 3))
	assert.False(t, IsNearEnd(3.5, 3))

	metrics := ScrollMetrics{Offset: 80, Viewport: 20, Content: 100}
	assert.Zero(t, metrics.DistanceToEnd())

	metrics = ScrollMetrics{Offset: 10, Viewport: 20, Content: 100}
	assert.Equal(t, 70.0, metrics.DistanceToEnd())

	metrics = ScrollMetrics{Offset: 0, Viewport: 20, Content: 5}
	assert.Zero(t, metrics.DistanceToEnd())
}
