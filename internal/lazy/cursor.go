package lazy

import (
	"iter"

	"github.com/inoxlang/lazyview/internal/memds"
)

// A Cursor is a resumable position in a Source, it only moves forward.
// Once the cursor has reported exhaustion or an error it never yields items again.
type Cursor[T any] struct {
	next func() (T, error, bool)
	stop func()

	advanced  int
	exhausted bool
	err       error //sticky
}

func NewCursor[T any](source Source[T]) *Cursor[T] {
	if source == nil {
		return &Cursor[T]{exhausted: true}
	}

	next, stop := iter.Pull2(iter.Seq2[T, error](source))
	return &Cursor[T]{
		next: next,
		stop: stop,
	}
}

// Next advances the cursor. ok is false if the source is exhausted or if an error occurred.
// The first error is returned by all subsequent calls. If the source panics the panic is propagated and
// the cursor is left in a failed state.
func (c *Cursor[T]) Next() (item T, ok bool, err error) {
	if c.err != nil {
		return item, false, c.err
	}
	if c.exhausted {
		return
	}

	panicking := true
	defer func() {
		if panicking {
			//the iteration is already over, stop must not be called.
			c.next, c.stop = nil, nil
			c.err = ErrIterationPanicked
		}
	}()

	item, err, ok = c.next()
	panicking = false

	switch {
	case err != nil:
		var zero T
		c.err = err
		c.release()
		return zero, false, err
	case !ok:
		c.exhausted = true
		c.release()
		return
	}

	c.advanced++
	return item, true, nil
}

// TakeInto advances the cursor at most n times and appends the yielded items to list, the number of
// appended items is returned. If an error occurs the items appended during the call are left in list,
// callers staging a batch should discard it.
func (c *Cursor[T]) TakeInto(n int, list *memds.ArrayList[T]) (int, error) {
	taken := 0
	for taken < n {
		item, ok, err := c.Next()
		if err != nil {
			return taken, err
		}
		if !ok {
			break
		}
		list.Append(item)
		taken++
	}
	return taken, nil
}

// Exhausted returns true if the cursor has reached the end of the source or has been closed.
func (c *Cursor[T]) Exhausted() bool {
	return c.exhausted
}

// Err returns the error that stopped the cursor, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// Advanced returns the number of items yielded so far.
func (c *Cursor[T]) Advanced() int {
	return c.advanced
}

// Close stops the underlying iteration, resources held by the source are released.
func (c *Cursor[T]) Close() {
	if c.err == nil {
		c.exhausted = true
	}
	c.release()
}

func (c *Cursor[T]) release() {
	stop := c.stop
	c.next, c.stop = nil, nil
	if stop != nil {
		stop()
	}
}
