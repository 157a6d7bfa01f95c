// Package lazy implements an incremental windowed loader: a bounded, growable window over a possibly
// unbounded (and possibly filtered) sequence of items. The window is filled up to an initial batch size
// when the source or the filter changes and grows page by page when the host reports that the end
// of the displayed content is near.
package lazy

import (
	"github.com/inoxlang/lazyview/internal/memds"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_INITIAL_BATCH_SIZE = 20
	DEFAULT_PAGE_SIZE          = 1

	GENERATION_LOG_FIELD_NAME = "gen"
)

type Config struct {
	//number of items loaded by a reset, values <= 0 mean that resets leave the window empty.
	InitialBatchSize int

	//number of items loaded by LoadPage, values <= 0 make LoadPage a no-op.
	PageSize int

	//optional, defaults to a disabled logger.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		InitialBatchSize: DEFAULT_INITIAL_BATCH_SIZE,
		PageSize:         DEFAULT_PAGE_SIZE,
	}
}

// A Loader owns a cursor over the effective sequence (source filtered by the predicate) and the window of
// already loaded items. Attaching a source or setting a filter always resets the loader: the window is cleared
// and refilled from a new cursor.
//
// A Loader is not thread safe, calls should be serialized by the caller.
type Loader[T any] struct {
	config Config
	logger zerolog.Logger

	attached   bool
	source     Source[T]
	predicate  Predicate[T]
	cursor     *Cursor[T]
	window     *Window[T]
	staging    *memds.ArrayList[T] //items pulled by the current call, they reach the window only if the call succeeds
	state      State
	generation ulid.ULID
}

func NewLoader[T any](config Config) *Loader[T] {
	config.InitialBatchSize = max(config.InitialBatchSize, 0)
	config.PageSize = max(config.PageSize, 0)

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	config.Logger = nil

	return &Loader[T]{
		config: config,
		logger: logger,
		window:  newWindow[T](),
		staging: memds.NewArrayList[T](),
		state:   Empty,
	}
}

// Attach stores the source and resets the loader, a nil source is an empty sequence.
// If the initial fill fails the error is returned and the loader keeps its previous state (source included).
func (l *Loader[T]) Attach(source Source[T]) error {
	return l.reset(source, l.predicate)
}

// SetFilter stores the predicate and resets the loader if a source is attached, a nil predicate disables filtering.
// If the initial fill fails the error is returned and the loader keeps its previous state (predicate included).
func (l *Loader[T]) SetFilter(predicate Predicate[T]) error {
	if !l.attached {
		l.predicate = predicate
		return nil
	}
	return l.reset(l.source, predicate)
}

// LoadMore advances the cursor at most count times and appends the yielded items to the window.
// The number of appended items is returned, a result less than count means that the effective sequence
// is exhausted (or that an error occurred).
//
// If an error occurs nothing is appended: the items pulled before the failure are discarded and the cursor
// cannot be resumed, all later calls return the same error. Attach or SetFilter must be called to recover.
func (l *Loader[T]) LoadMore(count int) (int, error) {
	if count <= 0 || l.cursor == nil {
		return 0, nil
	}

	failed := true
	defer func() {
		if failed {
			l.state = Failed
		}
	}()

	defer l.staging.Clear()

	if _, err := l.cursor.TakeInto(count, l.staging); err != nil {
		l.logger.Warn().Err(err).Str(GENERATION_LOG_FIELD_NAME, l.generation.String()).Msg("failed to load more items")
		return 0, err
	}
	failed = false

	items := l.staging.Values()
	l.window.append(items)
	l.state = l.settledState()

	l.logger.Debug().
		Str(GENERATION_LOG_FIELD_NAME, l.generation.String()).
		Int("requested", count).
		Int("loaded", len(items)).
		Int("windowLen", l.window.Len()).
		Msg("load more")

	return len(items), nil
}

// LoadPage loads at most PageSize items.
func (l *Loader[T]) LoadPage() (int, error) {
	return l.LoadMore(l.config.PageSize)
}

// LoadIfNearEnd loads a page if IsNearEnd(distanceToEnd, threshold) is true.
func (l *Loader[T]) LoadIfNearEnd(distanceToEnd, threshold float64) (int, error) {
	if !IsNearEnd(distanceToEnd, threshold) {
		return 0, nil
	}
	return l.LoadPage()
}

// Close stops the current cursor, the window is left untouched.
func (l *Loader[T]) Close() {
	if l.cursor != nil {
		l.cursor.Close()
		if l.state == Idle {
			l.state = Exhausted
		}
	}
}

func (l *Loader[T]) Window() *Window[T] {
	return l.window
}

func (l *Loader[T]) State() State {
	return l.state
}

func (l *Loader[T]) Source() Source[T] {
	return l.source
}

func (l *Loader[T]) Predicate() Predicate[T] {
	return l.predicate
}

func (l *Loader[T]) Config() Config {
	return l.config
}

// Generation returns the identifier of the last successful reset, it is the zero ULID before the first one.
func (l *Loader[T]) Generation() ulid.ULID {
	return l.generation
}

func (l *Loader[T]) reset(source Source[T], predicate Predicate[T]) error {
	generation := ulid.Make()
	cursor := NewCursor(Filter(source, predicate))

	committed := false
	defer func() {
		if !committed {
			cursor.Close()
		}
	}()

	//the initial batch is pulled before the window is touched so that a failing reset leaves
	//the previous window displayed.
	defer l.staging.Clear()

	if _, err := cursor.TakeInto(l.config.InitialBatchSize, l.staging); err != nil {
		l.logger.Warn().Err(err).Str(GENERATION_LOG_FIELD_NAME, generation.String()).Msg("reset failed, previous window is kept")
		return err
	}
	committed = true

	if l.cursor != nil {
		l.cursor.Close()
	}

	l.attached = true
	l.source = source
	l.predicate = predicate
	l.cursor = cursor
	l.generation = generation

	items := l.staging.Values()

	l.state = Loading
	l.window.clear()
	l.window.append(items)
	l.state = l.settledState()

	l.logger.Debug().
		Str(GENERATION_LOG_FIELD_NAME, generation.String()).
		Bool("filtered", predicate != nil).
		Int("initialBatchSize", l.config.InitialBatchSize).
		Int("loaded", len(items)).
		Bool("exhausted", cursor.Exhausted()).
		Msg("reset")

	return nil
}

func (l *Loader[T]) settledState() State {
	if l.cursor.Exhausted() {
		return Exhausted
	}
	return Idle
}
