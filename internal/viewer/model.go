// Package viewer implements a terminal pager over a lazy.Loader: rows are loaded when the cursor gets close to
// the end of the loaded window and the window is filtered by searches typed by the user.
package viewer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/bits-and-blooms/bitset"
	"github.com/inoxlang/lazyview/internal/lazy"
	"github.com/inoxlang/lazyview/internal/search"
	"github.com/inoxlang/lazyview/internal/utils"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_WIDTH               = 80
	DEFAULT_HEIGHT              = 24
	DEFAULT_LOAD_MORE_COUNT     = 100
	DEFAULT_PROXIMITY_THRESHOLD = 3

	STATUS_LINE_COUNT = 1
	CURSOR_MARK       = ">"
	SELECTION_MARK    = "*"
	SEARCH_PROMPT     = "/"
	EMPTY_ROW         = "~"
	ERROR_COLOR       = "1"
)

type Mode int

const (
	NormalMode Mode = iota
	SearchMode
)

// A Command is returned by Model.HandleKey when the caller has something to do.
type Command int

const (
	NoCommand Command = iota
	//the search input changed, ApplySearch should be called once the user stops typing.
	ScheduleSearch
	Quit
)

type Config struct {
	//number of rows loaded by the 'L' and 'G' keys.
	LoadMoreCount int

	//a page is loaded when the number of loaded rows below the screen is less than or equal to this threshold.
	ProximityThreshold int

	Colorize bool

	//file where committed searches are persisted, the history is not persisted if empty.
	HistoryFile string

	Logger zerolog.Logger
}

// Model is the terminal independent state of the viewer, it observes the window of its loader.
// A Model is not thread safe, all calls should be made from the same goroutine as the loader calls.
type Model[T any] struct {
	config      Config
	logger      zerolog.Logger
	loader      *lazy.Loader[T]
	compiler    *search.Compiler
	text        func(item T) string
	unsubscribe func()

	width, height int
	top           int //index of the first displayed row
	cursor        int //index of the current row
	selection     *bitset.BitSet

	mode            Mode
	input           []rune
	appliedSearch   string
	history         searchHistory
	browsingHistory bool

	err  error
	quit bool
}

// NewModel creates a model displaying the window of loader, text returns the display text of an item and
// defaults to search.Display.
func NewModel[T any](loader *lazy.Loader[T], compiler *search.Compiler, text func(item T) string, config Config) (*Model[T], error) {
	if text == nil {
		text = search.Display[T]
	}
	if config.LoadMoreCount <= 0 {
		config.LoadMoreCount = DEFAULT_LOAD_MORE_COUNT
	}
	if config.ProximityThreshold < 0 {
		config.ProximityThreshold = 0
	}

	history := searchHistory{index: -1}
	if config.HistoryFile != "" {
		var err error
		history, err = readSearchHistory(config.HistoryFile)
		if err != nil {
			//the history is optional state, a broken file is overwritten by the next committed search.
			config.Logger.Warn().Err(err).Str("file", config.HistoryFile).Msg("failed to read the search history, starting with an empty history")
			history = searchHistory{index: -1}
		}
	}

	m := &Model[T]{
		config:    config,
		logger:    config.Logger,
		loader:    loader,
		compiler:  compiler,
		text:      text,
		width:     DEFAULT_WIDTH,
		height:    DEFAULT_HEIGHT,
		selection: bitset.New(0),
		history:   history,
	}
	m.unsubscribe = loader.Window().Subscribe(m)
	return m, nil
}

func (m *Model[T]) ItemsAppended(items []T) {
	m.logger.Trace().Int("count", len(items)).Msg("rows appended")
}

func (m *Model[T]) Cleared() {
	m.top = 0
	m.cursor = 0
	m.selection.ClearAll()
}

// Close stops observing the window and closes the loader.
func (m *Model[T]) Close() {
	m.unsubscribe()
	m.loader.Close()
}

func (m *Model[T]) Done() bool {
	return m.quit
}

func (m *Model[T]) Mode() Mode {
	return m.mode
}

// Err returns the error of the last failed operation, it is reset by the next successful search or reload.
func (m *Model[T]) Err() error {
	return m.err
}

func (m *Model[T]) Input() string {
	return string(m.input)
}

func (m *Model[T]) AppliedSearch() string {
	return m.appliedSearch
}

func (m *Model[T]) Cursor() int {
	return m.cursor
}

func (m *Model[T]) Top() int {
	return m.top
}

// Resize sets the size of the screen, a page is loaded if the screen is not full.
func (m *Model[T]) Resize(width, height int) {
	m.width = max(width, len(CURSOR_MARK+SELECTION_MARK)+1)
	m.height = max(height, STATUS_LINE_COUNT+1)
	m.scrollToCursor()
	m.fill()
}

func (m *Model[T]) bodyHeight() int {
	return m.height - STATUS_LINE_COUNT
}

// HandleKey updates the model after a key press.
func (m *Model[T]) HandleKey(action termAction, r rune) Command {
	if action == Stop {
		m.quit = true
		return Quit
	}

	if m.mode == SearchMode {
		return m.handleSearchKey(action, r)
	}

	switch action {
	case Up:
		m.move(-1)
	case Down:
		m.move(1)
	case PageUp:
		m.move(-m.bodyHeight())
	case PageDown:
		m.move(m.bodyHeight())
	case Home:
		m.moveHome()
	case End:
		m.moveEnd()
	case Tab:
		m.toggleSelection()
	case NoAction:
		switch r {
		case 'j':
			m.move(1)
		case 'k':
			m.move(-1)
		case ' ':
			m.move(m.bodyHeight())
		case 'b':
			m.move(-m.bodyHeight())
		case 'g':
			m.moveHome()
		case 'G':
			m.moveEnd()
		case 'L':
			m.LoadMore()
		case '/':
			m.mode = SearchMode
			m.input = []rune(m.appliedSearch)
			m.browsingHistory = false
		case 'r':
			m.Reload()
		case 'q':
			m.quit = true
			return Quit
		}
	}
	return NoCommand
}

func (m *Model[T]) handleSearchKey(action termAction, r rune) Command {
	switch action {
	case Enter:
		m.mode = NormalMode
		m.ApplySearch()
		if m.err == nil {
			m.history.add(m.appliedSearch)
			m.saveHistory()
		}
	case Escape:
		m.mode = NormalMode
		m.input = nil
		m.ApplySearch()
	case Back:
		if len(m.input) == 0 {
			break
		}
		m.input = m.input[:len(m.input)-1]
		m.browsingHistory = false
		return ScheduleSearch
	case Up:
		if m.history.empty() {
			break
		}
		if m.browsingHistory {
			m.history.scroll(-1)
		} else {
			m.browsingHistory = true
			m.history.resetIndex()
		}
		m.input = []rune(m.history.current())
		return ScheduleSearch
	case Down:
		if m.history.empty() || !m.browsingHistory {
			break
		}
		m.history.scroll(1)
		m.input = []rune(m.history.current())
		return ScheduleSearch
	case NoAction:
		if !unicode.IsPrint(r) {
			break
		}
		m.input = append(m.input, r)
		m.browsingHistory = false
		return ScheduleSearch
	}
	return NoCommand
}

// ApplySearch compiles the search input and filters the loader with the resulting predicate. If the input
// is invalid or if the initial batch cannot be loaded the error is kept and the previous rows stay displayed.
func (m *Model[T]) ApplySearch() {
	text := string(m.input)
	if text == m.appliedSearch && m.err == nil && m.loader.State() != lazy.Failed {
		return
	}

	predicate, err := m.compiler.Compile(text)
	if err != nil {
		m.setError(err)
		return
	}

	if err := m.loader.SetFilter(search.ForItems(predicate, m.text)); err != nil {
		m.setError(err)
		return
	}

	m.logger.Debug().Str("search", text).Msg("search applied")
	m.appliedSearch = text
	m.err = nil
	m.fill()
}

// SetSearch replaces the search input and applies it.
func (m *Model[T]) SetSearch(text string) {
	m.input = []rune(text)
	m.ApplySearch()
}

// Reload attaches the source of the loader again, the cursor is moved back to its previous row if it
// still exists.
func (m *Model[T]) Reload() {
	prevTop, prevCursor := m.top, m.cursor

	if err := m.loader.Attach(m.loader.Source()); err != nil {
		m.setError(err)
		return
	}
	m.err = nil

	if missing := prevCursor + 1 - m.loader.Window().Len(); missing > 0 {
		if _, err := m.loader.LoadMore(missing); err != nil {
			m.setError(err)
			return
		}
	}

	m.top = prevTop
	m.cursor = min(prevCursor, max(m.loader.Window().Len()-1, 0))
	m.scrollToCursor()
	m.fill()
}

// LoadMore loads LoadMoreCount rows.
func (m *Model[T]) LoadMore() {
	if _, err := m.loader.LoadMore(m.config.LoadMoreCount); err != nil {
		m.setError(err)
	}
}

// Selected returns the selected rows in window order.
func (m *Model[T]) Selected() []T {
	var selected []T
	window := m.loader.Window()

	for i, ok := m.selection.NextSet(0); ok; i, ok = m.selection.NextSet(i + 1) {
		item, ok := window.At(int(i))
		if !ok {
			break
		}
		selected = append(selected, item)
	}
	return selected
}

func (m *Model[T]) move(delta int) {
	lastIndex := max(m.loader.Window().Len()-1, 0)
	m.cursor = min(max(m.cursor+delta, 0), lastIndex)
	m.scrollToCursor()
	m.fill()
}

func (m *Model[T]) moveHome() {
	m.cursor = 0
	m.top = 0
	m.fill()
}

func (m *Model[T]) moveEnd() {
	m.cursor = max(m.loader.Window().Len()-1, 0)
	m.scrollToCursor()
	m.LoadMore()
	m.fill()
}

func (m *Model[T]) toggleSelection() {
	if m.loader.Window().Len() == 0 {
		return
	}
	m.selection.Flip(uint(m.cursor))
}

func (m *Model[T]) scrollToCursor() {
	height := m.bodyHeight()

	if m.cursor < m.top {
		m.top = m.cursor
	} else if m.cursor >= m.top+height {
		m.top = m.cursor - height + 1
	}
	m.top = min(m.top, max(m.loader.Window().Len()-height, 0))
	m.top = max(m.top, 0)
}

func (m *Model[T]) scrollMetrics() lazy.ScrollMetrics {
	return lazy.ScrollMetrics{
		Offset:   float64(m.top),
		Viewport: float64(m.bodyHeight()),
		Content:  float64(m.loader.Window().Len()),
	}
}

// fill loads pages while the end of the window is close to the bottom of the screen.
func (m *Model[T]) fill() {
	threshold := float64(m.config.ProximityThreshold)

	for m.loader.State() == lazy.Idle {
		loaded, err := m.loader.LoadIfNearEnd(m.scrollMetrics().DistanceToEnd(), threshold)
		if err != nil {
			m.setError(err)
			return
		}
		if loaded == 0 {
			return
		}
	}
}

func (m *Model[T]) setError(err error) {
	m.err = err
	m.logger.Warn().Err(err).Msg("operation failed")
}

func (m *Model[T]) saveHistory() {
	if m.config.HistoryFile == "" {
		return
	}
	if err := writeSearchHistory(m.config.HistoryFile, m.history); err != nil {
		m.logger.Warn().Err(err).Msg("failed to save search history")
	}
}

// Render writes the screen to w.
func (m *Model[T]) Render(w io.Writer) error {
	buf := bytes.NewBuffer(nil)

	profile := termenv.Ascii
	if m.config.Colorize {
		profile = termenv.ANSI256
	}
	out := termenv.NewOutput(buf, termenv.WithProfile(profile))
	out.ClearScreen()

	height := m.bodyHeight()
	rows := m.loader.Window().Range(m.top, m.top+height)

	for i, item := range rows {
		index := m.top + i
		selected := m.selection.Test(uint(index))

		style := out.String(m.formatRow(index, item, selected))
		if index == m.cursor {
			style = style.Reverse()
		}
		if selected {
			style = style.Bold()
		}
		buf.WriteString(style.String())
		buf.WriteString("\r\n")
	}

	for i := len(rows); i < height; i++ {
		buf.WriteString(out.String(EMPTY_ROW).Faint().String())
		buf.WriteString("\r\n")
	}

	buf.WriteString(m.statusLine(out))

	_, err := w.Write(buf.Bytes())
	return err
}

func (m *Model[T]) formatRow(index int, item T, selected bool) string {
	prefix := " "
	if index == m.cursor {
		prefix = CURSOR_MARK
	}
	if selected {
		prefix += SELECTION_MARK
	} else {
		prefix += " "
	}

	text := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, utils.StripANSISequences(m.text(item)))

	return truncate(prefix+text, m.width)
}

func (m *Model[T]) statusLine(out *termenv.Output) string {
	if m.mode == SearchMode {
		return truncate(SEARCH_PROMPT+string(m.input), m.width)
	}

	status := fmt.Sprintf("%s | %d rows", m.loader.State(), m.loader.Window().Len())
	if m.appliedSearch != "" {
		status += fmt.Sprintf(" | search: %s", m.appliedSearch)
	}
	if count := m.selection.Count(); count > 0 {
		status += fmt.Sprintf(" | %d selected", count)
	}
	if m.err == nil {
		return truncate(status, m.width)
	}

	status = truncate(status+" | error: "+m.err.Error(), m.width)
	return out.String(status).Foreground(out.Color(ERROR_COLOR)).String()
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
