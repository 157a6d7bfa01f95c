package viewer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/bep/debounce"
	"github.com/inoxlang/lazyview/internal/utils"
	"github.com/muesli/cancelreader"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const (
	//delay after which a lone ESC byte is considered to be a press of the Escape key.
	ESCAPE_TIMEOUT = 25 * time.Millisecond

	DEFAULT_SEARCH_DEBOUNCE = 150 * time.Millisecond
	DEFAULT_RELOAD_DEBOUNCE = 100 * time.Millisecond

	EVENT_CHAN_SIZE = 16
)

var (
	ErrViewerPanicked = errors.New("viewer panicked")
)

type RunOptions struct {
	In  *os.File
	Out *os.File

	//delay between the last key press in search mode and the application of the search.
	SearchDebounce time.Duration

	//delay between the last modification of a watched file and the reload.
	ReloadDebounce time.Duration

	//if nil no file is watched.
	Watch *WatchSpec

	//optional, defaults to the logger of the model.
	WatcherLogger *zerolog.Logger
}

func (opts RunOptions) watcherLogger(fallback zerolog.Logger) zerolog.Logger {
	if opts.WatcherLogger != nil {
		return *opts.WatcherLogger
	}
	return fallback
}

type event int

const (
	searchEvent event = iota
	reloadEvent
)

type runeInput struct {
	r   rune
	err error
}

// Run displays the model until the user quits or ctx is done. The terminal is put in raw mode and
// the alternate screen is used. Loader calls, renderings and key handling all happen in the calling
// goroutine: debounced searches and file changes are posted to it as events.
func Run[T any](ctx context.Context, m *Model[T], opts RunOptions) (finalErr error) {
	//the terminal is restored by the deferred calls below before the panic is converted.
	defer func() {
		if e := recover(); e != nil {
			err := utils.ConvertPanicValueToError(e)
			m.logger.Error().Err(err).Bytes("stack", debug.Stack()).Msg("panic")
			finalErr = fmt.Errorf("%w: %w", ErrViewerPanicked, err)
		}
	}()

	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DEFAULT_SEARCH_DEBOUNCE
	}
	if opts.ReloadDebounce <= 0 {
		opts.ReloadDebounce = DEFAULT_RELOAD_DEBOUNCE
	}

	inFd := int(opts.In.Fd())
	outFd := int(opts.Out.Fd())

	if term.IsTerminal(inFd) {
		prevTermState, err := term.MakeRaw(inFd)
		if err != nil {
			return err
		}
		defer term.Restore(inFd, prevTermState)
	}

	output := termenv.NewOutput(opts.Out)
	output.AltScreen()
	output.HideCursor()
	defer func() {
		output.ShowCursor()
		output.ExitAltScreen()
	}()

	resize := func() {
		width, height, err := term.GetSize(outFd)
		if err != nil {
			width, height = DEFAULT_WIDTH, DEFAULT_HEIGHT
		}
		m.Resize(width, height)
	}
	resize()

	done := make(chan struct{})
	defer close(done)

	events := make(chan event, EVENT_CHAN_SIZE)
	post := func(e event) {
		select {
		case events <- e:
		case <-done:
		}
	}

	//input

	cancelReader, err := cancelreader.NewReader(opts.In)
	if err != nil {
		return err
	}
	defer cancelReader.Close()
	defer cancelReader.Cancel()

	runes := make(chan runeInput)
	go readRunes(bufio.NewReader(cancelReader), runes, done)

	//signals

	signals := make(chan os.Signal, 1)
	notifySignals(signals)
	defer signal.Stop(signals)

	//file changes

	if opts.Watch != nil {
		watcher, err := newFileWatcher(*opts.Watch, opts.watcherLogger(m.logger))
		if err != nil {
			m.setError(fmt.Errorf("failed to watch files: %w", err))
		} else {
			defer watcher.Close()
			debounced := debounce.New(opts.ReloadDebounce)

			go watcher.listenForEvents(func() {
				debounced(func() {
					post(reloadEvent)
				})
			})
		}
	}

	debouncedSearch := debounce.New(opts.SearchDebounce)

	var (
		runeSequence  []rune
		escapeTimeout <-chan time.Time
	)

	handleCommand := func(cmd Command) {
		if cmd == ScheduleSearch {
			debouncedSearch(func() {
				post(searchEvent)
			})
		}
	}

	for !m.Done() {
		if err := m.Render(opts.Out); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-signals:
			if !isResizeSignal(s) {
				return nil
			}
			resize()
		case e := <-events:
			switch e {
			case searchEvent:
				m.ApplySearch()
			case reloadEvent:
				m.Reload()
			}
		case <-escapeTimeout:
			escapeTimeout = nil
			runeSequence = nil
			handleCommand(m.HandleKey(Escape, ESCAPE_CODE))
		case input, ok := <-runes:
			if !ok {
				return nil
			}
			if input.err != nil {
				if errors.Is(input.err, io.EOF) {
					return nil
				}
				return input.err
			}

			escapeTimeout = nil
			runeSequence = append(runeSequence, input.r)
			action := getTermAction(runeSequence)

			switch action {
			case Escape:
				escapeTimeout = time.After(ESCAPE_TIMEOUT)
				continue
			case EscapeNext: //while the escape sequence is not complete we just continue reading
				continue
			default:
				runeSequence = nil
			}

			handleCommand(m.HandleKey(action, input.r))
		}
	}
	return nil
}

// readRunes reads the input until an error occurs or the reader is canceled, runes are sent to ch.
func readRunes(reader *bufio.Reader, ch chan<- runeInput, done <-chan struct{}) {
	defer close(ch)

	for {
		r, _, err := reader.ReadRune()
		if errors.Is(err, cancelreader.ErrCanceled) {
			return
		}

		select {
		case ch <- runeInput{r, err}:
		case <-done:
			return
		}

		if err != nil {
			return
		}
	}
}
