package main

import (
	// ====================== LAZYVIEW IMPORTS ============================
	"github.com/inoxlang/lazyview/internal/config"
	"github.com/inoxlang/lazyview/internal/lazy"
	"github.com/inoxlang/lazyview/internal/logs"
	"github.com/inoxlang/lazyview/internal/search"
	"github.com/inoxlang/lazyview/internal/sources"
	"github.com/inoxlang/lazyview/internal/utils"
	"github.com/inoxlang/lazyview/internal/viewer"

	// ====================== STDLIB ============================
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// ====================== THIRD PARTY ============================
	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/posener/complete/v2/install"
	"github.com/rs/zerolog"
)

const (
	ERROR_STATUS_CODE = 1
	COMMAND_NAME      = "lazyview"

	DEMO_ROW_COUNT = 10_000
	NO_DUMP        = -1
)

var (
	ErrMissingPath = errors.New("missing file path or glob pattern")
)

func main() {
	//handle completions
	cmd.Complete(COMMAND_NAME)

	statusCode := _main(os.Args, os.Stdout, os.Stderr)
	if statusCode != 0 {
		os.Exit(statusCode)
	}
}

type options struct {
	demo       bool
	counter    bool
	search     string
	configPath string
	jsonOutput bool
	dump       int
	number     bool
	path       string
}

func _main(args []string, outW io.Writer, errW io.Writer) (statusCode int) {
	if len(args) > 1 {
		switch subcommand := args[1]; {
		case subcommand == INSTALL_COMPLETIONS_SUBCMD:
			err := install.Install(COMMAND_NAME)
			if err != nil {
				fmt.Fprintln(errW, err)
				return ERROR_STATUS_CODE
			}
			fmt.Fprintln(outW, "installed")
			return
		case subcommand == UNINSTALL_COMPLETIONS_SUBCMD:
			err := install.Uninstall(COMMAND_NAME)
			if err != nil {
				fmt.Fprintln(errW, err)
				return ERROR_STATUS_CODE
			}
			fmt.Fprintln(outW, "uninstalled")
			return
		}
	}

	var opts options

	flags := flag.NewFlagSet(COMMAND_NAME, flag.ContinueOnError)
	flags.SetOutput(errW)
	flags.BoolVar(&opts.demo, "demo", false, fmt.Sprintf("display %d generated rows", DEMO_ROW_COUNT))
	flags.BoolVar(&opts.counter, "counter", false, "display an unbounded sequence of integers")
	flags.StringVar(&opts.search, "search", "", "initial search")
	flags.StringVar(&opts.configPath, "config", "", "path of the configuration file (default: $XDG_CONFIG_HOME/"+config.CONFIG_FILE_RELPATH+")")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the selected rows as a JSON array on exit")
	flags.IntVar(&opts.dump, "dump", NO_DUMP, "print the first n rows and exit")
	flags.BoolVar(&opts.number, "number", false, "prefix printed rows with their number")

	if len(args) > 1 && isHelpArg(args[1]) {
		showHelp(flags, outW)
		return
	}

	if err := flags.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		return ERROR_STATUS_CODE
	}
	opts.path = flags.Arg(0)

	if !opts.demo && !opts.counter && opts.path == "" {
		fmt.Fprintln(errW, ErrMissingPath)
		showHelp(flags, errW)
		return ERROR_STATUS_CODE
	}

	cfg, err := loadConfig(opts.configPath, errW)
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	logger, logFile, err := logs.NewLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(errW, "failed to open the log file:", err)
		return ERROR_STATUS_CODE
	}
	defer logFile.Close()

	switch {
	case opts.counter:
		return view(sources.Counter(0), nil, opts, cfg, logger, outW, errW)
	case opts.demo:
		return view(sources.Sample(DEMO_ROW_COUNT), nil, opts, cfg, logger, outW, errW)
	case sources.IsGlobPattern(opts.path):
		watch := globWatchSpec(opts.path)
		return view(sources.Glob(opts.path), watch, opts, cfg, logger, outW, errW)
	default:
		watch := viewer.FileWatchSpec(opts.path)
		return view(sources.File(opts.path), &watch, opts, cfg, logger, outW, errW)
	}
}

// loadConfig loads the configuration file at path, or the user configuration file if path is empty.
// The default configuration is used if the user configuration file cannot be created.
func loadConfig(path string, errW io.Writer) (config.Config, error) {
	if path == "" {
		var err error
		path, err = config.GetConfigFilePath()
		if err != nil {
			fmt.Fprintln(errW, "failed to get the configuration file, the default configuration is used:", err)
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func view[T any](source lazy.Source[T], watch *viewer.WatchSpec, opts options, cfg config.Config, logger zerolog.Logger, outW, errW io.Writer) int {
	loaderLogger := logs.ChildLoggerForSource(logger, "loader")

	loader := lazy.NewLoader[T](lazy.Config{
		InitialBatchSize: cfg.InitialBatchSize,
		PageSize:         cfg.PageSize,
		Logger:           &loaderLogger,
	})
	defer loader.Close()

	compiler := search.NewCompiler(search.CompilerConfig{
		CaseSensitive: cfg.CaseSensitive,
		RegexTimeout:  cfg.RegexTimeout,
	})

	if opts.dump != NO_DUMP {
		predicate, err := compiler.Compile(opts.search)
		if err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
		//the filter is only stored since no source is attached yet.
		if err := loader.SetFilter(search.ForItems(predicate, search.Display[T])); err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}

		rows, err := firstRows(loader, source, opts.dump)
		if err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
		return printRows(rows, opts, outW, errW)
	}

	if err := loader.Attach(source); err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	historyFile, err := config.GetSearchHistoryFilePath()
	if err != nil {
		logger.Warn().Err(err).Msg("search history is disabled")
		historyFile = ""
	}

	model, err := viewer.NewModel(loader, compiler, nil, viewer.Config{
		LoadMoreCount:      cfg.LoadMoreCount,
		ProximityThreshold: cfg.ProximityThreshold,
		Colorize:           config.SHOULD_COLORIZE,
		HistoryFile:        historyFile,
		Logger:             logs.ChildLoggerForSource(logger, "viewer"),
	})
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}
	defer model.Close()

	if opts.search != "" {
		model.SetSearch(opts.search)
	}

	runOpts := viewer.RunOptions{
		SearchDebounce: cfg.SearchDebounce,
	}
	if cfg.Watch {
		watcherLogger := logs.ChildLoggerForSource(logger, "watcher")
		runOpts.Watch = watch
		runOpts.WatcherLogger = &watcherLogger
	}

	if err := viewer.Run(context.Background(), model, runOpts); err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	return printRows(model.Selected(), opts, outW, errW)
}

// firstRows attaches source and loads rows until the window contains n rows or the sequence is exhausted.
func firstRows[T any](loader *lazy.Loader[T], source lazy.Source[T], n int) ([]T, error) {
	if err := loader.Attach(source); err != nil {
		return nil, err
	}

	if missing := n - loader.Window().Len(); missing > 0 {
		if _, err := loader.LoadMore(missing); err != nil {
			return nil, err
		}
	}
	return loader.Window().Range(0, n), nil
}

func printRows[T any](rows []T, opts options, outW, errW io.Writer) int {
	if opts.jsonOutput {
		if rows == nil {
			rows = []T{}
		}
		if err := json.NewEncoder(outW).Encode(rows); err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
		return 0
	}

	numberWidth := utils.CountDigits(len(rows))
	for i, row := range rows {
		if opts.number {
			fmt.Fprintf(outW, "%*d  %s\n", numberWidth, i+1, search.Display(row))
		} else {
			fmt.Fprintln(outW, search.Display(row))
		}
	}
	return 0
}

// globWatchSpec returns a WatchSpec for the directories of the files matching pattern, nil is returned
// if no file matches.
func globWatchSpec(pattern string) *viewer.WatchSpec {
	paths, err := sources.MatchingFiles(pattern)
	if err != nil {
		return nil
	}

	spec := &viewer.WatchSpec{
		Match: func(path string) bool {
			ok, _ := doublestar.PathMatch(filepath.Clean(pattern), filepath.Clean(path))
			return ok
		},
	}
	for _, path := range paths {
		spec.Dirs = append(spec.Dirs, filepath.Dir(path))
	}
	return spec
}
