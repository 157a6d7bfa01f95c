package viewer

import (
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchSpec describes the files whose modification makes the viewer reload its source. Directories are watched
// rather than files so that rotated and recreated files are still observed.
type WatchSpec struct {
	Dirs []string

	//reports whether a modified path is one of the watched files.
	Match func(path string) bool
}

// FileWatchSpec returns a WatchSpec for a single file.
func FileWatchSpec(path string) WatchSpec {
	path = filepath.Clean(path)
	return WatchSpec{
		Dirs: []string{filepath.Dir(path)},
		Match: func(p string) bool {
			return filepath.Clean(p) == path
		},
	}
}

type fileWatcher struct {
	*fsnotify.Watcher
	spec   WatchSpec
	logger zerolog.Logger
}

func newFileWatcher(spec WatchSpec, logger zerolog.Logger) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := slices.Clone(spec.Dirs)
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	return &fileWatcher{Watcher: watcher, spec: spec, logger: logger}, nil
}

// listenForEvents calls onChange for every write, creation, removal or renaming of a matching file,
// it returns when the watcher is closed.
func (watcher *fileWatcher) listenForEvents(onChange func()) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if watcher.spec.Match != nil && !watcher.spec.Match(event.Name) {
				continue
			}

			watcher.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("file changed")
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			watcher.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
