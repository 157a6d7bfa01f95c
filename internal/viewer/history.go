package viewer

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

const (
	MAX_SEARCH_HISTORY_SIZE = 100
	HISTORY_FILE_PERM       = 0o600
)

type searchHistory struct {
	Searches []string `json:"searches"`
	index    int
}

func (history *searchHistory) empty() bool {
	return len(history.Searches) == 0
}

func (history searchHistory) current() string {
	return history.Searches[history.index]
}

// add appends a committed search, consecutive duplicates are ignored.
func (history *searchHistory) add(search string) {
	if search == "" {
		return
	}
	if n := len(history.Searches); n == 0 || history.Searches[n-1] != search {
		history.Searches = append(history.Searches, search)
	}
	if len(history.Searches) > MAX_SEARCH_HISTORY_SIZE {
		history.Searches = history.Searches[len(history.Searches)-MAX_SEARCH_HISTORY_SIZE:]
	}
	history.resetIndex()
}

func (history *searchHistory) scroll(n int) {
	history.index += n
	if history.index < 0 {
		history.index = len(history.Searches) - 1
	} else if history.index >= len(history.Searches) {
		history.index = 0
	}
}

func (history *searchHistory) resetIndex() {
	history.index = len(history.Searches) - 1
}

func readSearchHistory(path string) (searchHistory, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return searchHistory{index: -1}, nil
		}
		return searchHistory{}, err
	}

	var history searchHistory
	if err := json.Unmarshal(content, &history); err != nil {
		return searchHistory{}, fmt.Errorf("invalid search history file %s: %w", path, err)
	}
	history.resetIndex()
	return history, nil
}

func writeSearchHistory(path string, history searchHistory) error {
	content, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, HISTORY_FILE_PERM)
}
