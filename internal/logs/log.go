// Package logs configures zerolog for lazyview: logs are written as JSON lines to the log file set in the
// configuration, nothing is logged if no file is set since the terminal is used by the viewer.
package logs

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	SOURCE_LOG_FIELD_NAME = "src"
	LOG_FILE_PERM         = 0o600
	LOG_DIR_PERM          = 0o700
)

func init() {
	zerolog.DurationFieldInteger = false
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.MessageFieldName = "msg"
	zerolog.LevelFieldName = "lvl"
	zerolog.TimestampFieldName = "tm"
}

// NewLogger returns a logger appending to the file at path, the returned closer closes the file.
// A disabled logger is returned if path is empty.
func NewLogger(path string, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), LOG_DIR_PERM); err != nil {
		return zerolog.Nop(), nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, LOG_FILE_PERM)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	return NewWriterLogger(f, level), f, nil
}

func NewWriterLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ChildLoggerForSource returns a copy of logger whose records have a src field set to src.
func ChildLoggerForSource(logger zerolog.Logger, src string) zerolog.Logger {
	return logger.With().Str(SOURCE_LOG_FIELD_NAME, src).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}
