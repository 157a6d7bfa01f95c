// Package sources provides repeatable lazy sequences: every iteration of a source starts over, file-backed
// sources open their files when an iteration starts and close them when it ends or is stopped.
package sources

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/inoxlang/lazyview/internal/lazy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/maruel/natural"
)

const (
	SAMPLE_LINE_PREFIX = "Test abcdefghjkl "

	//maximum length of a line, longer lines make the iteration fail with bufio.ErrTooLong.
	MAX_LINE_LENGTH = 1 << 20
)

var (
	GZIP_MAGIC = []byte{0x1f, 0x8b}
	ZSTD_MAGIC = []byte{0x28, 0xb5, 0x2f, 0xfd}

	ErrNoMatchingFiles = errors.New("no matching files")
)

// Counter returns an unbounded source of consecutive integers starting at start.
func Counter(start int) lazy.Source[int] {
	return func(yield func(int, error) bool) {
		for i := start; ; i++ {
			if !yield(i, nil) {
				return
			}
		}
	}
}

// Sample returns n generated lines, it is used as demo data.
func Sample(n int) lazy.Source[string] {
	return func(yield func(string, error) bool) {
		for i := range n {
			if !yield(fmt.Sprint(SAMPLE_LINE_PREFIX, i), nil) {
				return
			}
		}
	}
}

// Lines returns a source yielding the lines of the reader returned by open, without their line terminator
// ("\n" or "\r\n"). open is called at the start of each iteration and the reader is closed at the end.
func Lines(open func() (io.ReadCloser, error)) lazy.Source[string] {
	return func(yield func(string, error) bool) {
		reader, err := open()
		if err != nil {
			yield("", err)
			return
		}
		defer reader.Close()

		yieldLines(reader, yield)
	}
}

// yieldLines yields the lines of reader, it returns false if the iteration has been stopped by the consumer.
func yieldLines(reader io.Reader, yield func(string, error) bool) bool {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(nil, MAX_LINE_LENGTH)

	for scanner.Scan() {
		if !yield(scanner.Text(), nil) {
			return false
		}
	}

	if err := scanner.Err(); err != nil {
		yield("", err)
		return false
	}
	return true
}

// File returns a source yielding the lines of the file at path, gzip and zstd files are
// transparently decompressed.
func File(path string) lazy.Source[string] {
	return Lines(func() (io.ReadCloser, error) {
		return OpenFile(path)
	})
}

// OpenFile opens the file at path and returns a reader of its decompressed content.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader, err := Decompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reader, nil
}

// Decompress detects the compression format of the content of r from its magic bytes and returns a reader of
// the decompressed content, closing the returned reader closes r. Uncompressed content is returned as is.
func Decompress(r io.ReadCloser) (io.ReadCloser, error) {
	buffered := bufio.NewReader(r)
	header, err := buffered.Peek(len(ZSTD_MAGIC))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(header, GZIP_MAGIC):
		gzipReader, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: gzipReader, close: func() error {
			return errors.Join(gzipReader.Close(), r.Close())
		}}, nil
	case bytes.HasPrefix(header, ZSTD_MAGIC):
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: decoder, close: func() error {
			decoder.Close()
			return r.Close()
		}}, nil
	default:
		return &readCloser{Reader: buffered, close: r.Close}, nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error {
	return r.close()
}

// Glob returns a source yielding the lines of all files matching pattern (doublestar syntax: '**' matches
// any number of directories). The files are visited in natural order (app.2.log before app.10.log) and the
// pattern is expanded at the start of each iteration. An iteration fails with ErrNoMatchingFiles if no file matches.
func Glob(pattern string) lazy.Source[string] {
	return func(yield func(string, error) bool) {
		paths, err := MatchingFiles(pattern)
		if err != nil {
			yield("", err)
			return
		}

		for _, path := range paths {
			reader, err := OpenFile(path)
			if err != nil {
				yield("", err)
				return
			}

			more := yieldLines(reader, yield)
			reader.Close()
			if !more {
				return
			}
		}
	}
}

// MatchingFiles returns the regular files matching pattern in natural order.
func MatchingFiles(pattern string) ([]string, error) {
	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingFiles, pattern)
	}

	slices.SortFunc(paths, func(a, b string) int {
		a, b = filepath.ToSlash(a), filepath.ToSlash(b)
		switch {
		case a == b:
			return 0
		case natural.Less(a, b):
			return -1
		default:
			return 1
		}
	})
	return paths, nil
}

// IsGlobPattern returns true if s contains glob meta characters.
func IsGlobPattern(s string) bool {
	return doublestar.ValidatePathPattern(s) && strings.ContainsAny(s, "*?[{")
}
