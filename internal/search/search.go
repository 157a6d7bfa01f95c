package search

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/inoxlang/lazyview/internal/lazy"
	"github.com/tidwall/gjson"
	"github.com/tidwall/match"
	"github.com/tidwall/tinylru"
)

const (
	NEGATION_PREFIX         = "!"
	CASE_INSENSITIVE_PREFIX = "i:"
	GLOB_PREFIX             = "glob:"
	REGEX_PREFIX            = "re:"
	JSON_PREFIX             = "json:"

	DEFAULT_REGEX_TIMEOUT = 100 * time.Millisecond
	DEFAULT_CACHE_SIZE    = 64
)

var (
	ErrEmptyPattern     = errors.New("empty pattern")
	ErrInvalidJSONQuery = errors.New("invalid JSON query")
)

type CompilerConfig struct {
	//if false plain text searches ignore case.
	CaseSensitive bool

	//maximum duration of a single regex match, a match exceeding it makes the predicate fail.
	//Defaults to DEFAULT_REGEX_TIMEOUT.
	RegexTimeout time.Duration

	//number of compiled predicates kept, defaults to DEFAULT_CACHE_SIZE.
	CacheSize int
}

// A Compiler turns search text into predicates over lines. The supported syntaxes are:
//
//   - plain text: substring containment.
//   - i:<text>: case-insensitive substring containment.
//   - glob:<pattern>: the whole line matches the wildcard pattern ('*' and '?').
//   - re:<expr>: the line matches the regular expression.
//   - json:<path>, json:<path>=<value>, json:<path>~<text>: the line is a JSON document whose field
//     exists, is equal to the value or contains the text.
//
// Any search prefixed with '!' is negated. The empty text compiles to a nil predicate (no filtering).
// A Compiler is not thread safe.
type Compiler struct {
	config CompilerConfig
	cache  tinylru.LRU
}

func NewCompiler(config CompilerConfig) *Compiler {
	if config.RegexTimeout <= 0 {
		config.RegexTimeout = DEFAULT_REGEX_TIMEOUT
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DEFAULT_CACHE_SIZE
	}

	c := &Compiler{config: config}
	c.cache.Resize(config.CacheSize)
	return c
}

// Compile returns the predicate corresponding to text, compiled predicates are cached.
func (c *Compiler) Compile(text string) (lazy.Predicate[string], error) {
	if text == "" {
		return nil, nil
	}

	if cached, ok := c.cache.Get(text); ok {
		return cached.(lazy.Predicate[string]), nil
	}

	predicate, err := c.compile(text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, predicate)
	return predicate, nil
}

func (c *Compiler) compile(text string) (lazy.Predicate[string], error) {
	if rest, ok := strings.CutPrefix(text, NEGATION_PREFIX); ok {
		if rest == "" {
			//a single '!' is searched literally.
			return c.contains(text, c.config.CaseSensitive), nil
		}
		predicate, err := c.compile(rest)
		if err != nil {
			return nil, err
		}
		return Not(predicate), nil
	}

	switch {
	case strings.HasPrefix(text, CASE_INSENSITIVE_PREFIX):
		return c.contains(text[len(CASE_INSENSITIVE_PREFIX):], false), nil
	case strings.HasPrefix(text, GLOB_PREFIX):
		return Glob(text[len(GLOB_PREFIX):])
	case strings.HasPrefix(text, REGEX_PREFIX):
		return Regex(text[len(REGEX_PREFIX):], c.config.RegexTimeout)
	case strings.HasPrefix(text, JSON_PREFIX):
		return JSONQuery(text[len(JSON_PREFIX):])
	default:
		return c.contains(text, c.config.CaseSensitive), nil
	}
}

func (c *Compiler) contains(substring string, caseSensitive bool) lazy.Predicate[string] {
	if caseSensitive {
		return Contains(substring)
	}
	return ContainsFold(substring)
}

// Contains returns a predicate testing case-sensitive substring containment.
func Contains(substring string) lazy.Predicate[string] {
	return lazy.Match(func(line string) bool {
		return strings.Contains(line, substring)
	})
}

// ContainsFold returns a predicate testing case-insensitive substring containment.
func ContainsFold(substring string) lazy.Predicate[string] {
	lowered := strings.ToLower(substring)
	return lazy.Match(func(line string) bool {
		return strings.Contains(strings.ToLower(line), lowered)
	})
}

// Glob returns a predicate testing that the whole line matches pattern, '*' matches any sequence of characters and
// '?' a single character.
func Glob(pattern string) (lazy.Predicate[string], error) {
	if pattern == "" {
		return nil, fmt.Errorf("glob: %w", ErrEmptyPattern)
	}
	return lazy.Match(func(line string) bool {
		return match.Match(line, pattern)
	}), nil
}

// Regex returns a predicate testing that the line matches the regular expression, a match taking more
// than timeout makes the predicate return an error.
func Regex(expr string, timeout time.Duration) (lazy.Predicate[string], error) {
	if expr == "" {
		return nil, fmt.Errorf("regex: %w", ErrEmptyPattern)
	}

	regex, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("regex: %w", err)
	}
	regex.MatchTimeout = timeout

	return func(line string) (bool, error) {
		return regex.MatchString(line)
	}, nil
}

// JSONQuery returns a predicate over JSON lines, query has one of the following shapes:
// <path> (the field exists), <path>=<value> (the field's string representation is equal to value),
// <path>~<text> (the field's string representation contains text). Paths use the gjson syntax.
// Lines that are not valid JSON never match.
func JSONQuery(query string) (lazy.Predicate[string], error) {
	path, operator, operand := query, byte(0), ""

	if i := strings.IndexAny(query, "=~"); i >= 0 {
		path, operator, operand = query[:i], query[i], query[i+1:]
	}

	if path == "" {
		return nil, fmt.Errorf("%w: missing path in %q", ErrInvalidJSONQuery, query)
	}

	return lazy.Match(func(line string) bool {
		if !gjson.Valid(line) {
			return false
		}

		result := gjson.Get(line, path)
		if !result.Exists() {
			return false
		}

		switch operator {
		case '=':
			return result.String() == operand
		case '~':
			return strings.Contains(result.String(), operand)
		default:
			return true
		}
	}), nil
}

// Not negates predicate, errors are returned unchanged.
func Not[T any](predicate lazy.Predicate[T]) lazy.Predicate[T] {
	if predicate == nil {
		return func(T) (bool, error) {
			return false, nil
		}
	}
	return func(item T) (bool, error) {
		ok, err := predicate(item)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// ForItems lifts a line predicate to items of any type, text returns the display text of an item.
func ForItems[T any](predicate lazy.Predicate[string], text func(item T) string) lazy.Predicate[T] {
	if predicate == nil {
		return nil
	}
	return func(item T) (bool, error) {
		return predicate(text(item))
	}
}

// Display returns the default display text of an item.
func Display[T any](item T) string {
	return fmt.Sprint(item)
}
