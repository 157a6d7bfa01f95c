package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"

	_ "embed"
)

const (
	APP_NAME = "lazyview"

	CONFIG_FILE_NAME    = "config.yaml"
	CONFIG_FILE_RELPATH = APP_NAME + "/" + CONFIG_FILE_NAME
	CONFIG_FILE_PERM    = 0o600

	SEARCH_HISTORY_FILE_RELPATH = APP_NAME + "/search_history.json"
)

var (
	//go:embed default_config.yaml
	DEFAULT_CONFIG_FILE_CONTENT []byte

	FORCE_COLOR           bool
	TRUECOLOR_COLORTERM   bool
	TERM_256COLOR_CAPABLE bool
	NO_COLOR              bool
	SHOULD_COLORIZE       bool

	ErrInvalidConfig = errors.New("invalid configuration")
)

func init() {
	targetSpecificInit()
}

// Config is the content of the configuration file, durations are kept as strings in the file and
// parsed by Load.
type Config struct {
	InitialBatchSize   int    `yaml:"initial-batch-size"`
	PageSize           int    `yaml:"page-size"`
	LoadMoreCount      int    `yaml:"load-more-count"`
	ProximityThreshold int    `yaml:"proximity-threshold"`
	RawSearchDebounce  string `yaml:"search-debounce"`
	RawRegexTimeout    string `yaml:"regex-timeout"`
	CaseSensitive      bool   `yaml:"case-sensitive"`
	Watch              bool   `yaml:"watch"`
	LogFile            string `yaml:"log-file"`
	RawLogLevel        string `yaml:"log-level"`

	SearchDebounce time.Duration `yaml:"-"`
	RegexTimeout   time.Duration `yaml:"-"`
	LogLevel       zerolog.Level `yaml:"-"`
}

// Default returns the configuration described by the embedded default configuration file.
func Default() Config {
	config, err := parse(Config{}, DEFAULT_CONFIG_FILE_CONTENT)
	if err != nil {
		panic(fmt.Errorf("invalid default configuration: %w", err))
	}
	return config
}

// GetConfigFilePath searches for the configuration file, creates it if it does not exist and returns its path.
func GetConfigFilePath() (string, error) {

	path, err := xdg.SearchConfigFile(CONFIG_FILE_RELPATH)
	if err != nil {
		path, err = xdg.ConfigFile(CONFIG_FILE_RELPATH)
		if err != nil {
			return "", err
		}

		if err := os.WriteFile(path, DEFAULT_CONFIG_FILE_CONTENT, CONFIG_FILE_PERM); err != nil {
			return "", err
		}
	}

	return path, nil
}

// GetSearchHistoryFilePath returns the path of the file where committed searches are persisted, the
// parent directory is created if necessary.
func GetSearchHistoryFilePath() (string, error) {
	return xdg.StateFile(SEARCH_HISTORY_FILE_RELPATH)
}

// Load reads the configuration file at path, keys absent from the file keep their default value.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	config, err := Parse(content)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return config, nil
}

// Parse parses the content of a configuration file, keys absent from content keep their default value.
func Parse(content []byte) (Config, error) {
	return parse(Default(), content)
}

func parse(config Config, content []byte) (Config, error) {
	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := config.finalize(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) finalize() error {
	var err error

	c.SearchDebounce, err = parseDuration("search-debounce", c.RawSearchDebounce)
	if err != nil {
		return err
	}

	c.RegexTimeout, err = parseDuration("regex-timeout", c.RawRegexTimeout)
	if err != nil {
		return err
	}

	c.LogLevel = zerolog.InfoLevel
	if c.RawLogLevel != "" {
		c.LogLevel, err = zerolog.ParseLevel(c.RawLogLevel)
		if err != nil {
			return fmt.Errorf("%w: log-level: %w", ErrInvalidConfig, err)
		}
	}

	if c.ProximityThreshold < 0 {
		c.ProximityThreshold = 0
	}
	return nil
}

func parseDuration(key string, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s should not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}
