package config

import (
	"fmt"
	"os"
	"path"

	"github.com/BurntSushi/toml"
)

const (
	baseCfgPath = "rssreader/config.toml"
	baseDBPath  = "rssreader/feeds.db"
)

type Config struct {
	DatabasePath string            `toml:"database_path"`
	Fetch        Fetch             `toml:"fetch"`
	Log          Log               `toml:"log"`
	Filters      map[string]Filter `toml:"filters"`       // Named filters that can be referenced by apply_filters
	ApplyFilters []string          `toml:"apply_filters"` // Filters applied to selected items, in order
}

// Fetch configures the network collaborator
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"` // 0 = fetcher default
	UserAgent      string `toml:"user_agent"`
}

// Log configures the optional rotated log file. Console logging is always on.
type Log struct {
	File       string `toml:"file"`        // Empty = stderr only
	MaxSize    int    `toml:"max_size"`    // MB
	MaxBackups int    `toml:"max_backups"` // Rotated files to keep
	MaxAge     int    `toml:"max_age"`     // Days
}

// Filter defines rules for filtering feed items
type Filter struct {
	MinLength       int      `toml:"min_length"`       // Minimum character count (0 = no limit)
	MinWords        int      `toml:"min_words"`        // Minimum word count (0 = no limit)
	ExcludePatterns []string `toml:"exclude_patterns"` // Regex patterns to exclude
	RequireDate     bool     `toml:"require_date"`     // Drop items without a publication date
}

// Validate checks references between config sections
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	for _, name := range c.ApplyFilters {
		if _, ok := c.Filters[name]; !ok {
			return fmt.Errorf("apply_filters references unknown filter '%s'", name)
		}
	}
	return nil
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s with %w", path, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	return nil
}

func Default() Config {
	return Config{
		DatabasePath: DefaultDatabasePath(),
		Fetch: Fetch{
			TimeoutSeconds: 20,
			UserAgent:      "rssreader/1.0",
		},
		Log: Log{
			MaxSize:    16,
			MaxBackups: 3,
			MaxAge:     14,
		},
		Filters: map[string]Filter{},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	return "config.toml"
}

// DefaultDatabasePath returns the XDG data location of the feed store
func DefaultDatabasePath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return path.Join(dataHome, baseDBPath)
	}
	if home := os.Getenv("HOME"); home != "" {
		return path.Join(home, ".local/share", baseDBPath)
	}
	return "feeds.db"
}
