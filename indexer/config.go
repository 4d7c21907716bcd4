// Package indexer orchestrates the entity graph: initial scanning, live
// file watching, mutation dispatch, and notification ingestion.
package indexer

import (
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gridnote/indexer/parser"
	"gopkg.in/yaml.v3"
)

// DialectConfig is the YAML-friendly form of parser.Dialect: lexical
// characters are single-character strings.
type DialectConfig struct {
	Delimiter string `yaml:"delimiter"`
	Quote     string `yaml:"quote"`
	Escape    string `yaml:"escape"`
	Header    bool   `yaml:"header"`
}

// Dialect converts the config into a parser.Dialect.
func (c DialectConfig) Dialect() parser.Dialect {
	d := parser.Dialect{Header: c.Header}
	if c.Delimiter != "" {
		d.Delimiter = []rune(c.Delimiter)[0]
	}
	if c.Quote != "" {
		d.Quote = []rune(c.Quote)[0]
	}
	if c.Escape != "" {
		d.Escape = []rune(c.Escape)[0]
	}
	return d
}

// Config configures the indexer service.
type Config struct {
	// Roots are the workspace directories to scan and watch.
	Roots []string `yaml:"roots"`

	// Extensions limits indexing to the listed file extensions.
	Extensions []string `yaml:"extensions"`

	// Excludes are doublestar glob patterns matched against paths
	// relative to their root; matches are skipped.
	Excludes []string `yaml:"excludes"`

	// Tabular is the workspace tabular dialect.
	Tabular DialectConfig `yaml:"tabular"`

	// Schema configures row identity and column declarations.
	Schema parser.Schema `yaml:"schema"`

	// Typing enables scalar coercion during tabular parsing.
	Typing bool `yaml:"typing"`

	// DebounceDelay is how long the watcher waits for further changes
	// before processing, e.g. "500ms".
	DebounceDelay string `yaml:"debounce_delay"`

	// StatusEntityID names the configuration entity holding canonical
	// status options for the derived status view.
	StatusEntityID string `yaml:"status_entity_id"`

	// ResolveTimeout bounds how long derived views wait for a not-yet-
	// indexed configuration entity.
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`

	// SanitizeHeader optionally overrides the default header sanitizer.
	SanitizeHeader func(string) string `yaml:"-"`

	// OnRow is an optional per-row observation callback.
	OnRow func(index int, props map[string]any) `yaml:"-"`
}

// DefaultConfig returns a config with sensible defaults: current directory,
// the standard extensions, comma dialect with header row, loose nulls.
func DefaultConfig() *Config {
	return &Config{
		Roots:      []string{"."},
		Extensions: []string{".csv", ".tsv", ".md", ".json", ".yaml", ".yml"},
		Excludes:   []string{"**/.git/**", "**/node_modules/**", "**/vendor/**"},
		Tabular: DialectConfig{
			Delimiter: ",",
			Quote:     `"`,
			Header:    true,
		},
		Schema: parser.Schema{
			NullPolicy: parser.NullLoose,
		},
		DebounceDelay:  "500ms",
		ResolveTimeout: 5 * time.Second,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("at least one watch root is required")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one file extension is required")
	}
	if c.DebounceDelay != "" {
		if _, err := time.ParseDuration(c.DebounceDelay); err != nil {
			return fmt.Errorf("invalid debounce_delay: %w", err)
		}
	}
	switch c.Schema.ID.From {
	case "", parser.IDFromColumn, parser.IDFromTemplate:
	default:
		return fmt.Errorf("invalid schema.id.from: %q", c.Schema.ID.From)
	}
	switch c.Schema.NullPolicy {
	case "", parser.NullStrict, parser.NullLoose:
	default:
		return fmt.Errorf("invalid schema.null_policy: %q", c.Schema.NullPolicy)
	}
	return nil
}

// debounce returns the parsed debounce delay.
func (c *Config) debounce() time.Duration {
	if c.DebounceDelay == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// matchesAny reports whether a slash-separated relative path matches any
// of the doublestar patterns.
func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// parserOptions builds parser.Options from the config hooks.
func (c *Config) parserOptions() parser.Options {
	return parser.Options{
		Typing:         c.Typing,
		SanitizeHeader: c.SanitizeHeader,
		OnRow:          c.OnRow,
	}
}
