// Package config reads the korpus configuration file and turns it into the
// wired components of a run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Annotator kinds.
const (
	AnnotatorHTTP    = "http"
	AnnotatorStemmer = "stemmer"
)

// Environment variables that override file settings.
const (
	EnvAnnotatorURL   = "KORPUS_ANNOTATOR_URL"
	EnvAnnotatorKey   = "KORPUS_ANNOTATOR_API_KEY"
	EnvAnnotatorModel = "KORPUS_ANNOTATOR_MODEL"
	EnvSQLitePath     = "KORPUS_SQLITE_PATH"
)

// Config is the complete run configuration.
type Config struct {
	Language  string          `yaml:"language" toml:"language"`
	Lexicon   LexiconConfig   `yaml:"lexicon" toml:"lexicon"`
	Annotator AnnotatorConfig `yaml:"annotator" toml:"annotator"`
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline"`
	Archive   ArchiveConfig   `yaml:"archive" toml:"archive"`
}

// LexiconConfig names the lexical resource files. An empty stopwords path
// selects the built-in list for the configured language.
type LexiconConfig struct {
	Stopwords       string `yaml:"stopwords" toml:"stopwords"`
	MWEDictionary   string `yaml:"mwe_dictionary" toml:"mwe_dictionary"`
	MWEReversed     string `yaml:"mwe_reversed" toml:"mwe_reversed"`
	CustomStopwords string `yaml:"custom_stopwords" toml:"custom_stopwords"`
}

// AnnotatorConfig selects and configures the lemmatizer.
type AnnotatorConfig struct {
	Kind    string `yaml:"kind" toml:"kind"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	// MaxLength is the input ceiling in characters.
	MaxLength int `yaml:"max_length" toml:"max_length"`
	// Timeout bounds one HTTP request, as a Go duration string.
	Timeout string `yaml:"timeout" toml:"timeout"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	Burst     int     `yaml:"burst" toml:"burst"`
	// CacheSize is the stem cache size of the stemmer.
	CacheSize int `yaml:"cache_size" toml:"cache_size"`
}

// PipelineConfig holds the normalization settings.
type PipelineConfig struct {
	RemoveStopwords   bool `yaml:"remove_stopwords" toml:"remove_stopwords"`
	FuseMultiwords    bool `yaml:"fuse_multiwords" toml:"fuse_multiwords"`
	RareTermThreshold int  `yaml:"rare_term_threshold" toml:"rare_term_threshold"`
	CustomStopwords   bool `yaml:"custom_stopwords" toml:"custom_stopwords"`
	ChunkWords        int  `yaml:"chunk_words" toml:"chunk_words"`
	Workers           int  `yaml:"workers" toml:"workers"`
	UnicodeNFC        bool `yaml:"unicode_nfc" toml:"unicode_nfc"`
	// AnnotateTimeout bounds one annotator call, as a Go duration string.
	AnnotateTimeout string `yaml:"annotate_timeout" toml:"annotate_timeout"`
}

// ArchiveConfig enables the SQLite archive when SQLitePath is set. Memory
// selects an in-process archive that lives as long as the Components.
type ArchiveConfig struct {
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	Memory     bool   `yaml:"memory" toml:"memory"`
}

// Defaults returns the settings of a standard German run.
func Defaults() *Config {
	return &Config{
		Language: "de",
		Annotator: AnnotatorConfig{
			Kind:      AnnotatorHTTP,
			Model:     "de_core_news_sm",
			MaxLength: 9_131_400,
			Timeout:   "5m",
		},
		Pipeline: PipelineConfig{
			RemoveStopwords:   true,
			FuseMultiwords:    true,
			RareTermThreshold: 3,
			CustomStopwords:   true,
			ChunkWords:        1000,
			Workers:           1,
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml and .yml are YAML, .toml is TOML. An empty path returns the
// defaults. Environment overrides are applied last. The result is not
// validated; Loader.Load does that before building components.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		default:
			return nil, fmt.Errorf("config %s: unknown format: %w", path, internalerr.ErrInvalidConfig)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w: %w", path, internalerr.ErrInvalidConfig, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides endpoint, credentials and archive path from KORPUS_*
// variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAnnotatorURL); v != "" {
		c.Annotator.BaseURL = v
	}
	if v := os.Getenv(EnvAnnotatorKey); v != "" {
		c.Annotator.APIKey = v
	}
	if v := os.Getenv(EnvAnnotatorModel); v != "" {
		c.Annotator.Model = v
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		c.Archive.SQLitePath = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), internalerr.ErrInvalidConfig)
	}
	if c.Language == "" {
		return invalid("language is empty")
	}
	switch c.Annotator.Kind {
	case AnnotatorHTTP:
		if c.Annotator.BaseURL == "" {
			return invalid("annotator base_url is empty (set %s)", EnvAnnotatorURL)
		}
		if c.Annotator.Model == "" {
			return invalid("annotator model is empty")
		}
	case AnnotatorStemmer:
	default:
		return invalid("annotator kind %q", c.Annotator.Kind)
	}
	if c.Annotator.MaxLength < 0 {
		return invalid("annotator max_length %d", c.Annotator.MaxLength)
	}
	if c.Annotator.RateLimit < 0 {
		return invalid("annotator rate_limit %v", c.Annotator.RateLimit)
	}
	if _, err := c.AnnotatorTimeout(); err != nil {
		return invalid("annotator timeout %q", c.Annotator.Timeout)
	}
	if _, err := c.AnnotateTimeout(); err != nil {
		return invalid("pipeline annotate_timeout %q", c.Pipeline.AnnotateTimeout)
	}
	if c.Pipeline.RareTermThreshold < 0 {
		return invalid("rare_term_threshold %d", c.Pipeline.RareTermThreshold)
	}
	if c.Pipeline.ChunkWords < 0 {
		return invalid("chunk_words %d", c.Pipeline.ChunkWords)
	}
	if c.Pipeline.CustomStopwords && c.Lexicon.CustomStopwords == "" {
		return invalid("custom_stopwords enabled without lexicon.custom_stopwords")
	}
	if c.Archive.Memory && c.Archive.SQLitePath != "" {
		return invalid("archive memory and sqlite_path are exclusive")
	}
	if (c.Lexicon.MWEDictionary == "") != (c.Lexicon.MWEReversed == "") {
		return invalid("lexicon mwe_dictionary and mwe_reversed must be set together")
	}
	return nil
}

// AnnotatorTimeout parses Annotator.Timeout. Empty means zero.
func (c *Config) AnnotatorTimeout() (time.Duration, error) {
	return parseDuration(c.Annotator.Timeout)
}

// AnnotateTimeout parses Pipeline.AnnotateTimeout. Empty means zero.
func (c *Config) AnnotateTimeout() (time.Duration, error) {
	return parseDuration(c.Pipeline.AnnotateTimeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
