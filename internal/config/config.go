package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v3"

	"eventcal/internal/model"
	"eventcal/internal/source"
)

// FileName is the optional build configuration inside the input directory.
const FileName = "build.yaml"

// WindowConfig sets the generation window relative to the build date.
type WindowConfig struct {
	// PastDays keeps occurrences that started up to this many days ago.
	PastDays int `yaml:"past_days"`
	// HorizonDays is the number of future days to generate.
	HorizonDays int `yaml:"horizon_days"`
}

// Config is the build configuration.
type Config struct {
	// DefaultLanguage is the language whose fields are inlined in the output
	// and which is always supported, e.g. "en".
	DefaultLanguage string `yaml:"default_language"`

	Window WindowConfig `yaml:"window"`

	// PosterExtensions is the poster lookup order, without dots.
	PosterExtensions []string `yaml:"poster_extensions"`

	// StrictPosters turns more than one poster candidate for an event into an
	// error. When false the first candidate in lookup order is used and a
	// warning is printed.
	StrictPosters *bool `yaml:"strict_posters,omitempty"`

	// Workers bounds how many events are compiled concurrently. Zero means
	// one per CPU.
	Workers int `yaml:"workers"`

	// ICS enables the per-language iCalendar feeds.
	ICS *bool `yaml:"ics,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultLanguage:  "en",
		Window:           WindowConfig{PastDays: 0, HorizonDays: 365},
		PosterExtensions: append([]string(nil), source.DefaultPosterExtensions...),
		StrictPosters:    boolPtr(true),
		Workers:          runtime.NumCPU(),
		ICS:              boolPtr(true),
		LogLevel:         "info",
	}
}

// Normalize fills in missing/zero values with defaults so a partial file
// behaves like the defaults for everything it does not mention.
func (c *Config) Normalize() {
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if c.Window.PastDays < 0 {
		c.Window.PastDays = 0
	}
	if c.Window.HorizonDays <= 0 {
		c.Window.HorizonDays = 365
	}
	exts := make([]string, 0, len(c.PosterExtensions))
	for _, e := range c.PosterExtensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts = append(exts, e)
		}
	}
	if len(exts) == 0 {
		exts = append(exts, source.DefaultPosterExtensions...)
	}
	c.PosterExtensions = exts
	if c.StrictPosters == nil {
		c.StrictPosters = boolPtr(true)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.ICS == nil {
		c.ICS = boolPtr(true)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := model.ParseLanguage(c.DefaultLanguage); err != nil {
		return fmt.Errorf("config: default_language: %w", err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: log_level: unknown level %q", c.LogLevel)
	}
	return nil
}

// WindowFor returns the generation window for a build on today.
func (c *Config) WindowFor(today model.Date) model.Window {
	return model.Window{
		Start: today.AddDays(-c.Window.PastDays),
		End:   today.AddDays(c.Window.HorizonDays),
	}
}

// Load loads the build configuration from name inside fs.
//
// Behavior:
//   - If the file does not exist, the defaults are returned. Nothing is
//     written to the input directory.
//   - If the file exists it is decoded strictly (unknown keys are errors),
//     normalized and validated.
func Load(fs billy.Filesystem, name string) (*Config, error) {
	if name == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := source.ReadFile(fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// Decode parses, normalizes and validates a YAML configuration.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
