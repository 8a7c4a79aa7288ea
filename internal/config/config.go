package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/texprefilter/internal/filter"
	"github.com/spf13/viper"
)

// Config holds the settings shared by the filter, convert and serve modes.
//
// Environment conversions and inline math literals are lists of FROM=TO
// pairs rather than maps: viper lowercases map keys and both are case
// sensitive (\Cref is not \cref).
type Config struct {
	// Pandoc
	PandocPath    string        `mapstructure:"pandoc_path"`
	PandocArgs    []string      `mapstructure:"pandoc_args"`
	PandocTimeout time.Duration `mapstructure:"pandoc_timeout"`
	SourceFormat  string        `mapstructure:"source_format"`
	ToFormat      string        `mapstructure:"to_format"`

	// Filter
	MaxDepth        int      `mapstructure:"max_depth"`
	PreservedTeX    []string `mapstructure:"preserved_tex"`
	InlineMath      []string `mapstructure:"inline_math"`
	EnvConversions  []string `mapstructure:"env_conversions"`
	FigureDirs      []string `mapstructure:"figure_dirs"`
	FigureExt       string   `mapstructure:"figure_ext"`
	AnchorRawFormat string   `mapstructure:"anchor_raw_format"`

	LogLevel string `mapstructure:"log_level"`

	// Server
	Port           string `mapstructure:"port"`
	APIKey         string `mapstructure:"api_key"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`

	// Worker pool
	WorkerCount  int `mapstructure:"worker_count"`
	MaxQueueSize int `mapstructure:"max_queue_size"`

	// Job state
	JobTTL time.Duration `mapstructure:"job_ttl"`
}

// New returns a viper instance that looks for texprefilter.yaml in
// ~/.config/texprefilter, the home directory and the working directory, and
// reads TEXPREFILTER_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("texprefilter")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "texprefilter"))
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("TEXPREFILTER")
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pandoc_path", "pandoc")
	v.SetDefault("pandoc_args", []string{})
	v.SetDefault("pandoc_timeout", 2*time.Minute)
	v.SetDefault("source_format", "latex")
	v.SetDefault("to_format", "markdown")

	v.SetDefault("max_depth", filter.DefaultMaxDepth)
	v.SetDefault("preserved_tex", filter.DefaultPreservedTeX)
	v.SetDefault("inline_math", []string{})
	v.SetDefault("env_conversions", []string{"Exa=example"})
	v.SetDefault("figure_dirs", []string{})
	v.SetDefault("figure_ext", "")
	v.SetDefault("anchor_raw_format", "")

	v.SetDefault("log_level", "info")

	v.SetDefault("port", "8090")
	v.SetDefault("api_key", "")
	v.SetDefault("max_upload_bytes", 52428800) // 50MB

	v.SetDefault("worker_count", 4)
	v.SetDefault("max_queue_size", 100)
	v.SetDefault("job_ttl", 1*time.Hour)
}

// Load reads the configuration from v. A missing config file is not an
// error; a malformed one is.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max_queue_size must be positive, got %d", c.MaxQueueSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.SourceFormat == "" {
		return fmt.Errorf("source_format is required")
	}
	if _, err := pairs("env_conversions", c.EnvConversions); err != nil {
		return err
	}
	if _, err := pairs("inline_math", c.InlineMath); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// FilterConfig builds the filter configuration a run starts from.
func (c Config) FilterConfig() (filter.Config, error) {
	conversions, err := pairs("env_conversions", c.EnvConversions)
	if err != nil {
		return filter.Config{}, err
	}
	inline, err := pairs("inline_math", c.InlineMath)
	if err != nil {
		return filter.Config{}, err
	}
	return filter.Config{
		SourceFormat:    c.SourceFormat,
		MaxDepth:        c.MaxDepth,
		PreservedTeX:    append([]string(nil), c.PreservedTeX...),
		InlineMath:      inline,
		EnvConversions:  conversions,
		FigureDirs:      append([]string(nil), c.FigureDirs...),
		FigureExt:       c.FigureExt,
		AnchorRawFormat: c.AnchorRawFormat,
	}, nil
}

// pairs splits FROM=TO entries into a map.
func pairs(key string, entries []string) (map[string]string, error) {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		from, to, ok := strings.Cut(strings.TrimSpace(e), "=")
		if !ok || from == "" {
			return nil, fmt.Errorf("%s: entry %q is not FROM=TO", key, e)
		}
		m[from] = to
	}
	return m, nil
}
