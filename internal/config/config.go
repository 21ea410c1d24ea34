package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/logkeep/internal/archive"
	"github.com/ehrlich-b/logkeep/internal/logstore"
	"github.com/ehrlich-b/logkeep/internal/metacodec"
)

// ErrNoConfig is returned when no config file is found.
var ErrNoConfig = errors.New("no logkeep config file found")

// Config is the parsed logkeep configuration.
type Config struct {
	// Path is the SQLite file. Default: logstore.DefaultPath().
	Path string `yaml:"path" toml:"path" json:"path"`

	// Filter is the least severe level persisted. Default: warning.
	Filter string `yaml:"filter" toml:"filter" json:"filter"`

	// Echo copies accepted entries to stderr.
	Echo bool `yaml:"echo" toml:"echo" json:"echo"`

	Prune    Prune    `yaml:"prune" toml:"prune" json:"prune"`
	Metadata Metadata `yaml:"metadata" toml:"metadata" json:"metadata"`
	Archive  Archive  `yaml:"archive" toml:"archive" json:"archive"`

	// archiveDirDefaulted records that Archive.Dir was derived from Path.
	archiveDirDefaulted bool
}

// Prune configures retention.
type Prune struct {
	// LimitDays is the retention window. Unset means 7; zero keeps nothing.
	LimitDays *float64 `yaml:"limit_days" toml:"limit_days" json:"limit_days"`

	// Frequency is the minimum interval between prune passes. Unset means
	// 1h; zero checks on every operation.
	Frequency *Duration `yaml:"frequency" toml:"frequency" json:"frequency"`
}

// Metadata configures how entry metadata is encoded.
type Metadata struct {
	// Secret enables AES-GCM sealing of metadata when set.
	Secret string `yaml:"secret" toml:"secret" json:"secret"`
}

// Archive configures export destinations.
type Archive struct {
	Dir string `yaml:"dir" toml:"dir" json:"dir"`
	R2  *R2    `yaml:"r2" toml:"r2" json:"r2"`
}

// R2 holds Cloudflare R2 credentials.
type R2 struct {
	AccountID       string `yaml:"account_id" toml:"account_id" json:"account_id"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key" json:"secret_access_key"`
	Bucket          string `yaml:"bucket" toml:"bucket" json:"bucket"`
}

// Duration wraps time.Duration for custom parsing.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(dur)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

var candidates = []string{
	".logkeep.yaml",
	".logkeep.yml",
	".logkeep.toml",
	".logkeep.json",
	"logkeep.yaml",
	"logkeep.yml",
	"logkeep.toml",
	"logkeep.json",
}

// Load finds and parses a logkeep config file from the given directory.
func Load(dir string) (*Config, string, error) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue // File doesn't exist, try next
		}
		cfg, err := LoadFile(path)
		return cfg, name, err
	}
	return nil, "", ErrNoConfig
}

// LoadFile parses the config at path, choosing the format by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	var cfg Config
	if err := parser(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return finish(&cfg, name)
}

// Default returns the configuration used when no file exists: defaults plus
// environment overrides.
func Default() (*Config, error) {
	return finish(&Config{}, "environment")
}

func finish(cfg *Config, source string) (*Config, error) {
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", source, err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return cfg, nil
}

func parserFor(path string) (func([]byte, *Config) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML, nil
	case ".toml":
		return parseTOML, nil
	case ".json":
		return parseJSON, nil
	}
	return nil, fmt.Errorf("unsupported config format: %s", filepath.Base(path))
}

func parseYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict: error on unknown fields
	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func parseTOML(data []byte, cfg *Config) error {
	_, err := toml.Decode(string(data), cfg)
	return err
}

func parseJSON(data []byte, cfg *Config) error {
	return json.Unmarshal(data, cfg)
}

// applyEnv overrides file values with LOGKEEP_* variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Path, "LOGKEEP_PATH")
	set(&c.Filter, "LOGKEEP_FILTER")
	set(&c.Metadata.Secret, "LOGKEEP_METADATA_SECRET")

	if getenv("LOGKEEP_R2_BUCKET") != "" {
		if c.Archive.R2 == nil {
			c.Archive.R2 = &R2{}
		}
		set(&c.Archive.R2.AccountID, "LOGKEEP_R2_ACCOUNT_ID")
		set(&c.Archive.R2.AccessKeyID, "LOGKEEP_R2_ACCESS_KEY_ID")
		set(&c.Archive.R2.SecretAccessKey, "LOGKEEP_R2_SECRET_ACCESS_KEY")
		set(&c.Archive.R2.Bucket, "LOGKEEP_R2_BUCKET")
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Filter != "" {
		if _, err := logstore.ParseSeverity(c.Filter); err != nil {
			return fmt.Errorf("filter: %w", err)
		}
	}

	if c.Prune.LimitDays != nil && *c.Prune.LimitDays < 0 {
		return errors.New("prune.limit_days must not be negative")
	}
	if c.Prune.Frequency != nil && *c.Prune.Frequency < 0 {
		return errors.New("prune.frequency must not be negative")
	}

	if c.Archive.R2 != nil {
		if err := c.R2Config().Validate(); err != nil {
			return fmt.Errorf("archive.r2: %w", err)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = logstore.DefaultPath()
	}
	if c.Filter == "" {
		c.Filter = logstore.DefaultFilterSeverity.String()
	}
	if c.Prune.LimitDays == nil {
		days := logstore.DefaultPruneLimitDays
		c.Prune.LimitDays = &days
	}
	if c.Prune.Frequency == nil {
		freq := Duration(time.Duration(logstore.DefaultPruneFrequencySecs) * time.Second)
		c.Prune.Frequency = &freq
	}
	if c.Archive.Dir == "" {
		c.archiveDirDefaulted = true
		c.Archive.Dir = defaultArchiveDir(c.Path)
	}
}

func defaultArchiveDir(path string) string {
	return filepath.Join(filepath.Dir(path), "exports")
}

// SetPath points the config at another store file. A defaulted archive
// directory follows the new path.
func (c *Config) SetPath(path string) {
	c.Path = path
	if c.archiveDirDefaulted {
		c.Archive.Dir = defaultArchiveDir(path)
	}
}

// PruneFrequency returns the configured interval, or the default when unset.
func (c *Config) PruneFrequency() time.Duration {
	if c.Prune.Frequency == nil {
		return time.Duration(logstore.DefaultPruneFrequencySecs) * time.Second
	}
	return c.Prune.Frequency.Duration()
}

// FilterSeverity returns the parsed filter level.
func (c *Config) FilterSeverity() logstore.Severity {
	sev, err := logstore.ParseSeverity(c.Filter)
	if err != nil {
		return logstore.DefaultFilterSeverity
	}
	return sev
}

// StoreOptions returns the logstore options this config describes.
func (c *Config) StoreOptions() []logstore.Option {
	opts := []logstore.Option{
		logstore.WithFilterSeverity(c.FilterSeverity()),
		logstore.WithPruneFrequencySecs(c.PruneFrequency().Seconds()),
	}
	if c.Prune.LimitDays != nil {
		opts = append(opts, logstore.WithPruneLimitDays(*c.Prune.LimitDays))
	}
	return opts
}

// Codec returns the metadata codec: sealed when a secret is configured.
func (c *Config) Codec() (metacodec.Codec, error) {
	if c.Metadata.Secret == "" {
		return metacodec.JSON{}, nil
	}
	sealed, err := metacodec.NewSealed(c.Metadata.Secret)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

// R2Config returns the archive R2 settings. It is the zero value when R2 is
// not configured.
func (c *Config) R2Config() archive.R2Config {
	if c.Archive.R2 == nil {
		return archive.R2Config{}
	}
	return archive.R2Config{
		AccountID:       c.Archive.R2.AccountID,
		AccessKeyID:     c.Archive.R2.AccessKeyID,
		SecretAccessKey: c.Archive.R2.SecretAccessKey,
		Bucket:          c.Archive.R2.Bucket,
	}
}
