// Package config loads the configuration of the aggdemo command.
//
// Values come from, in increasing priority:
//  1. the defaults of Default
//  2. a YAML file
//  3. AGGSTORE_* environment variables
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/schema"
)

// Environment variables overriding file values.
const (
	EnvDialect  = "AGGSTORE_DIALECT"
	EnvDriver   = "AGGSTORE_DRIVER"
	EnvDSN      = "AGGSTORE_DSN"
	EnvLogLevel = "AGGSTORE_LOG_LEVEL"
	EnvDebug    = "AGGSTORE_DEBUG"
)

// Config is the root of the configuration file.
type Config struct {
	// Dialect is one of sqlite, postgres or mysql.
	Dialect string `yaml:"dialect"`
	// Driver is the database/sql driver name. It defaults to the driver
	// bundled for the dialect.
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn"`
	// Migrate creates missing tables on start.
	Migrate bool   `yaml:"migrate"`
	Naming  Naming `yaml:"naming"`
	Log     Log    `yaml:"log"`
	// Debug logs every statement.
	Debug bool `yaml:"debug"`
	// SlowThreshold is the duration above which statements are logged as
	// slow. Zero disables slow query logging.
	SlowThreshold Duration `yaml:"slow_threshold"`
}

// Naming configures table names and identifier rendering.
type Naming struct {
	PluralTables bool   `yaml:"plural_tables"`
	TablePrefix  string `yaml:"table_prefix,omitempty"`
	// Casing is one of as-is, upper or lower.
	Casing string `yaml:"casing"`
	// Quote quotes identifiers with the dialect's quote characters.
	Quote bool `yaml:"quote"`
}

// Log configures the logger.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as "250ms" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no file is given: an
// in-memory SQLite database with the tables created on start.
func Default() *Config {
	return &Config{
		Dialect: dialect.SQLite,
		DSN:     "file:aggdemo?mode=memory&_pragma=foreign_keys(1)",
		Migrate: true,
		Naming: Naming{
			Casing: "as-is",
			Quote:  true,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		SlowThreshold: Duration(200 * time.Millisecond),
	}
}

// Load reads the file at path over the defaults and applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. The environment is not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	if v, ok := get(EnvDialect); ok {
		c.Dialect = v
	}
	if v, ok := get(EnvDriver); ok {
		c.Driver = v
	}
	if v, ok := get(EnvDSN); ok {
		c.DSN = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := get(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks the values that cannot be checked while decoding.
func (c *Config) Validate() error {
	var errs []error
	if c.dialectName() == "" {
		errs = append(errs, fmt.Errorf("unknown dialect %q", c.Dialect))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if _, err := c.casing(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", f))
	}
	if c.SlowThreshold < 0 {
		errs = append(errs, errors.New("slow_threshold must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DriverName returns the database/sql driver to open.
func (c *Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	switch c.dialectName() {
	case dialect.Postgres:
		return "pgx"
	case dialect.MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// dialectName returns the canonical dialect name, or "" for dialects the
// command cannot open.
func (c *Config) dialectName() string {
	d, err := dialect.Get(c.Dialect)
	if err != nil {
		return ""
	}
	switch name := d.Name(); name {
	case dialect.SQLite, dialect.Postgres, dialect.MySQL:
		return name
	}
	return ""
}

// SQLDialect returns the dialect with the configured identifier rendering.
func (c *Config) SQLDialect() (dialect.Dialect, error) {
	d, err := dialect.Get(c.Dialect)
	if err != nil {
		return nil, err
	}
	casing, err := c.casing()
	if err != nil {
		return nil, err
	}
	ip := d.IdentifierProcessing()
	ip.Casing = casing
	if !c.Naming.Quote {
		ip.Quoting = dialect.QuotingNone
	}
	return dialect.Get(c.Dialect, dialect.WithIdentifierProcessing(ip))
}

// NamingStrategy returns the naming strategy of the model.
func (c *Config) NamingStrategy() schema.NamingStrategy {
	return schema.DefaultNaming{
		PluralTables: c.Naming.PluralTables,
		TablePrefix:  c.Naming.TablePrefix,
	}
}

// Logger returns a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) casing() (dialect.LetterCasing, error) {
	switch strings.ToLower(c.Naming.Casing) {
	case "", "as-is":
		return dialect.AsIs, nil
	case "upper":
		return dialect.UpperCase, nil
	case "lower":
		return dialect.LowerCase, nil
	default:
		return 0, fmt.Errorf("unknown casing %q", c.Naming.Casing)
	}
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return l, nil
}
