package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/schema"
)

// TestDefault tests that the defaults are valid on their own.
func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.DriverName())
	assert.True(t, cfg.Migrate)
	assert.Equal(t, Duration(200*time.Millisecond), cfg.SlowThreshold)
}

// TestParse tests decoding a complete file.
func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
dialect: postgres
dsn: postgres://localhost/shop
migrate: false
naming:
  plural_tables: true
  table_prefix: app_
  casing: upper
  quote: false
log:
  level: debug
  format: json
debug: true
slow_threshold: 1s
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "pgx", cfg.DriverName())
	assert.Equal(t, "postgres://localhost/shop", cfg.DSN)
	assert.False(t, cfg.Migrate)
	assert.True(t, cfg.Debug)
	assert.Equal(t, Duration(time.Second), cfg.SlowThreshold)
	assert.Equal(t, schema.DefaultNaming{PluralTables: true, TablePrefix: "app_"}, cfg.NamingStrategy())

	d, err := cfg.SQLDialect()
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, d.Name())
	assert.Equal(t, "ORDERS", d.IdentifierProcessing().Process("orders"))
}

// TestParseErrors tests rejected files.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown_field", "dialekt: sqlite", "field dialekt not found"},
		{"unknown_dialect", "dialect: oracle", `unknown dialect "oracle"`},
		{"generic_dialect", "dialect: generic", `unknown dialect "generic"`},
		{"empty_dsn", `dsn: ""`, "dsn is required"},
		{"casing", "naming: {casing: title}", `unknown casing "title"`},
		{"level", "log: {level: loud}", `unknown log level "loud"`},
		{"format", "log: {format: xml}", `unknown log format "xml"`},
		{"duration", "slow_threshold: soon", "line 1"},
		{"negative_duration", "slow_threshold: -1s", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("joined", func(t *testing.T) {
		_, err := Parse([]byte("dialect: oracle\ndsn: ''"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown dialect")
		assert.Contains(t, err.Error(), "dsn is required")
	})
}

// TestLoad tests reading a file and applying the environment.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: mysql\ndsn: root@/shop\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DriverName())
	assert.Equal(t, "root@/shop", cfg.DSN)

	t.Setenv(EnvDialect, "sqlite")
	t.Setenv(EnvDSN, "file:env?mode=memory")
	t.Setenv(EnvDriver, "sqlite3")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvDebug, "true")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "file:env?mode=memory", cfg.DSN)
	assert.Equal(t, "sqlite3", cfg.DriverName())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Debug)

	t.Setenv(EnvDebug, "maybe")
	_, err = Load(path)
	assert.ErrorContains(t, err, EnvDebug)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestLoadWithoutFile tests that an empty path uses the defaults.
func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvDSN, " ")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg, "blank variables are ignored")
}

// TestLogger tests the configured handler.
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log = Log{Level: "warn", Format: "json"}
	log := cfg.Logger(&buf)
	log.Info("dropped")
	log.Warn("kept", "n", 1)
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	assert.False(t, log.Enabled(t.Context(), slog.LevelInfo))
}

// TestDurationMarshal tests writing durations back as strings.
func TestDurationMarshal(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1.5s\n", string(out))
}
