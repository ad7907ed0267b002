package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv sets key for the duration of the test, or unsets it when value is empty.
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
	if value == "" {
		require.NoError(t, os.Unsetenv(key))
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	setEnv(t, "DATABASE_URL_RO", "")
	setEnv(t, "DATABASE_URL", "")
	setEnv(t, "SCHEMAGUARD_DATABASE_URL", "")
	setEnv(t, "SCHEMAGUARD_SCHEMAS", "")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"public"}, cfg.Schemas)
	assert.Equal(t, 750*time.Millisecond, cfg.SampleTimeout)
	assert.Equal(t, 5*time.Second, cfg.PlanTimeout)
	assert.Equal(t, 2*time.Second, cfg.TemplateTimeout)
	assert.Equal(t, 10, cfg.DefaultLimit)
	assert.Equal(t, 0, cfg.DefaultOffset)
	assert.Equal(t, 50, cfg.ListLimit)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/db
schemas: [public, sales]
plan_timeout: 3s
default_limit: 25
`), 0o600))

	t.Setenv("SCHEMAGUARD_DEFAULT_LIMIT", "40")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("plan-timeout", time.Second, "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse([]string{"--plan-timeout=7s"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, []string{"public", "sales"}, cfg.Schemas)
	assert.Equal(t, 40, cfg.DefaultLimit, "env overrides file")
	assert.Equal(t, 7*time.Second, cfg.PlanTimeout, "changed flag overrides file")
	assert.False(t, cfg.Verbose, "unchanged flag keeps default")
}

func TestLoad_SchemasFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "comma separated", value: "public,sales", want: []string{"public", "sales"}},
		{name: "spaces and empty items", value: " public , ,sales ", want: []string{"public", "sales"}},
		{name: "single", value: "sales", want: []string{"sales"}},
		{name: "only separators keeps default", value: " , ", want: []string{"public"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv("SCHEMAGUARD_SCHEMAS", tt.value)

			cfg, err := Load("", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Schemas)
		})
	}
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schemaguard.yml"), []byte("list_limit: 5\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ListLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_LegacyDatabaseURL(t *testing.T) {
	tests := []struct {
		name   string
		ro     string
		rw     string
		prefix string
		want   string
	}{
		{name: "read-only preferred", ro: "postgres://ro", rw: "postgres://rw", want: "postgres://ro"},
		{name: "falls back to DATABASE_URL", rw: "postgres://rw", want: "postgres://rw"},
		{name: "prefixed wins", ro: "postgres://ro", prefix: "postgres://prefixed", want: "postgres://prefixed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			setEnv(t, "DATABASE_URL_RO", tt.ro)
			setEnv(t, "DATABASE_URL", tt.rw)
			setEnv(t, "SCHEMAGUARD_DATABASE_URL", tt.prefix)

			cfg, err := Load("", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DatabaseURL)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:     "postgres://localhost/db",
			SampleTimeout:   time.Second,
			PlanTimeout:     time.Second,
			TemplateTimeout: time.Second,
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.DatabaseURL = "" }, errSubstr: "database_url is required"},
		{name: "zero plan timeout", mutate: func(c *Config) { c.PlanTimeout = 0 }, errSubstr: "plan_timeout must be positive"},
		{name: "negative template timeout", mutate: func(c *Config) { c.TemplateTimeout = -time.Second }, errSubstr: "template_timeout must be positive"},
		{name: "negative offset", mutate: func(c *Config) { c.DefaultOffset = -1 }, errSubstr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}
