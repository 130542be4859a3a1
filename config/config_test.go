package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/resolve"
	"github.com/wippyai/clrmeta/typesys"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, resolve.DefaultExtensions, c.Resolver.Extensions)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
resolver:
  search-dirs: [lib, /opt/refs]
  app-base: /srv/app
  gac-roots: [/usr/lib/mono/gac]
  platform-version: 4.0.0.0
  cache-capacity: 32
log:
  level: debug
  development: true
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "/opt/refs"}, c.Resolver.SearchDirs)
	assert.Equal(t, "/srv/app", c.Resolver.AppBase)
	assert.Equal(t, resolve.DefaultExtensions, c.Resolver.Extensions, "unset keys keep defaults")
	assert.Equal(t, 32, c.Resolver.CacheCapacity)
	assert.True(t, c.Log.Development)

	opts, err := c.ResolverOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, typesys.Version{4, 0, 0, 0}, opts.PlatformVersion)
	assert.Equal(t, []string{"/usr/lib/mono/gac"}, opts.GACRoots)
	require.NotNil(t, opts.Cache)

	lvl, err := c.level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	logger, err := c.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "resolver:\n  probe-gac: true\n"},
		{"bad version", "resolver:\n  platform-version: 4.x\n"},
		{"negative capacity", "resolver:\n  cache-capacity: -1\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"not yaml", "resolver: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, errors.PhaseConfig, e.Phase)
			assert.Equal(t, errors.KindInvalidInput, e.Kind)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	c := Default()
	c.Resolver.SearchDirs = []string{"refs"}
	c.Resolver.PlatformVersion = "8.0.0.0"
	c.Log.Level = "info"

	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDefaultOptionsUseSharedCache(t *testing.T) {
	opts, err := Default().ResolverOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Cache)
	assert.Equal(t, typesys.Version{}, opts.PlatformVersion)
}
