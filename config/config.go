// Package config loads ildump settings from a YAML file.
package config

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/reader"
	"github.com/wippyai/clrmeta/resolve"
)

const (
	configDir  = ".clrmeta"
	configFile = "config.yml"
)

// ResolverConfig configures assembly probing.
type ResolverConfig struct {
	// SearchDirs are probed after the referring module's directory.
	SearchDirs []string `yaml:"search-dirs,omitempty"`
	AppBase    string   `yaml:"app-base,omitempty"`
	// Extensions are tried in order for every candidate name.
	Extensions []string `yaml:"extensions,omitempty"`
	// GACRoots are system assembly cache roots.
	GACRoots []string `yaml:"gac-roots,omitempty"`
	// PlatformVersion unifies references to system assemblies, e.g. "4.0.0.0".
	PlatformVersion string `yaml:"platform-version,omitempty"`
	// CacheCapacity bounds the shared strong-name cache.
	CacheCapacity int `yaml:"cache-capacity"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config defines all options available in the config file.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			Extensions:    append([]string(nil), resolve.DefaultExtensions...),
			CacheCapacity: resolve.DefaultCacheCapacity,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// DefaultPath returns ~/.clrmeta/config.yml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, configDir, configFile)
}

// Load reads the config file at path over the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "read "+path)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode "+path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c to path, creating the directory if needed.
func Save(path string, c *Config) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "create config directory")
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "write "+path)
	}
	return nil
}

// Validate checks values that YAML decoding cannot.
func (c *Config) Validate() error {
	if c.Resolver.PlatformVersion != "" {
		if _, err := reader.ParseVersion(c.Resolver.PlatformVersion); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "resolver.platform-version")
		}
	}
	if c.Resolver.CacheCapacity < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "resolver.cache-capacity must not be negative")
	}
	if _, err := c.level(); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	return nil
}

// ResolverOptions converts the resolver section. A non-default cache
// capacity gets a private cache; otherwise resolve.Shared() is used.
func (c *Config) ResolverOptions(logger *zap.Logger) (resolve.Options, error) {
	opts := resolve.Options{
		SearchDirs: c.Resolver.SearchDirs,
		AppBase:    c.Resolver.AppBase,
		Extensions: c.Resolver.Extensions,
		GACRoots:   c.Resolver.GACRoots,
		Logger:     logger,
	}
	if c.Resolver.PlatformVersion != "" {
		v, err := reader.ParseVersion(c.Resolver.PlatformVersion)
		if err != nil {
			return opts, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "resolver.platform-version")
		}
		opts.PlatformVersion = v
	}
	if n := c.Resolver.CacheCapacity; n > 0 && n != resolve.DefaultCacheCapacity {
		opts.Cache = resolve.NewCache(n)
	}
	return opts, nil
}

func (c *Config) level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if c.Log.Level == "" {
		return zapcore.WarnLevel, nil
	}
	err := lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl, err
}

// Logger builds a zap logger writing to stderr.
func (c *Config) Logger() (*zap.Logger, error) {
	lvl, err := c.level()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
