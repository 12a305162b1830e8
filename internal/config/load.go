package config

import (
	"fmt"

	"github.com/dshills/lsesample/internal/config/loader"
)

// Loader resolves a Config from its layers. Later layers win:
// defaults, config file, environment, overrides.
type Loader struct {
	path      string
	fs        loader.FileSystem
	env       *loader.EnvLoader
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithFile sets the config file. The format follows the extension
// (.toml, .yaml or .yml). A missing file is not an error.
func WithFile(path string) Option {
	return func(l *Loader) {
		l.path = path
	}
}

// WithFS sets the file system the config file is read from.
func WithFS(fs loader.FileSystem) Option {
	return func(l *Loader) {
		if fs != nil {
			l.fs = fs
		}
	}
}

// WithEnv sets the environment loader. nil disables the environment layer.
func WithEnv(env *loader.EnvLoader) Option {
	return func(l *Loader) {
		l.env = env
	}
}

// WithOverride sets a value in the top layer, typically from a flag.
func WithOverride(path string, value any) Option {
	return func(l *Loader) {
		loader.SetByPath(l.overrides, path, value)
	}
}

// NewLoader creates a Loader reading the OS file system and LSESAMPLE_
// environment variables.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		fs:        loader.DefaultFS(),
		env:       loader.NewEnvLoader(loader.DefaultEnvPrefix),
		overrides: make(map[string]any),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Path returns the config file path, or "" if none was set.
func (l *Loader) Path() string {
	return l.path
}

// Load merges the layers, decodes them and validates the result.
func (l *Loader) Load() (*Config, error) {
	merged := Default().Map()

	if l.path != "" {
		fl, err := loader.ForPath(l.fs, l.path)
		if err != nil {
			return nil, err
		}
		file, err := fl.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, file)
	}

	if l.env != nil {
		env, err := l.env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, env)
	}

	merged = loader.DeepMerge(merged, loader.Clone(l.overrides))

	c, err := FromMap(merged)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
