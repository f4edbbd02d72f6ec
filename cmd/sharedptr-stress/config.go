package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines a stress run.
type Config struct {
	Goroutines int    `yaml:"goroutines"`
	Iterations int    `yaml:"iterations"`
	LogLevel   string `yaml:"log_level"`
	TrackLeaks bool   `yaml:"track_leaks"`
}

func defaultConfig() Config {
	return Config{
		Goroutines: 64,
		Iterations: 10_000,
		LogLevel:   "info",
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Goroutines <= 0 {
		return errors.Newf("goroutines must be positive, got %d", c.Goroutines)
	}
	if c.Iterations < 0 {
		return errors.Newf("iterations must not be negative, got %d", c.Iterations)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

func (c Config) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
