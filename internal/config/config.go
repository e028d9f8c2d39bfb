// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the isodispatchd configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultAddr          = "127.0.0.1:7490"
	defaultPath          = "/dispatch"
	defaultLogLevel      = "info"
	defaultQueueCapacity = 64
)

// Config is the daemon configuration. File values are overridden by the
// environment variables named in the env tags.
type Config struct {
	Addr          string `toml:"addr" env:"ISODISPATCH_ADDR"`
	Path          string `toml:"path" env:"ISODISPATCH_PATH"`
	LogLevel      string `toml:"log_level" env:"ISODISPATCH_LOG_LEVEL"`
	QueueCapacity int    `toml:"queue_capacity" env:"ISODISPATCH_QUEUE_CAPACITY"`
	OTelEndpoint  string `toml:"otel_endpoint" env:"ISODISPATCH_OTEL_ENDPOINT"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:          defaultAddr,
		Path:          defaultPath,
		LogLevel:      defaultLogLevel,
		QueueCapacity: defaultQueueCapacity,
	}
}

// Load reads the TOML file at path, falling back to defaults when it is
// missing or path is empty, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	name := strings.TrimSpace(c.LogLevel)
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}
