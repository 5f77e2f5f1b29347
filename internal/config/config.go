// Package config loads the settings shared by the host and guest binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/KDT2006/minewars/internal/cursor"
	"github.com/KDT2006/minewars/internal/protocol"
)

const (
	FileName  = "minewars"
	EnvPrefix = "MINEWARS"
)

// Config is read from minewars.yaml, then MINEWARS_* environment variables.
type Config struct {
	ListenAddr     string              `mapstructure:"listenAddr" validate:"required"`
	Name           string              `mapstructure:"name"`
	HostURL        string              `mapstructure:"hostURL" validate:"required,url"`
	CursorInterval time.Duration       `mapstructure:"cursorInterval" validate:"gt=0"`
	LogLevel       string              `mapstructure:"logLevel" validate:"oneof=debug info warn error"`
	Game           protocol.GameConfig `mapstructure:"game"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listenAddr", ":8080")
	v.SetDefault("name", "")
	v.SetDefault("hostURL", "ws://127.0.0.1:8080")
	v.SetDefault("cursorInterval", cursor.DefaultInterval)
	v.SetDefault("logLevel", "info")

	v.SetDefault("game.size", "medium")
	v.SetDefault("game.rows", 0)
	v.SetDefault("game.cols", 0)
	v.SetDefault("game.mineCount", 0)
	v.SetDefault("game.maxPlayers", 4)
	v.SetDefault("game.mode", string(protocol.ModeTurn))
	v.SetDefault("game.noGuess", false)
}

// Load reads the config file from configPath, the working directory or
// ./config. A missing file is not an error; every key has a default.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	// default config path
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// NewLogger returns a text logger at level. Unknown levels mean info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
