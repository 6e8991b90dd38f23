package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type serverConfig struct {
	Addr           string
	Database       string
	StoreID        string
	BackupInterval time.Duration
	LogLevel       slog.Level
	Metrics        bool
	RenderOnExit   bool
	OutboxSize     int
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:           "localhost:8080",
		Database:       "plans.sqlite3",
		StoreID:        "default",
		BackupInterval: 5 * time.Second,
		LogLevel:       slog.LevelInfo,
		Metrics:        true,
		OutboxSize:     256,
	}
}

type fileConfig struct {
	Addr           string `toml:"addr"`
	Database       string `toml:"database"`
	StoreID        string `toml:"store_id"`
	BackupInterval string `toml:"backup_interval"`
	LogLevel       string `toml:"log_level"`
	Metrics        bool   `toml:"metrics"`
	RenderOnExit   bool   `toml:"render_on_exit"`
	OutboxSize     int    `toml:"outbox_size"`
}

func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("addr") {
		if v := strings.TrimSpace(raw.Addr); v != "" {
			cfg.Addr = v
		}
	}
	if meta.IsDefined("database") {
		if v := strings.TrimSpace(raw.Database); v != "" {
			cfg.Database = v
		}
	}
	if meta.IsDefined("store_id") {
		if v := strings.TrimSpace(raw.StoreID); v != "" {
			cfg.StoreID = v
		}
	}
	if meta.IsDefined("backup_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackupInterval))
		if err != nil {
			return serverConfig{}, fmt.Errorf("parse backup_interval: %w", err)
		}
		if d <= 0 {
			return serverConfig{}, fmt.Errorf("parse backup_interval: must be positive, got %s", d)
		}
		cfg.BackupInterval = d
	}
	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return serverConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
	}
	if meta.IsDefined("metrics") {
		cfg.Metrics = raw.Metrics
	}
	if meta.IsDefined("render_on_exit") {
		cfg.RenderOnExit = raw.RenderOnExit
	}
	if meta.IsDefined("outbox_size") {
		if raw.OutboxSize <= 0 {
			return serverConfig{}, fmt.Errorf("parse outbox_size: must be positive, got %d", raw.OutboxSize)
		}
		cfg.OutboxSize = raw.OutboxSize
	}
	return cfg, nil
}
