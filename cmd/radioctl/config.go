package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/saltytrain2/genradio/internal/radio"
)

type fileConfig struct {
	Host             string  `toml:"host"`
	Port             int     `toml:"port"`
	Verbose          bool    `toml:"verbose"`
	RemoveThresholdM float64 `toml:"remove_threshold_m"`
	PollTimeout      string  `toml:"poll_timeout"`
	MetricsAddr      string  `toml:"metrics_addr"`
}

type ctlConfig struct {
	Settings    radio.Settings
	MetricsAddr string
}

func defaultCtlConfig() ctlConfig {
	return ctlConfig{Settings: radio.DefaultSettings()}
}

func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := defaultCtlConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ctlConfig{}, fmt.Errorf("load radioctl config: %w", err)
	}

	if meta.IsDefined("host") {
		host := strings.TrimSpace(raw.Host)
		if host == "" {
			return ctlConfig{}, fmt.Errorf("radioctl config: host must not be empty")
		}
		cfg.Settings.Host = host
	}

	if meta.IsDefined("port") {
		if raw.Port < 1 || raw.Port > 65535 {
			return ctlConfig{}, fmt.Errorf("radioctl config: invalid port %d", raw.Port)
		}
		cfg.Settings.Port = raw.Port
	}

	if meta.IsDefined("verbose") {
		cfg.Settings.Verbose = raw.Verbose
	}

	if meta.IsDefined("remove_threshold_m") {
		if raw.RemoveThresholdM <= 0 {
			return ctlConfig{}, fmt.Errorf("radioctl config: invalid remove_threshold_m %v", raw.RemoveThresholdM)
		}
		cfg.Settings.RemoveThresholdM = raw.RemoveThresholdM
	}

	if meta.IsDefined("poll_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollTimeout))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse poll_timeout: %w", err)
		}
		if d <= 0 {
			return ctlConfig{}, fmt.Errorf("radioctl config: poll_timeout must be positive")
		}
		cfg.Settings.PollTimeout = d
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}
