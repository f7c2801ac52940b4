package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Session struct {
		TTL string `yaml:"ttl"`
	} `yaml:"session"`
	Questions struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"questions"`
	Exam struct {
		PaperSize     int     `yaml:"paper_size"`
		PassThreshold float64 `yaml:"pass_threshold"`
		TrendDays     int     `yaml:"trend_days"`
		TopUsers      int     `yaml:"top_users"`
		Timezone      string  `yaml:"timezone"`
	} `yaml:"exam"`
	Grading struct {
		CountUnresolved bool `yaml:"count_unresolved"`
	} `yaml:"grading"`
	Judge struct {
		Timeout string   `yaml:"timeout"`
		Allow   []string `yaml:"allow"`
	} `yaml:"judge"`
	RateLimit struct {
		CodeRunsPerMinute int `yaml:"code_runs_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"ratelimit"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present. Keys absent
// from a loaded file keep these values.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Session.TTL = "2h"
	cfg.Questions.CacheTTL = "10m"
	cfg.Exam.PaperSize = 10
	cfg.Exam.PassThreshold = 0.6
	cfg.Exam.TrendDays = 14
	cfg.Exam.TopUsers = 10
	cfg.Exam.Timezone = "UTC"
	cfg.Grading.CountUnresolved = true
	cfg.RateLimit.CodeRunsPerMinute = 30
	cfg.RateLimit.Burst = 5
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 30
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Location resolves the exam timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Exam.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Exam.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
