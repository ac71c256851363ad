package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:         "data/rss.db",
		Port:           "8787",
		MaxConcurrency: 40,
		PerHostLimit:   4,
		FetchTimeout:   25,
		SchedulerTick:  60,
		RetentionDays:  30,
		IntervalLow:    1200,
		IntervalMed:    3600,
		IntervalHigh:   7200,
		SeedFile:       "feeds.yml",
		UserAgent:      "Test Agent",
		Debug:          true,
		Version:        "test-version",
	}

	if cfg.DBPath != "data/rss.db" {
		t.Errorf("Expected DB path 'data/rss.db', got '%s'", cfg.DBPath)
	}
	if cfg.Port != "8787" {
		t.Errorf("Expected port '8787', got '%s'", cfg.Port)
	}
	if cfg.MaxConcurrency != 40 {
		t.Errorf("Expected concurrency 40, got %d", cfg.MaxConcurrency)
	}
	if cfg.PerHostLimit != 4 {
		t.Errorf("Expected per-host limit 4, got %d", cfg.PerHostLimit)
	}
	if cfg.FetchTimeout != 25 {
		t.Errorf("Expected fetch timeout 25, got %d", cfg.FetchTimeout)
	}
	if cfg.SchedulerTick != 60 {
		t.Errorf("Expected scheduler tick 60, got %d", cfg.SchedulerTick)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("Expected retention days 30, got %d", cfg.RetentionDays)
	}
	if cfg.IntervalLow != 1200 || cfg.IntervalMed != 3600 || cfg.IntervalHigh != 7200 {
		t.Errorf("Expected interval tiers 1200/3600/7200, got %d/%d/%d",
			cfg.IntervalLow, cfg.IntervalMed, cfg.IntervalHigh)
	}
	if cfg.SeedFile != "feeds.yml" {
		t.Errorf("Expected seed file 'feeds.yml', got '%s'", cfg.SeedFile)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}
