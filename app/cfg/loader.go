package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"RSS_DB" default:"rss.db" description:"Path to the SQLite database file"`

	// HTTP server configuration
	Port string `long:"port" env:"RSS_PORT" default:"8787" description:"HTTP server port"`

	// Update engine configuration
	MaxConcurrency int `long:"concurrency" env:"RSS_CONCURRENCY" default:"40" description:"Maximum number of in-flight feed fetches"`
	PerHostLimit   int `long:"per-host-limit" env:"RSS_LIMIT_PER_HOST" default:"4" description:"Maximum number of in-flight fetches per remote host"`
	FetchTimeout   int `long:"fetch-timeout" env:"RSS_FETCH_TIMEOUT" default:"25" description:"Per-request fetch timeout in seconds"`
	SchedulerTick  int `long:"tick" env:"RSS_TICK" default:"60" description:"Background scheduler tick interval in seconds"`
	RetentionDays  int `long:"retention-days" env:"RSS_RETENTION_DAYS" default:"30" description:"Entry retention window in days"`

	// Polling interval tiers, seconds
	IntervalLow  int `long:"interval-low" env:"RSS_INTERVAL_LOW" default:"1200" description:"Polling interval for low-volume feeds in seconds"`
	IntervalMed  int `long:"interval-med" env:"RSS_INTERVAL_MED" default:"3600" description:"Polling interval for medium-volume feeds in seconds"`
	IntervalHigh int `long:"interval-high" env:"RSS_INTERVAL_HIGH" default:"7200" description:"Polling interval for high-volume feeds in seconds"`

	// Application metadata
	SeedFile  string `long:"seed-file" env:"RSS_SEED_FILE" default:"feeds.yml" description:"Optional YAML file with feeds imported into an empty database"`
	UserAgent string `long:"user-agent" env:"RSS_UA" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:         raw.DBPath,
		Port:           raw.Port,
		MaxConcurrency: raw.MaxConcurrency,
		PerHostLimit:   raw.PerHostLimit,
		FetchTimeout:   raw.FetchTimeout,
		SchedulerTick:  raw.SchedulerTick,
		RetentionDays:  raw.RetentionDays,
		IntervalLow:    raw.IntervalLow,
		IntervalMed:    raw.IntervalMed,
		IntervalHigh:   raw.IntervalHigh,
		SeedFile:       raw.SeedFile,
		UserAgent:      raw.UserAgent,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = fmt.Sprintf("LocalRSS/%s (+local)", cfg.Version)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
