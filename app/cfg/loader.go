package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/jobradar.db" description:"Path to the SQLite database file"`

	// Application configuration
	ProfilesDir  string `long:"profiles-dir" env:"PROFILES_DIR" default:"./profiles" description:"Directory containing profile seed files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for profile management endpoints (optional)"`

	// Ingestion configuration
	PollInterval     int `long:"poll-interval" env:"POLL_INTERVAL" default:"30" description:"Profile registry poll interval in seconds"`
	FetchConcurrency int `long:"fetch-concurrency" env:"FETCH_CONCURRENCY" default:"5" description:"Maximum concurrent detail fetches per batch"`
	MaxCandidates    int `long:"max-candidates" env:"MAX_CANDIDATES" default:"50" description:"Maximum search candidates processed per profile tick"`
	HTTPTimeout      int `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30" description:"HTTP client timeout in seconds"`

	// Enrichment configuration
	EnrichInterval    int `long:"enrich-interval" env:"ENRICH_INTERVAL" default:"3600" description:"Enrichment pass interval in seconds"`
	EnrichConcurrency int `long:"enrich-concurrency" env:"ENRICH_CONCURRENCY" default:"2" description:"Maximum concurrent enrichment fetches"`
	EnrichBatchSize   int `long:"enrich-batch-size" env:"ENRICH_BATCH_SIZE" default:"20" description:"Maximum records enriched per pass"`
	MaxEnrichFailures int `long:"max-enrich-failures" env:"MAX_ENRICH_FAILURES" default:"3" description:"Consecutive failures before an enrichment cooldown starts"`
	EnrichCooldown    int `long:"enrich-cooldown" env:"ENRICH_COOLDOWN" default:"86400" description:"Enrichment cooldown duration in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"Override user agent string for HTTP requests (rotates browser agents when empty)"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
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
		DBPath:            raw.DBPath,
		ProfilesDir:       raw.ProfilesDir,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		PollInterval:      raw.PollInterval,
		FetchConcurrency:  raw.FetchConcurrency,
		MaxCandidates:     raw.MaxCandidates,
		HTTPTimeout:       raw.HTTPTimeout,
		EnrichInterval:    raw.EnrichInterval,
		EnrichConcurrency: raw.EnrichConcurrency,
		EnrichBatchSize:   raw.EnrichBatchSize,
		MaxEnrichFailures: raw.MaxEnrichFailures,
		EnrichCooldown:    raw.EnrichCooldown,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
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

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
