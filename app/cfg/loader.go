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
	// Persistence
	DBPath string `long:"db-path" env:"DB_PATH" default:"./harvester.db" description:"Path to the SQLite database file"`

	// HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authenticated endpoints (optional)"`
	CronSecret   string `long:"cron-secret" env:"CRON_SECRET" required:"true" description:"Shared secret for the cron trigger endpoints (required)"`

	// Scraping provider
	ScraperEndpoint string `long:"scraper-endpoint" env:"SCRAPER_ENDPOINT" default:"https://api.apify.com" description:"Base URL of the scraping provider API"`
	ScraperToken    string `long:"scraper-token" env:"SCRAPER_TOKEN" required:"true" description:"Scraping provider API token (required)"`
	ScraperActorID  string `long:"scraper-actor" env:"SCRAPER_ACTOR" default:"apify~instagram-scraper" description:"Scraping provider actor identifier"`

	// AI enrichment boundary
	AIEndpoint    string `long:"ai-endpoint" env:"AI_ENDPOINT" default:"https://api.openai.com/v1" description:"Base URL of the OpenAI-compatible model API"`
	AIKey         string `long:"ai-key" env:"AI_API_KEY" required:"true" description:"Model API key (required)"`
	AIVisionModel string `long:"ai-vision-model" env:"AI_VISION_MODEL" default:"gpt-4o-mini" description:"Vision-capable model for headline extraction"`
	AITextModel   string `long:"ai-text-model" env:"AI_TEXT_MODEL" default:"gpt-4o" description:"Text model for semantic content analysis"`
	TaxonomyFile  string `long:"taxonomy-file" env:"TAXONOMY_FILE" default:"./taxonomy.yml" description:"YAML file with the analysis topic taxonomy"`

	// Batch scheduling
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Scheduler sweep interval in seconds"`
	MaxSourcesPerRun  int `long:"max-sources" env:"MAX_SOURCES_PER_RUN" default:"10" description:"Maximum sources harvested per batch run"`
	InterSourceDelay  int `long:"inter-source-delay" env:"INTER_SOURCE_DELAY" default:"30" description:"Delay between sources within a batch, in seconds"`
	WallClockBudget   int `long:"wall-clock-budget" env:"WALL_CLOCK_BUDGET" default:"300" description:"Wall-clock budget for one batch run, in seconds"`
	AnalysisMinViews  int `long:"analysis-min-views" env:"ANALYSIS_MIN_VIEWS" default:"50000" description:"Minimum view count for semantic analysis eligibility"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"ReelRadar Harvester/1.0" description:"User agent string for HTTP requests"`
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
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		CronSecret:        raw.CronSecret,
		ScraperEndpoint:   raw.ScraperEndpoint,
		ScraperToken:      raw.ScraperToken,
		ScraperActorID:    raw.ScraperActorID,
		AIEndpoint:        raw.AIEndpoint,
		AIKey:             raw.AIKey,
		AIVisionModel:     raw.AIVisionModel,
		AITextModel:       raw.AITextModel,
		TaxonomyFile:      raw.TaxonomyFile,
		SchedulerInterval: raw.SchedulerInterval,
		MaxSourcesPerRun:  raw.MaxSourcesPerRun,
		InterSourceDelay:  raw.InterSourceDelay,
		WallClockBudget:   raw.WallClockBudget,
		AnalysisMinViews:  raw.AnalysisMinViews,
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
		}
	}
	return nil
}
