package cfg

type Cfg struct {
	// Persistence
	DBPath string

	// HTTP surface
	Port         string
	APIAccessKey string
	CronSecret   string

	// Scraping provider
	ScraperEndpoint string
	ScraperToken    string
	ScraperActorID  string

	// AI enrichment boundary
	AIEndpoint    string
	AIKey         string
	AIVisionModel string
	AITextModel   string
	TaxonomyFile  string

	// Batch scheduling
	SchedulerInterval int // seconds between scheduler sweeps
	MaxSourcesPerRun  int
	InterSourceDelay  int // seconds between sources within a batch
	WallClockBudget   int // seconds before a batch stops issuing new sources
	AnalysisMinViews  int // absolute view threshold for semantic analysis

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
