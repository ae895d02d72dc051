package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ProfilesDir  string
	Port         string
	APIAccessKey string

	// Ingestion configuration
	PollInterval     int
	FetchConcurrency int
	MaxCandidates    int
	HTTPTimeout      int

	// Enrichment configuration
	EnrichInterval    int
	EnrichConcurrency int
	EnrichBatchSize   int
	MaxEnrichFailures int
	EnrichCooldown    int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
