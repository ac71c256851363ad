package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// HTTP server configuration
	Port string

	// Update engine configuration
	MaxConcurrency int
	PerHostLimit   int
	FetchTimeout   int // seconds
	SchedulerTick  int // seconds
	RetentionDays  int

	// Polling interval tiers, seconds
	IntervalLow  int
	IntervalMed  int
	IntervalHigh int

	// Application metadata
	SeedFile  string
	UserAgent string
	Debug     bool
	Version   string
}
