package config

// Default configuration values.
const (
	DefaultEngine      = EngineLazy
	DefaultSchemas     = "schemas.yaml"
	DefaultLogLevel    = "warn"
	DefaultOutput      = "auto" // TTY=text, otherwise markdown
	DefaultConcurrency = 4
	DefaultReportDB    = ".das/runs.db"
	DefaultDuckDBPath  = ":memory:"
)

func defaults() map[string]any {
	return map[string]any{
		"engine":         DefaultEngine,
		"schemas":        DefaultSchemas,
		"log_level":      DefaultLogLevel,
		"output":         DefaultOutput,
		"allow_widening": false,
		"concurrency":    DefaultConcurrency,
		"report_db":      DefaultReportDB,
		"duckdb.path":    DefaultDuckDBPath,
	}
}
