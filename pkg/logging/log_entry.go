package logging

// LogEntry represents a structured log record with fields particularly
// relevant to trial scheduling and bookkeeping.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Optimization-specific fields
	RunID string    // Identifier of the optimization run
	Trial *TrialRef // Trial the entry refers to, if any

	// General structured data
	Fields map[string]interface{}
}

// TrialRef identifies a single trial for log correlation.
type TrialRef struct {
	ConfigID int
	Instance string
	Seed     int64
	Budget   float64
}
