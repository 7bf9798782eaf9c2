package domain

import "time"

// RunSummary describes one completed pipeline run. It is handed to publishers
// after the output file has been replaced.
type RunSummary struct {
	Pipeline    string        `json:"pipeline"`
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	Records     int           `json:"records"`
	OutputPath  string        `json:"output_path"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Placeholder bool          `json:"placeholder"`
}
