package model

import "time"

// RunKind names the job an ingest run performed.
type RunKind string

const (
	RunKindLocalities RunKind = "localities"
	RunKindRegions    RunKind = "regions"
	RunKindDedup      RunKind = "dedup"
)

// RunStatus represents the current state of an ingest run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// IngestRun is one recorded loader or dedup run.
type IngestRun struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Processed   int64      `json:"processed"`
	Failed      int64      `json:"failed"`
	Error       string     `json:"error,omitempty"`
}

// RunCounts holds the aggregate counters passed to CompleteRun.
type RunCounts struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Stats summarizes the contents of the gazetteer tables.
type Stats struct {
	Localities       int64   `json:"localities"`
	Regions          int64   `json:"regions"`
	Duplicates       int64   `json:"duplicates"`
	MedianPopulation float64 `json:"median_population"` // over non-zero populations
}
