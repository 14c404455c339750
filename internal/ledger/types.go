package ledger

import (
	"errors"
	"time"
)

// ErrLocked is returned when another ingestion run holds the namespace.
var ErrLocked = errors.New("namespace is locked by another ingestion run")

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run records one execution of the ingestion pipeline.
type Run struct {
	ID         string     `json:"id"`
	Namespace  string     `json:"namespace"`
	CorpusDir  string     `json:"corpus_dir"`
	Status     RunStatus  `json:"status"`
	Files      int        `json:"files"`
	Chunks     int        `json:"chunks"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// File records one corpus file ingested by a run.
type File struct {
	RelPath     string `json:"rel_path"`
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	Chunks      int    `json:"chunks"`
}

// Lock is the current holder of a namespace.
type Lock struct {
	Namespace  string    `json:"namespace"`
	RunID      string    `json:"run_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}
