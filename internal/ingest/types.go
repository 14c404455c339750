package ingest

import (
	"errors"
	"time"
)

// ErrIngestionFailed wraps every error returned by Pipeline.Run.
var ErrIngestionFailed = errors.New("ingestion failed")

// Stage names a phase of a run for progress reporting.
type Stage string

const (
	StageLoad  Stage = "load"
	StageEmbed Stage = "embed"
)

// ProgressFunc is called after each unit of work within a stage.
type ProgressFunc func(stage Stage, processed, total int, current string)

// Options tunes a Pipeline.
type Options struct {
	Namespace   string
	BatchSize   int      // chunks per embedding request
	Concurrency int      // files loaded in parallel
	Include     []string // corpus globs
	Exclude     []string
	MaxFileSize int64
	Replace     bool // clear the namespace before writing
}

// Result summarizes a successful run.
type Result struct {
	RunID     string
	Files     int
	Documents int
	Chunks    int
	Records   int
	Duration  time.Duration
}
