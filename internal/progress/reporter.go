package progress

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides progress feedback for one stage of an ingestion run.
type Reporter interface {
	Start(stage string, total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a TerminalReporter if running in an interactive terminal,
// or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(stage string, total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(describe(stage)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	stage string
	total int
}

func (r *CIReporter) Start(stage string, total int) {
	r.stage, r.total = stage, total
	fmt.Fprintf(os.Stderr, "%s: %d item(s)\n", describe(stage), total)
}

func (r *CIReporter) Update(current int, message string) {
	fmt.Fprintf(os.Stderr, "[%s %d/%d] %s\n", r.stage, current, r.total, message)
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(os.Stderr, "%s complete\n", describe(r.stage))
}

func describe(stage string) string {
	switch stage {
	case "load":
		return "Loading documents"
	case "embed":
		return "Embedding chunks"
	default:
		return "Ingesting"
	}
}

// Tracker feeds staged progress callbacks into a Reporter, starting a new
// report whenever the stage changes. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	reporter Reporter
	stage    string
	started  bool
}

// NewTracker creates a Tracker writing to r.
func NewTracker(r Reporter) *Tracker {
	return &Tracker{reporter: r}
}

// Report records that processed of total items in stage are done.
func (t *Tracker) Report(stage string, processed, total int, current string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || stage != t.stage {
		if t.started {
			t.reporter.Finish()
		}
		t.reporter.Start(stage, total)
		t.stage, t.started = stage, true
	}
	t.reporter.Update(processed, current)
}

// Finish closes the current report, if any.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		t.reporter.Finish()
		t.started = false
	}
}
