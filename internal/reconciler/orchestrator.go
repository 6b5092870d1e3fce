// Package reconciler merges per-period financial statement filings into one
// reconciled catalog per statement type.
//
// The package covers the whole merge workflow:
//   - flattening each filing's section tree into positioned rows
//   - folding filings into a catalog, newest first
//   - zeroing values the authoritative filing does not confirm
//   - ordering sections and items for display and padding missing periods
//
// The Engine is the pure entry point and never returns errors: a statement
// type that cannot be merged yields an empty catalog. The Orchestrator wraps
// it with loading from disk, progress reporting and optional persistence.
//
// Example usage:
//
//	engine, _ := reconciler.NewEngine(reconciler.DefaultConfig())
//	loader, _ := parsers.NewLoader(parsers.DefaultLoaderConfig())
//	orchestrator, _ := reconciler.NewOrchestrator(engine, loader)
//	orchestrator.AddProgressCallback(func(p reconciler.ReconciliationProgress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//
//	result, err := orchestrator.Run(ctx, &reconciler.MergeRequest{Input: "filings/ACME"})
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang-statement-reconciler/internal/parsers"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"
)

const totalRunSteps = 4

// MergeRequest describes one merge run. Filings, when set, are used as-is
// and Input is not read.
type MergeRequest struct {
	Input   string
	Filings *parsers.FilingSet
	Ticker  string
}

// Validate checks that the request names something to merge
func (r *MergeRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("merge request is required")
	}
	if r.Input == "" && r.Filings == nil {
		return fmt.Errorf("an input path or preloaded filings are required")
	}
	return nil
}

// RunRecorder persists a finished merge run and returns its run ID
type RunRecorder interface {
	SaveRun(ctx context.Context, result *AggregateResult) (string, error)
}

// ReconciliationProgress tracks the progress of a merge run
type ReconciliationProgress struct {
	TotalSteps         int           `json:"total_steps"`
	CompletedSteps     int           `json:"completed_steps"`
	CurrentStep        string        `json:"current_step"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`

	FilesLoaded int `json:"files_loaded"`
	Periods     int `json:"periods"`
	Entries     int `json:"entries"`

	Warnings []string `json:"warnings,omitempty"`
}

// ProgressCallback is called with a snapshot of the run's progress
type ProgressCallback func(ReconciliationProgress)

// Orchestrator runs load, merge and persist as one workflow
type Orchestrator struct {
	engine   *Engine
	loader   *parsers.Loader
	recorder RunRecorder
	logger   logger.Logger

	progressCallbacks []ProgressCallback
	currentProgress   ReconciliationProgress
	progressMutex     sync.RWMutex
}

// NewOrchestrator creates an orchestrator. loader may be nil when every
// request carries preloaded filings.
func NewOrchestrator(engine *Engine, loader *parsers.Loader) (*Orchestrator, error) {
	if engine == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"engine",
			nil,
			nil,
		).WithSuggestion("Create the engine with reconciler.NewEngine")
	}

	return &Orchestrator{
		engine:          engine,
		loader:          loader,
		logger:          logger.GetGlobalLogger().WithComponent("reconciliation_orchestrator"),
		currentProgress: ReconciliationProgress{TotalSteps: totalRunSteps},
	}, nil
}

// WithRecorder enables persistence of finished runs
func (o *Orchestrator) WithRecorder(recorder RunRecorder) *Orchestrator {
	o.recorder = recorder
	return o
}

// AddProgressCallback adds a progress callback function
func (o *Orchestrator) AddProgressCallback(callback ProgressCallback) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()
	o.progressCallbacks = append(o.progressCallbacks, callback)
}

// Progress returns a snapshot of the current run's progress
func (o *Orchestrator) Progress() ReconciliationProgress {
	o.progressMutex.RLock()
	defer o.progressMutex.RUnlock()
	return o.snapshot()
}

// Run loads the requested filings, merges every configured statement type
// and records the run when a recorder is set. A recorder failure is returned
// together with the result, which is still complete.
func (o *Orchestrator) Run(ctx context.Context, req *MergeRequest) (*AggregateResult, error) {
	o.initializeProgress()
	startTime := time.Now()

	o.updateProgress("Validating request", 0, nil)
	if err := req.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "input", nil, err).
			WithSuggestion("Pass a filing directory or bundle file with --input")
	}

	o.updateProgress("Loading filings", 0, nil)
	filings := req.Filings
	if filings == nil {
		if o.loader == nil {
			return nil, errors.ConfigurationError(errors.CodeMissingConfig, "loader", nil,
				fmt.Errorf("no loader configured for input %s", req.Input))
		}
		loaded, err := o.loader.Load(ctx, req.Input)
		if err != nil {
			o.logger.WithError(err).WithField("input", req.Input).Error("Failed to load filings")
			return nil, err
		}
		filings = loaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.updateProgress("Merging statements", 1, func(p *ReconciliationProgress) {
		p.FilesLoaded = len(filings.Files)
		p.Periods = len(filings.Periods)
		for _, derr := range filings.Errors {
			p.Warnings = append(p.Warnings, derr.Error())
		}
	})

	result := o.engine.BuildAll(filings.Documents())
	result.Ticker = req.Ticker
	if result.Ticker == "" {
		result.Ticker = filings.Ticker
	}
	for _, derr := range filings.Errors {
		result.LoadErrors = append(result.LoadErrors, derr.Error())
	}
	if result.Error != "" {
		o.logger.WithField("error", result.Error).Warn("Merge degraded to empty catalogs")
	}

	o.updateProgress("Recording run", 2, func(p *ReconciliationProgress) {
		p.Entries = result.TotalEntries()
	})

	if o.recorder != nil {
		runID, err := o.recorder.SaveRun(ctx, result)
		if err != nil {
			o.logger.WithError(err).Error("Failed to record merge run")
			o.updateProgress("Completed with errors", 3, func(p *ReconciliationProgress) {
				p.Warnings = append(p.Warnings, err.Error())
			})
			return result, err
		}
		result.RunID = runID
	}

	o.updateProgress("Completed", totalRunSteps, nil)
	o.logger.WithFields(logger.Fields{
		"ticker":       result.Ticker,
		"run_id":       result.RunID,
		"files":        len(filings.Files),
		"periods":      len(filings.Periods),
		"entries":      result.TotalEntries(),
		"load_errors":  len(result.LoadErrors),
		"elapsed_time": time.Since(startTime).String(),
	}).Info("Merge run completed")

	return result, nil
}

func (o *Orchestrator) initializeProgress() {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()

	o.currentProgress = ReconciliationProgress{
		TotalSteps: totalRunSteps,
		StartTime:  time.Now(),
	}
}

// updateProgress applies mutate to the progress under lock, then notifies
// callbacks with a snapshot
func (o *Orchestrator) updateProgress(step string, completed int, mutate func(*ReconciliationProgress)) {
	o.progressMutex.Lock()
	p := &o.currentProgress
	p.CurrentStep = step
	p.CompletedSteps = completed
	p.ElapsedTime = time.Since(p.StartTime)
	p.PercentComplete = float64(completed) / float64(p.TotalSteps) * 100
	p.EstimatedRemaining = 0
	if completed > 0 && completed < p.TotalSteps {
		avgTimePerStep := p.ElapsedTime / time.Duration(completed)
		p.EstimatedRemaining = avgTimePerStep * time.Duration(p.TotalSteps-completed)
	}
	if mutate != nil {
		mutate(p)
	}
	snapshot := o.snapshot()
	callbacks := append([]ProgressCallback(nil), o.progressCallbacks...)
	o.progressMutex.Unlock()

	for _, callback := range callbacks {
		callback(snapshot)
	}
}

// snapshot copies the progress; callers hold the mutex
func (o *Orchestrator) snapshot() ReconciliationProgress {
	s := o.currentProgress
	s.Warnings = append([]string(nil), o.currentProgress.Warnings...)
	return s
}
