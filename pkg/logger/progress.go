package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker counts completed units of a long-running operation, such as
// filing files loaded, and logs a summary at most once per interval
type ProgressTracker struct {
	logger      Logger
	operation   string
	unit        string
	total       int64
	current     int64
	failed      int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.RWMutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string        `json:"operation"`
	Unit        string        `json:"unit"`
	Total       int64         `json:"total"`
	LogInterval time.Duration `json:"log_interval"`
	Logger      Logger        `json:"-"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 2 * time.Second
	}
	if config.Unit == "" {
		config.Unit = "items"
	}

	now := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		unit:        config.Unit,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
		"unit":      config.Unit,
	}).Debug("Starting operation")

	return tracker
}

// Increment records one completed unit
func (p *ProgressTracker) Increment() {
	p.advance(false)
}

// Fail records one unit that could not be completed
func (p *ProgressTracker) Fail() {
	p.advance(true)
}

func (p *ProgressTracker) advance(failed bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current++
	if failed {
		p.failed++
	}

	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logger.WithFields(p.fields(now)).Info("Progress update")
		p.lastLogTime = now
	}
}

// Complete logs the final statistics of the operation
func (p *ProgressTracker) Complete() {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	entry := p.logger.WithFields(p.fields(time.Now()))
	if p.failed > 0 {
		entry.Warn("Operation completed with failures")
		return
	}
	entry.Info("Operation completed")
}

// CompleteWithError logs the operation as aborted
func (p *ProgressTracker) CompleteWithError(err error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	p.logger.WithError(err).WithFields(p.fields(time.Now())).Error("Operation aborted")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	var percentage float64
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}

	return ProgressStats{
		Operation:  p.operation,
		Unit:       p.unit,
		Total:      p.total,
		Current:    p.current,
		Failed:     p.failed,
		Percentage: percentage,
		Duration:   time.Since(p.startTime),
	}
}

// fields must be called with the mutex held
func (p *ProgressTracker) fields(now time.Time) Fields {
	fields := Fields{
		"operation": p.operation,
		"processed": p.current,
		"unit":      p.unit,
		"duration":  now.Sub(p.startTime).String(),
	}
	if p.failed > 0 {
		fields["failed"] = p.failed
	}
	if p.total > 0 {
		fields["total"] = p.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(p.current)/float64(p.total)*100)
	}
	return fields
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Unit       string        `json:"unit"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Failed     int64         `json:"failed"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d %s (%.1f%%), %d failed",
			ps.Operation, ps.Current, ps.Total, ps.Unit, ps.Percentage, ps.Failed)
	}
	return fmt.Sprintf("%s: %d %s processed, %d failed", ps.Operation, ps.Current, ps.Unit, ps.Failed)
}

// OperationLogger logs the steps of one operation with shared fields and timing
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger,
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

func (ol *OperationLogger) with(extra Fields) Logger {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return ol.logger.WithFields(fields)
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string, extra Fields) {
	if extra == nil {
		extra = Fields{}
	}
	extra["step"] = step
	ol.with(extra).Debug("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.with(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	}).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.with(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	}).WithError(err).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(message string) {
	ol.with(nil).Warn(message)
}
