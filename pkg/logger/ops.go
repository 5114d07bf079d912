package logger

import (
	"fmt"
	"sync"
	"time"
)

// BatchTracker tracks the per-record outcome counters of one interchange
// file while it is processed. Safe for concurrent use, although records
// within a file are processed sequentially.
type BatchTracker struct {
	logger     Logger
	file       string
	channel    string
	inserted   int64
	duplicates int64
	failed     int64
	startTime  time.Time
	mutex      sync.RWMutex
}

// NewBatchTracker creates a tracker for one file
func NewBatchTracker(file, channel string, log Logger) *BatchTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	tracker := &BatchTracker{
		logger:    log.WithComponent("batch"),
		file:      file,
		channel:   channel,
		startTime: time.Now(),
	}

	tracker.logger.WithFields(Fields{
		"file":    file,
		"channel": channel,
	}).Info("Starting file")

	return tracker
}

// Inserted counts one record accepted by the ledger
func (b *BatchTracker) Inserted() {
	b.mutex.Lock()
	b.inserted++
	b.mutex.Unlock()
}

// Duplicate counts one record the ledger already carried
func (b *BatchTracker) Duplicate() {
	b.mutex.Lock()
	b.duplicates++
	b.mutex.Unlock()
}

// Failed counts one record that could not be processed
func (b *BatchTracker) Failed() {
	b.mutex.Lock()
	b.failed++
	b.mutex.Unlock()
}

// Stats returns a snapshot of the counters
func (b *BatchTracker) Stats() BatchStats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return BatchStats{
		File:       b.file,
		Channel:    b.channel,
		Inserted:   b.inserted,
		Duplicates: b.duplicates,
		Failed:     b.failed,
		Duration:   time.Since(b.startTime),
	}
}

// Complete logs the final counters for the file
func (b *BatchTracker) Complete() {
	stats := b.Stats()

	b.logger.WithFields(Fields{
		"file":       stats.File,
		"channel":    stats.Channel,
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
		"failed":     stats.Failed,
		"duration":   stats.Duration.String(),
	}).Info("File completed")
}

// BatchStats contains the outcome counters for one file
type BatchStats struct {
	File       string        `json:"file"`
	Channel    string        `json:"channel"`
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Failed     int64         `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// Total returns the number of records seen
func (s BatchStats) Total() int64 {
	return s.Inserted + s.Duplicates + s.Failed
}

// String returns a human-readable representation of the counters
func (s BatchStats) String() string {
	return fmt.Sprintf("%s: %d inserted, %d duplicates, %d failed in %v",
		s.File, s.Inserted, s.Duplicates, s.Failed, s.Duration)
}

// OperationLogger provides structured logging for operations with timing
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
		logger:    logger.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Info("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

// WithFields adds multiple fields to the operation context
func (ol *OperationLogger) WithFields(fields Fields) *OperationLogger {
	for k, v := range fields {
		ol.fields[k] = v
	}
	return ol
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string) {
	fields := Fields{
		"operation": ol.operation,
		"step":      step,
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info("Operation step")
}

// Progress logs progress information
func (ol *OperationLogger) Progress(message string, processed, total int64) {
	fields := Fields{
		"operation": ol.operation,
		"processed": processed,
		"total":     total,
	}
	if total > 0 {
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(processed)/float64(total)*100)
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info(message)
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	duration := time.Since(ol.startTime)
	fields := Fields{
		"operation": ol.operation,
		"duration":  duration.String(),
		"status":    "success",
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	duration := time.Since(ol.startTime)
	fields := Fields{
		"operation": ol.operation,
		"duration":  duration.String(),
		"status":    "error",
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithError(err).WithFields(fields).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(message string) {
	fields := Fields{
		"operation": ol.operation,
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Warn(message)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()

	if err != nil {
		ol.Error(err, "Operation failed")
	} else {
		ol.Success("Operation completed successfully")
	}

	return err
}
