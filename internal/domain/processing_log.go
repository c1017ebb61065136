package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the lifecycle state of an upload.
type ProcessingStatus string

const (
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// ProcessingLog captures the outcome of a single upload.
type ProcessingLog struct {
	ID               uuid.UUID        `json:"id"`
	FileName         string           `json:"filename"`
	Status           ProcessingStatus `json:"status"`
	RecordsProcessed int              `json:"records_processed"`
	RecordsFailed    int              `json:"records_failed"`
	Errors           []string         `json:"errors"`
	Timestamp        time.Time        `json:"timestamp"`
	ProcessingTime   *float64         `json:"processing_time"`
}

// NewProcessingLog starts a log in the processing state.
func NewProcessingLog(fileName string, now time.Time) ProcessingLog {
	return ProcessingLog{
		ID:        uuid.New(),
		FileName:  fileName,
		Status:    ProcessingStatusProcessing,
		Errors:    []string{},
		Timestamp: now.UTC(),
	}
}

// Complete moves the log to the completed state.
func (l ProcessingLog) Complete(processed, failed int, errs []string, elapsed time.Duration) ProcessingLog {
	return l.finish(ProcessingStatusCompleted, processed, failed, errs, elapsed)
}

// Fail moves the log to the failed state.
func (l ProcessingLog) Fail(failed int, errs []string, elapsed time.Duration) ProcessingLog {
	return l.finish(ProcessingStatusFailed, 0, failed, errs, elapsed)
}

func (l ProcessingLog) finish(status ProcessingStatus, processed, failed int, errs []string, elapsed time.Duration) ProcessingLog {
	seconds := elapsed.Seconds()
	l.Status = status
	l.RecordsProcessed = processed
	l.RecordsFailed = failed
	l.Errors = append([]string{}, errs...)
	l.ProcessingTime = &seconds
	return l
}

// Terminal reports whether the log reached completed or failed.
func (l ProcessingLog) Terminal() bool {
	return l.Status == ProcessingStatusCompleted || l.Status == ProcessingStatusFailed
}
