package domain

import (
	"testing"
	"time"
)

func TestProcessingLogLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	entry := NewProcessingLog("orders.csv", now)
	if entry.Status != ProcessingStatusProcessing || entry.Terminal() {
		t.Fatalf("expected new log to be processing, got %s", entry.Status)
	}
	if entry.Timestamp.Location() != time.UTC {
		t.Fatalf("expected timestamp in UTC")
	}

	errs := []string{"Removed 1 duplicate records"}
	done := entry.Complete(9, 1, errs, 1500*time.Millisecond)
	errs[0] = "mutated"
	if done.Status != ProcessingStatusCompleted || !done.Terminal() {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.RecordsProcessed != 9 || done.RecordsFailed != 1 {
		t.Fatalf("unexpected counts: %+v", done)
	}
	if done.Errors[0] != "Removed 1 duplicate records" {
		t.Fatalf("expected errors to be copied, got %v", done.Errors)
	}
	if done.ProcessingTime == nil || *done.ProcessingTime != 1.5 {
		t.Fatalf("expected processing time 1.5s, got %v", done.ProcessingTime)
	}

	failed := entry.Fail(10, nil, time.Second)
	if failed.Status != ProcessingStatusFailed || failed.RecordsProcessed != 0 || failed.RecordsFailed != 10 {
		t.Fatalf("unexpected failed log: %+v", failed)
	}
	if failed.Errors == nil {
		t.Fatalf("expected non-nil errors slice")
	}
}
