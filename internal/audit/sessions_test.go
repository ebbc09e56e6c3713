package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"groupsyncservice/internal/domain"
)

func TestNewSessionLogger(t *testing.T) {
	tempDir := t.TempDir()

	sl, err := NewSessionLogger(tempDir, 30)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}
	if sl == nil {
		t.Fatal("NewSessionLogger() returned nil logger")
	}

	runsDir := filepath.Join(tempDir, "sessions", "runs")
	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		t.Error("NewSessionLogger() did not create runs directory")
	}
}

func TestSessionLifecycle(t *testing.T) {
	sl, err := NewSessionLogger(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}

	session, err := sl.StartSession("svc-groupsync", "batch-host", "cli", 2, false)
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}
	if session.Status != "running" {
		t.Errorf("Status = %q, want running", session.Status)
	}

	records := []domain.OperationRecord{
		{OperationID: "op-1", Timestamp: time.Now(), Status: domain.StatusSuccess},
		{OperationID: "op-2", Timestamp: time.Now(), Status: domain.StatusAlreadyMember},
	}
	for _, record := range records {
		if err := sl.RecordOperation(session.ID, record); err != nil {
			t.Fatalf("RecordOperation() failed: %v", err)
		}
	}

	summary := domain.BatchSummary{TotalProcessed: 2, SuccessCount: 1, AlreadyMemberCount: 1}
	if err := sl.CompleteSession(session.ID, summary); err != nil {
		t.Fatalf("CompleteSession() failed: %v", err)
	}

	// Session must be readable from disk after completion.
	loaded, err := sl.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if loaded.Status != "completed" {
		t.Errorf("Status = %q, want completed", loaded.Status)
	}
	if loaded.SuccessCount != 1 || loaded.AlreadyMemberCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", loaded.SuccessCount, loaded.AlreadyMemberCount)
	}
	if len(loaded.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(loaded.Records))
	}
	if loaded.Summary == nil || !loaded.Summary.Consistent() {
		t.Errorf("Summary = %+v, want consistent summary", loaded.Summary)
	}
}

func TestCompleteSession_ErrorsMarkFailed(t *testing.T) {
	sl, err := NewSessionLogger(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}

	session, err := sl.StartSession("svc-groupsync", "batch-host", "cli", 1, false)
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}
	if err := sl.RecordOperation(session.ID, domain.OperationRecord{OperationID: "op-1", Status: domain.StatusError}); err != nil {
		t.Fatalf("RecordOperation() failed: %v", err)
	}
	if err := sl.CompleteSession(session.ID, domain.BatchSummary{TotalProcessed: 1, ErrorCount: 1}); err != nil {
		t.Fatalf("CompleteSession() failed: %v", err)
	}

	loaded, err := sl.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if loaded.Status != "failed" {
		t.Errorf("Status = %q, want failed", loaded.Status)
	}
}

func TestDailySummaryAggregation(t *testing.T) {
	sl, err := NewSessionLogger(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		session, err := sl.StartSession("svc-groupsync", "batch-host", "cli", 1, false)
		if err != nil {
			t.Fatalf("StartSession() failed: %v", err)
		}
		if err := sl.RecordOperation(session.ID, domain.OperationRecord{OperationID: "op", Status: domain.StatusSuccess}); err != nil {
			t.Fatalf("RecordOperation() failed: %v", err)
		}
		if err := sl.CompleteSession(session.ID, domain.BatchSummary{TotalProcessed: 1, SuccessCount: 1}); err != nil {
			t.Fatalf("CompleteSession() failed: %v", err)
		}
	}

	today := time.Now().Format("2006-01-02")
	summary, err := sl.GetDailySummary(today)
	if err != nil {
		t.Fatalf("GetDailySummary() failed: %v", err)
	}
	if summary.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", summary.TotalSessions)
	}
	if summary.CompletedSessions != 2 {
		t.Errorf("CompletedSessions = %d, want 2", summary.CompletedSessions)
	}
	if summary.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", summary.SuccessCount)
	}
}

func TestGetDailySummary_MissingDateIsEmpty(t *testing.T) {
	sl, err := NewSessionLogger(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}

	summary, err := sl.GetDailySummary("1999-01-01")
	if err != nil {
		t.Fatalf("GetDailySummary() failed: %v", err)
	}
	if summary.TotalSessions != 0 || len(summary.Sessions) != 0 {
		t.Errorf("summary = %+v, want empty", summary)
	}
}

func TestGetStatistics(t *testing.T) {
	sl, err := NewSessionLogger(t.TempDir(), 30)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}

	session, err := sl.StartSession("svc-groupsync", "batch-host", "api", 2, false)
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}
	records := []domain.OperationRecord{
		{OperationID: "op-1", Status: domain.StatusSuccess, TargetDomain: "fabrikam.com", TargetGroup: "Readers"},
		{OperationID: "op-2", Status: domain.StatusAlreadyMember, TargetDomain: "fabrikam.com", TargetGroup: "Readers"},
	}
	for _, record := range records {
		if err := sl.RecordOperation(session.ID, record); err != nil {
			t.Fatalf("RecordOperation() failed: %v", err)
		}
	}
	if err := sl.CompleteSession(session.ID, domain.BatchSummary{TotalProcessed: 2, SuccessCount: 1, AlreadyMemberCount: 1}); err != nil {
		t.Fatalf("CompleteSession() failed: %v", err)
	}

	now := time.Now()
	stats, err := sl.GetStatistics(now.AddDate(0, 0, -1), now)
	if err != nil {
		t.Fatalf("GetStatistics() failed: %v", err)
	}
	if stats.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", stats.TotalSessions)
	}
	if stats.TargetGroups["fabrikam.com\\Readers"] != 2 {
		t.Errorf("TargetGroups = %v", stats.TargetGroups)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100", stats.SuccessRate)
	}
}

func TestRotateOldLogs(t *testing.T) {
	dir := t.TempDir()
	sl, err := NewSessionLogger(dir, 7)
	if err != nil {
		t.Fatalf("NewSessionLogger() failed: %v", err)
	}

	oldFile := filepath.Join(dir, "sessions", "batches_2020-01-01.json")
	if err := os.WriteFile(oldFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	oldTime := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("Chtimes() failed: %v", err)
	}

	if err := sl.RotateOldLogs(); err != nil {
		t.Fatalf("RotateOldLogs() failed: %v", err)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("RotateOldLogs() did not remove expired summary file")
	}
}
