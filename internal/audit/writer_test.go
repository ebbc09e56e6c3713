package audit

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"groupsyncservice/internal/domain"
)

func testRecords() []domain.OperationRecord {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	return []domain.OperationRecord{
		{
			OperationID:     "op-1",
			Timestamp:       ts,
			SourceUser:      "jdoe",
			SourceDomain:    "contoso.com",
			SourceUserDN:    "CN=John Doe,OU=Staff,DC=contoso,DC=com",
			TargetGroup:     "Readers",
			TargetDomain:    "fabrikam.com",
			Status:          domain.StatusSuccess,
			Message:         "added to group",
			DurationSeconds: 1.5,
			ProcessedBy:     "svc-groupsync",
			ComputerName:    "batch-host",
		},
		{
			OperationID:  domain.SummaryOperationID,
			Timestamp:    ts,
			Status:       domain.StatusSuccess,
			Message:      "Total=1 Success=1 AlreadyMember=0 Errors=0 Skipped=0 Duration=1.50s",
			ProcessedBy:  "svc-groupsync",
			ComputerName: "batch-host",
		},
	}
}

func TestPersist_WritesOrderedLog(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() failed: %v", err)
	}
	w.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }

	path, warn, err := w.Persist(testRecords())
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if warn != nil {
		t.Fatalf("Persist() warn = %v, want nil", warn)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("audit written to %s, want inside %s", path, dir)
	}
	if filepath.Base(path) != "membership_audit_20260314_150926.csv" {
		t.Errorf("audit file name = %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("row count = %d, want header + 2 records", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v, want %v", rows[0], Columns)
	}
	if rows[1][0] != "op-1" || rows[1][1] != "2026-03-14 15:09:26" {
		t.Errorf("first record row = %v", rows[1])
	}
	if rows[1][9] != "1.500" {
		t.Errorf("duration column = %q, want %q", rows[1][9], "1.500")
	}
	if rows[2][0] != domain.SummaryOperationID {
		t.Errorf("last row operation ID = %q, want SUMMARY", rows[2][0])
	}
}

func TestPersist_FallsBackToTempDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out")
	w, err := NewWriter(target)
	if err != nil {
		t.Fatalf("NewWriter() failed: %v", err)
	}

	// Replace the output directory with a regular file so the primary write
	// fails regardless of process privileges.
	if err := os.RemoveAll(target); err != nil {
		t.Fatalf("RemoveAll() failed: %v", err)
	}
	if err := os.WriteFile(target, []byte("not a directory"), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	path, warn, err := w.Persist(testRecords())
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if warn == nil {
		t.Fatal("Persist() warn = nil, want persistence warning")
	}
	var perr *domain.PersistenceError
	if !errors.As(warn, &perr) {
		t.Errorf("warn %T is not a PersistenceError", warn)
	}
	if filepath.Dir(path) != filepath.Clean(os.TempDir()) {
		t.Errorf("fallback path = %s, want inside %s", path, os.TempDir())
	}
	defer os.Remove(path)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("fallback audit file missing: %v", err)
	}
}

func TestNewWriter_UncreatableDirIsSetupError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	_, err := NewWriter(filepath.Join(blocker, "out"))
	if err == nil {
		t.Fatal("NewWriter() error = nil, want SetupError")
	}
}
