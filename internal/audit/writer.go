// Package audit persists the per-operation audit trail of a batch run: a
// tabular CSV log written once at the end of the run, plus JSON batch
// sessions with daily summaries.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"groupsyncservice/internal/domain"
)

// TimestampFormat is the audit log timestamp layout (yyyy-MM-dd HH:mm:ss).
const TimestampFormat = "2006-01-02 15:04:05"

// Columns is the audit CSV header, in order.
var Columns = []string{
	"OperationId", "Timestamp", "SourceUser", "SourceDomain", "SourceUserDN",
	"TargetGroup", "TargetDomain", "Status", "Message", "DurationSeconds",
	"ProcessedBy", "ComputerName", "TestMode",
}

// Writer persists ordered operation records as a CSV audit log. If the
// configured output directory is not writable at persistence time, the log
// falls back to the system temp directory; the batch verdict is unaffected.
type Writer struct {
	outputDir string
	mu        sync.Mutex

	// now is overridable for tests.
	now func() time.Time
}

// NewWriter creates an audit writer targeting outputDir. The directory is
// created up front so an unwritable location fails the run before any
// mutation (SetupError), not after.
func NewWriter(outputDir string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0700); err != nil {
		return nil, domain.NewSetupError("output-dir", fmt.Sprintf("cannot create output directory %s", outputDir), err)
	}
	return &Writer{outputDir: outputDir, now: time.Now}, nil
}

// Persist writes the full ordered log (operation records plus the trailing
// summary record) to a timestamped CSV file in the output directory.
//
// On a primary write failure it falls back to the system temp directory and
// returns the fallback path together with a non-nil warning; err is non-nil
// only when both locations fail. The batch has already completed by this
// point, so neither outcome changes its verdict.
func (w *Writer) Persist(records []domain.OperationRecord) (path string, warn error, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := fmt.Sprintf("membership_audit_%s.csv", w.now().Format("20060102_150405"))

	primary := filepath.Join(w.outputDir, name)
	if err := w.writeFile(primary, records); err == nil {
		return primary, nil, nil
	} else {
		warn = &domain.PersistenceError{Path: primary, Cause: err}
	}

	fallback := filepath.Join(os.TempDir(), name)
	if err := w.writeFile(fallback, records); err != nil {
		return "", warn, fmt.Errorf("fallback audit write to %s failed: %w", fallback, err)
	}
	return fallback, warn, nil
}

// writeFile writes the CSV atomically under a lock file next to the target.
func (w *Writer) writeFile(path string, records []domain.OperationRecord) error {
	lock := flock.New(filepath.Join(filepath.Dir(path), ".audit.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	tempFile := path + ".tmp"
	f, err := os.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create audit file: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(Columns); err != nil {
		f.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, record := range records {
		if err := cw.Write(recordRow(record)); err != nil {
			f.Close()
			os.Remove(tempFile)
			return fmt.Errorf("failed to write record %s: %w", record.OperationID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to flush audit file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close audit file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// recordRow maps an operation record to its CSV row, in column order.
func recordRow(r domain.OperationRecord) []string {
	return []string{
		r.OperationID,
		r.Timestamp.Format(TimestampFormat),
		r.SourceUser,
		r.SourceDomain,
		r.SourceUserDN,
		r.TargetGroup,
		r.TargetDomain,
		string(r.Status),
		r.Message,
		strconv.FormatFloat(r.DurationSeconds, 'f', 3, 64),
		r.ProcessedBy,
		r.ComputerName,
		strconv.FormatBool(r.TestMode),
	}
}
