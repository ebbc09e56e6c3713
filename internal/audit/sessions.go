package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"groupsyncservice/internal/domain"
)

// BatchSession represents one complete batch run
type BatchSession struct {
	ID                 string                   `json:"id"`
	Operator           string                   `json:"operator"`
	ComputerName       string                   `json:"computer_name"`
	Source             string                   `json:"source"` // "cli" or "api"
	TestMode           bool                     `json:"test_mode"`
	StartTime          time.Time                `json:"start_time"`
	EndTime            *time.Time               `json:"end_time,omitempty"`
	Duration           int64                    `json:"duration_ms"`
	Status             string                   `json:"status"` // running, completed, failed
	TotalRequests      int                      `json:"total_requests"`
	SuccessCount       int                      `json:"success_count"`
	ErrorCount         int                      `json:"error_count"`
	AlreadyMemberCount int                      `json:"already_member_count"`
	SkippedCount       int                      `json:"skipped_count"`
	ErrorMessage       string                   `json:"error_message,omitempty"`
	Records            []domain.OperationRecord `json:"records"`
	Summary            *domain.BatchSummary     `json:"summary,omitempty"`
}

// DailySummary contains aggregated statistics for a day
type DailySummary struct {
	Date              string         `json:"date"` // YYYY-MM-DD format
	TotalSessions     int            `json:"total_sessions"`
	CompletedSessions int            `json:"completed_sessions"`
	FailedSessions    int            `json:"failed_sessions"`
	TotalRequests     int            `json:"total_requests"`
	SuccessCount      int            `json:"success_count"`
	ErrorCount        int            `json:"error_count"`
	AlreadyMembers    int            `json:"already_member_count"`
	SkippedCount      int            `json:"skipped_count"`
	AvgDuration       int64          `json:"avg_duration_ms"`
	Sessions          []BatchSession `json:"sessions"`
}

// SessionLogger manages batch session logging
type SessionLogger struct {
	dataDir        string
	sessionsDir    string
	mu             sync.RWMutex
	activeSessions map[string]*BatchSession
	retentionDays  int
}

// NewSessionLogger creates a new session logger
func NewSessionLogger(dataDir string, retentionDays int) (*SessionLogger, error) {
	batchesDir := filepath.Join(dataDir, "sessions")
	sessionsDir := filepath.Join(batchesDir, "runs")

	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &SessionLogger{
		dataDir:        batchesDir,
		sessionsDir:    sessionsDir,
		activeSessions: make(map[string]*BatchSession),
		retentionDays:  retentionDays,
	}, nil
}

// StartSession creates a new batch session
func (sl *SessionLogger) StartSession(operator, computerName, source string, totalRequests int, testMode bool) (*BatchSession, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	session := &BatchSession{
		ID:            uuid.New().String(),
		Operator:      operator,
		ComputerName:  computerName,
		Source:        source,
		TestMode:      testMode,
		StartTime:     time.Now(),
		Status:        "running",
		TotalRequests: totalRequests,
		Records:       make([]domain.OperationRecord, 0, totalRequests),
	}

	sl.activeSessions[session.ID] = session

	if err := sl.saveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// RecordOperation appends one operation record to a running session and
// updates its counters.
func (sl *SessionLogger) RecordOperation(sessionID string, record domain.OperationRecord) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	session, ok := sl.activeSessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}

	session.Records = append(session.Records, record)
	switch record.Status {
	case domain.StatusSuccess, domain.StatusTestSuccess:
		session.SuccessCount++
	case domain.StatusAlreadyMember:
		session.AlreadyMemberCount++
	case domain.StatusError:
		session.ErrorCount++
	case domain.StatusSkipped:
		session.SkippedCount++
	}

	return sl.saveSession(session)
}

// CompleteSession marks a session as completed and stores the batch summary
func (sl *SessionLogger) CompleteSession(sessionID string, summary domain.BatchSummary) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	session, ok := sl.activeSessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}

	now := time.Now()
	session.EndTime = &now
	session.Duration = now.Sub(session.StartTime).Milliseconds()
	session.Summary = &summary

	if session.ErrorCount > 0 {
		session.Status = "failed"
	} else {
		session.Status = "completed"
	}

	if err := sl.saveSession(session); err != nil {
		return err
	}
	if err := sl.addToDailySummary(session); err != nil {
		return err
	}

	delete(sl.activeSessions, sessionID)
	return nil
}

// FailSession marks a session as failed before completion
func (sl *SessionLogger) FailSession(sessionID string, errorMessage string) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	session, ok := sl.activeSessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}

	now := time.Now()
	session.EndTime = &now
	session.Duration = now.Sub(session.StartTime).Milliseconds()
	session.Status = "failed"
	session.ErrorMessage = errorMessage

	if err := sl.saveSession(session); err != nil {
		return err
	}
	if err := sl.addToDailySummary(session); err != nil {
		return err
	}

	delete(sl.activeSessions, sessionID)
	return nil
}

// GetSession retrieves a session by ID
func (sl *SessionLogger) GetSession(sessionID string) (*BatchSession, error) {
	sl.mu.RLock()
	if session, ok := sl.activeSessions[sessionID]; ok {
		sl.mu.RUnlock()
		return session, nil
	}
	sl.mu.RUnlock()

	sessionFile := filepath.Join(sl.sessionsDir, fmt.Sprintf("%s.json", sessionID))
	data, err := os.ReadFile(sessionFile)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	var session BatchSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &session, nil
}

// GetActiveSessions returns all currently running sessions, newest first
func (sl *SessionLogger) GetActiveSessions() []*BatchSession {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	sessions := make([]*BatchSession, 0, len(sl.activeSessions))
	for _, session := range sl.activeSessions {
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions
}

// GetDailySummary retrieves the daily summary for a specific date
func (sl *SessionLogger) GetDailySummary(date string) (*DailySummary, error) {
	summaryFile := filepath.Join(sl.dataDir, fmt.Sprintf("batches_%s.json", date))

	data, err := os.ReadFile(summaryFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &DailySummary{Date: date, Sessions: []BatchSession{}}, nil
		}
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var summary DailySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// GetSessionsInDateRange retrieves all sessions within a date range
func (sl *SessionLogger) GetSessionsInDateRange(startDate, endDate time.Time) ([]BatchSession, error) {
	sessions := make([]BatchSession, 0)

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		summary, err := sl.GetDailySummary(d.Format("2006-01-02"))
		if err != nil {
			continue
		}
		sessions = append(sessions, summary.Sessions...)
	}
	return sessions, nil
}

// Statistics contains aggregated statistics over a date range
type Statistics struct {
	TotalSessions     int            `json:"total_sessions"`
	CompletedSessions int            `json:"completed_sessions"`
	FailedSessions    int            `json:"failed_sessions"`
	TotalRequests     int            `json:"total_requests"`
	SuccessCount      int            `json:"success_count"`
	ErrorCount        int            `json:"error_count"`
	AlreadyMembers    int            `json:"already_member_count"`
	SkippedCount      int            `json:"skipped_count"`
	TotalDuration     int64          `json:"total_duration_ms"`
	AvgDuration       int64          `json:"avg_duration_ms"`
	SuccessRate       float64        `json:"success_rate"`
	TargetGroups      map[string]int `json:"target_groups"`
	ErrorCategories   map[string]int `json:"error_categories"`
	OperatorActivity  map[string]int `json:"operator_activity"`
}

// GetStatistics returns aggregated statistics for a date range
func (sl *SessionLogger) GetStatistics(startDate, endDate time.Time) (*Statistics, error) {
	stats := &Statistics{
		TargetGroups:     make(map[string]int),
		ErrorCategories:  make(map[string]int),
		OperatorActivity: make(map[string]int),
	}

	sessions, err := sl.GetSessionsInDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		stats.TotalSessions++
		stats.TotalRequests += session.TotalRequests
		stats.SuccessCount += session.SuccessCount
		stats.ErrorCount += session.ErrorCount
		stats.AlreadyMembers += session.AlreadyMemberCount
		stats.SkippedCount += session.SkippedCount
		stats.TotalDuration += session.Duration

		switch session.Status {
		case "completed":
			stats.CompletedSessions++
		case "failed":
			stats.FailedSessions++
		}

		for _, record := range session.Records {
			if record.IsSummary() {
				continue
			}
			stats.TargetGroups[record.TargetDomain+"\\"+record.TargetGroup]++
			if record.Status == domain.StatusError {
				stats.ErrorCategories[record.Message]++
			}
		}

		stats.OperatorActivity[session.Operator]++
	}

	if stats.TotalSessions > 0 {
		stats.AvgDuration = stats.TotalDuration / int64(stats.TotalSessions)
	}
	processed := stats.SuccessCount + stats.ErrorCount + stats.AlreadyMembers
	if processed > 0 {
		stats.SuccessRate = float64(stats.SuccessCount+stats.AlreadyMembers) / float64(processed) * 100
	}
	return stats, nil
}

// RotateOldLogs removes daily summaries and session files older than the
// configured retention window.
func (sl *SessionLogger) RotateOldLogs() error {
	cutoff := time.Now().AddDate(0, 0, -sl.retentionDays)

	summaries, err := filepath.Glob(filepath.Join(sl.dataDir, "batches_*.json"))
	if err != nil {
		return fmt.Errorf("failed to list summary files: %w", err)
	}
	runs, err := filepath.Glob(filepath.Join(sl.sessionsDir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list session files: %w", err)
	}

	for _, file := range append(summaries, runs...) {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				return fmt.Errorf("failed to remove old log file %s: %w", file, err)
			}
		}
	}
	return nil
}

// saveSession persists a session to disk
func (sl *SessionLogger) saveSession(session *BatchSession) error {
	sessionFile := filepath.Join(sl.sessionsDir, fmt.Sprintf("%s.json", session.ID))
	tempFile := sessionFile + ".tmp"

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, sessionFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// addToDailySummary adds a finished session to the daily summary
func (sl *SessionLogger) addToDailySummary(session *BatchSession) error {
	date := session.StartTime.Format("2006-01-02")
	summaryFile := filepath.Join(sl.dataDir, fmt.Sprintf("batches_%s.json", date))
	lockFile := filepath.Join(sl.dataDir, ".sessions.lock")

	lock := flock.New(lockFile)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	summary, err := sl.GetDailySummary(date)
	if err != nil {
		return err
	}

	summary.Sessions = append(summary.Sessions, *session)
	summary.TotalSessions++
	summary.TotalRequests += session.TotalRequests
	summary.SuccessCount += session.SuccessCount
	summary.ErrorCount += session.ErrorCount
	summary.AlreadyMembers += session.AlreadyMemberCount
	summary.SkippedCount += session.SkippedCount

	switch session.Status {
	case "completed":
		summary.CompletedSessions++
	case "failed":
		summary.FailedSessions++
	}

	var totalDuration int64
	for _, s := range summary.Sessions {
		totalDuration += s.Duration
	}
	if len(summary.Sessions) > 0 {
		summary.AvgDuration = totalDuration / int64(len(summary.Sessions))
	}

	tempFile := summaryFile + ".tmp"
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, summaryFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
