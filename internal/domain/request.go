// Package domain defines the core domain types for cross-domain group
// membership operations.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// MembershipRequest describes one user-to-group assignment across domains.
// Requests are parsed once from the input table and are immutable afterwards.
type MembershipRequest struct {
	SourceDomain string `json:"source_domain"` // Domain the user account lives in
	SourceUser   string `json:"source_user"`   // sAMAccountName of the user
	TargetDomain string `json:"target_domain"` // Domain the group lives in
	TargetGroup  string `json:"target_group"`  // Name of the target group
}

// Validate reports the first empty-after-trim field, if any. A request that
// fails validation is skipped by the processor, never processed.
func (r MembershipRequest) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"SourceDomain", r.SourceDomain},
		{"SourceUser", r.SourceUser},
		{"TargetDomain", r.TargetDomain},
		{"TargetGroup", r.TargetGroup},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError(f.name, "field is empty")
		}
	}
	return nil
}

// SourceIdentity returns the display identity DOMAIN\user for the source side.
func (r MembershipRequest) SourceIdentity() string {
	return fmt.Sprintf("%s\\%s", r.SourceDomain, r.SourceUser)
}

// TargetIdentity returns the display identity DOMAIN\group for the target side.
func (r MembershipRequest) TargetIdentity() string {
	return fmt.Sprintf("%s\\%s", r.TargetDomain, r.TargetGroup)
}

// OperationStatus is the terminal outcome of processing one request.
type OperationStatus string

const (
	StatusSuccess       OperationStatus = "Success"
	StatusAlreadyMember OperationStatus = "AlreadyMember"
	StatusError         OperationStatus = "Error"
	StatusTestSuccess   OperationStatus = "TestSuccess"
	StatusSkipped       OperationStatus = "Skipped"
)

// IsValid reports whether s is one of the closed set of statuses.
func (s OperationStatus) IsValid() bool {
	switch s {
	case StatusSuccess, StatusAlreadyMember, StatusError, StatusTestSuccess, StatusSkipped:
		return true
	}
	return false
}

// SummaryOperationID is the sentinel operation ID of the trailing summary
// record appended after all rows have been processed.
const SummaryOperationID = "SUMMARY"

// OperationRecord is the audit record produced for one processed request.
// Records are created exactly once, appended to an ordered log, and never
// mutated after persistence.
type OperationRecord struct {
	OperationID     string          `json:"operation_id"`
	Timestamp       time.Time       `json:"timestamp"`
	SourceUser      string          `json:"source_user"`
	SourceDomain    string          `json:"source_domain"`
	SourceUserDN    string          `json:"source_user_dn,omitempty"`
	TargetGroup     string          `json:"target_group"`
	TargetDomain    string          `json:"target_domain"`
	Status          OperationStatus `json:"status"`
	Message         string          `json:"message,omitempty"`
	DurationSeconds float64         `json:"duration_seconds"`
	ProcessedBy     string          `json:"processed_by"`
	ComputerName    string          `json:"computer_name"`
	TestMode        bool            `json:"test_mode"`
}

// IsSummary reports whether the record is the trailing summary record.
func (r OperationRecord) IsSummary() bool {
	return r.OperationID == SummaryOperationID
}

// BatchSummary aggregates the counters for one batch run.
// Invariant: TotalProcessed == SuccessCount + ErrorCount +
// AlreadyMemberCount + SkippedCount.
type BatchSummary struct {
	TotalProcessed       int     `json:"total_processed"`
	SuccessCount         int     `json:"success_count"`
	ErrorCount           int     `json:"error_count"`
	AlreadyMemberCount   int     `json:"already_member_count"`
	SkippedCount         int     `json:"skipped_count"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}

// Consistent reports whether the summary invariant holds.
func (s BatchSummary) Consistent() bool {
	return s.TotalProcessed == s.SuccessCount+s.ErrorCount+s.AlreadyMemberCount+s.SkippedCount
}

// String returns a human-readable one-line summary.
func (s BatchSummary) String() string {
	return fmt.Sprintf(
		"Total=%d Success=%d AlreadyMember=%d Errors=%d Skipped=%d Duration=%.2fs",
		s.TotalProcessed, s.SuccessCount, s.AlreadyMemberCount, s.ErrorCount,
		s.SkippedCount, s.TotalDurationSeconds,
	)
}

// ConnectivityResult is the pre-flight probe outcome for one domain.
type ConnectivityResult struct {
	Domain          string `json:"domain"`
	Reachable       bool   `json:"reachable"`
	ControllerFound bool   `json:"controller_found"`
	ControllerName  string `json:"controller_name,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ConnectivitySummary aggregates probe results across all distinct domains.
type ConnectivitySummary struct {
	Results                  map[string]ConnectivityResult `json:"results"`
	AllReachable             bool                          `json:"all_reachable"`
	AllControllersAccessible bool                          `json:"all_controllers_accessible"`
	UnreachableDomains       []string                      `json:"unreachable_domains,omitempty"`
	DomainsWithoutController []string                      `json:"domains_without_controller,omitempty"`
}

// CredentialResult is the pre-flight credential validation outcome for one domain.
type CredentialResult struct {
	Domain   string `json:"domain"`
	IsValid  bool   `json:"is_valid"`
	Username string `json:"username"`
	Error    string `json:"error,omitempty"`
}
