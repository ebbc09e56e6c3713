// Package batch implements the cross-domain membership mutation engine: it
// consumes validated membership requests, applies them against the remote
// directory through the retry executor, classifies outcomes, and produces
// the ordered per-operation audit log plus a batch summary.
package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"groupsyncservice/internal/classify"
	"groupsyncservice/internal/directory"
	"groupsyncservice/internal/domain"
	"groupsyncservice/internal/retry"
)

// DefaultRetryablePatterns matches the transient directory faults worth
// retrying; terminal failures such as not-found or access-denied are not.
var DefaultRetryablePatterns = []string{
	"server is not operational",
	"rpc server",
	"timeout",
	"timed out",
}

// Config is the processing surface consumed by the Processor. Bounds are
// validated here, at configuration time, not inside the retry executor.
type Config struct {
	TestMode           bool
	MaxRetries         int // retries after the first attempt, [1,10]
	RetryDelaySeconds  int // delay before the first retry, [1,60]
	ExponentialBackoff bool
	// RetryablePatterns restricts retries to failures whose message matches;
	// empty means every failure is retryable.
	RetryablePatterns []string
	// ProcessedBy and ComputerName identify the actor in audit records.
	ProcessedBy  string
	ComputerName string
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return domain.NewValidationError("MaxRetries", fmt.Sprintf("must be in [1,10], got %d", c.MaxRetries))
	}
	if c.RetryDelaySeconds < 1 || c.RetryDelaySeconds > 60 {
		return domain.NewValidationError("RetryDelaySeconds", fmt.Sprintf("must be in [1,60], got %d", c.RetryDelaySeconds))
	}
	return nil
}

// Result is the outcome of one batch run.
type Result struct {
	// Records is the ordered log: one record per valid request, in input
	// order, plus the trailing SUMMARY record.
	Records []domain.OperationRecord
	Summary domain.BatchSummary
	// Succeeded is false only when at least one row ended in Error.
	Succeeded bool
}

// Processor executes membership batches sequentially. Processing is
// single-threaded: directory mutations carry controller-side replication and
// rate concerns, and sequential rows keep the audit order equal to input order.
type Processor struct {
	client   directory.Client
	cred     directory.Credential
	cfg      Config
	executor *retry.Executor

	// OnRecord, when set, receives each record as it is appended. Used to
	// stream records into the session log.
	OnRecord func(domain.OperationRecord)

	// overridable for tests
	now   func() time.Time
	newID func() string
	logf  func(format string, args ...interface{})
}

// New creates a Processor. The credential is shared read-only across all rows.
func New(client directory.Client, cred directory.Credential, cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ProcessedBy == "" {
		cfg.ProcessedBy = cred.Username
	}

	p := &Processor{
		client: client,
		cred:   cred,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logf:   log.Printf,
	}
	p.executor = &retry.Executor{
		MaxRetries:         cfg.MaxRetries,
		InitialDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		ExponentialBackoff: cfg.ExponentialBackoff,
		RetryablePatterns:  cfg.RetryablePatterns,
		Logf:               func(format string, args ...interface{}) { p.logf(format, args...) },
	}
	return p, nil
}

// Run processes all requests in input order. A failing row never aborts the
// batch; only an empty request set is a setup failure. When ctx is cancelled
// the processor stops accepting rows and returns the partial ordered log so
// the caller can still persist it.
func (p *Processor) Run(ctx context.Context, requests []domain.MembershipRequest) (*Result, error) {
	if len(requests) == 0 {
		return nil, domain.NewSetupError("batch", "no requests to process", nil)
	}

	result := &Result{}
	batchStart := p.now()

	for i, req := range requests {
		if ctx.Err() != nil {
			p.logf("batch cancelled after %d of %d rows", i, len(requests))
			break
		}

		result.Summary.TotalProcessed++

		if err := req.Validate(); err != nil {
			result.Summary.SkippedCount++
			p.logf("row %d skipped: %v", i+1, err)
			continue
		}

		record := p.processRow(ctx, req)
		result.Records = append(result.Records, record)
		if p.OnRecord != nil {
			p.OnRecord(record)
		}

		switch record.Status {
		case domain.StatusSuccess, domain.StatusTestSuccess:
			result.Summary.SuccessCount++
		case domain.StatusAlreadyMember:
			result.Summary.AlreadyMemberCount++
		case domain.StatusError:
			result.Summary.ErrorCount++
		}
	}

	result.Summary.TotalDurationSeconds = p.now().Sub(batchStart).Seconds()
	result.Succeeded = result.Summary.ErrorCount == 0

	summaryRecord := p.summaryRecord(result.Summary)
	result.Records = append(result.Records, summaryRecord)
	if p.OnRecord != nil {
		p.OnRecord(summaryRecord)
	}

	p.logf("batch finished: %s", result.Summary)
	return result, nil
}

// processRow applies one request and converts any failure into a terminal
// record. State per row: Pending -> ResolvingUser -> AddingMember -> terminal.
func (p *Processor) processRow(ctx context.Context, req domain.MembershipRequest) domain.OperationRecord {
	record := domain.OperationRecord{
		OperationID:  p.newID(),
		Timestamp:    p.now(),
		SourceUser:   req.SourceUser,
		SourceDomain: req.SourceDomain,
		TargetGroup:  req.TargetGroup,
		TargetDomain: req.TargetDomain,
		ProcessedBy:  p.cfg.ProcessedBy,
		ComputerName: p.cfg.ComputerName,
		TestMode:     p.cfg.TestMode,
	}

	description := fmt.Sprintf("add %s to %s", req.SourceIdentity(), req.TargetIdentity())
	start := p.now()

	var resolvedDN string
	operation := func() error {
		principal, err := p.client.LookupUser(ctx, req.SourceUser, req.SourceDomain, p.cred)
		if err != nil {
			return err
		}
		resolvedDN = principal.DistinguishedName
		return p.client.AddGroupMember(ctx, req.TargetGroup, principal.DistinguishedName, req.TargetDomain, p.cred, p.cfg.TestMode)
	}

	var err error
	if p.cfg.TestMode {
		// Dry-run still contacts the target server, validating resolution
		// and permissions without mutating state; no retry wrapping.
		err = operation()
	} else {
		err = p.executor.Execute(ctx, description, operation)
	}

	record.DurationSeconds = p.now().Sub(start).Seconds()
	record.SourceUserDN = resolvedDN

	switch {
	case err == nil && p.cfg.TestMode:
		record.Status = domain.StatusTestSuccess
		record.Message = fmt.Sprintf("dry run: %s would be added to %s", req.SourceIdentity(), req.TargetIdentity())
	case err == nil:
		record.Status = domain.StatusSuccess
		record.Message = fmt.Sprintf("%s added to %s", req.SourceIdentity(), req.TargetIdentity())
	default:
		category := classify.ClassifyError(err)
		if category == classify.AlreadyExists {
			record.Status = domain.StatusAlreadyMember
			record.Message = err.Error()
		} else {
			record.Status = domain.StatusError
			record.Message = fmt.Sprintf("[%s] %v", category, err)
		}
	}
	return record
}

// summaryRecord builds the synthetic trailing record carrying the aggregate
// counters in its message field.
func (p *Processor) summaryRecord(summary domain.BatchSummary) domain.OperationRecord {
	status := domain.StatusSuccess
	if summary.ErrorCount > 0 {
		status = domain.StatusError
	}
	return domain.OperationRecord{
		OperationID:     domain.SummaryOperationID,
		Timestamp:       p.now(),
		Status:          status,
		Message:         summary.String(),
		DurationSeconds: summary.TotalDurationSeconds,
		ProcessedBy:     p.cfg.ProcessedBy,
		ComputerName:    p.cfg.ComputerName,
		TestMode:        p.cfg.TestMode,
	}
}
