// Package ingest parses the tabular input file into membership requests.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"groupsyncservice/internal/domain"
)

// Required input columns, matched by exact name.
const (
	ColumnSourceDomain = "SourceDomain"
	ColumnSourceUser   = "SourceUser"
	ColumnTargetDomain = "TargetDomain"
	ColumnTargetGroup  = "TargetGroup"
)

// RequiredColumns lists the columns the input file must carry.
var RequiredColumns = []string{ColumnSourceDomain, ColumnSourceUser, ColumnTargetDomain, ColumnTargetGroup}

// ReadFile parses the CSV file at path into membership requests. The header
// must contain all required columns (extra columns are ignored). Rows that do
// not carry enough fields to cover the mapped columns are dropped as
// malformed and counted; rows with empty field values are passed through so
// the processor can count them as skipped.
//
// Failures to open or parse the file, and a missing required column, are
// SetupErrors: the batch must not start.
func ReadFile(path string) ([]domain.MembershipRequest, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, domain.NewSetupError("ingest", fmt.Sprintf("cannot open input file %s", path), err)
	}
	defer f.Close()

	requests, malformed, err := Read(f)
	if err != nil {
		return nil, 0, domain.NewSetupError("ingest", fmt.Sprintf("cannot parse input file %s", path), err)
	}
	return requests, malformed, nil
}

// Read parses CSV content from r. See ReadFile for the contract.
func Read(r io.Reader) ([]domain.MembershipRequest, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("input is empty")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := mapColumns(header)
	if err != nil {
		return nil, 0, err
	}

	var requests []domain.MembershipRequest
	malformed := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read row: %w", err)
		}

		if !rowCovers(record, index) {
			malformed++
			continue
		}

		requests = append(requests, domain.MembershipRequest{
			SourceDomain: strings.TrimSpace(record[index[ColumnSourceDomain]]),
			SourceUser:   strings.TrimSpace(record[index[ColumnSourceUser]]),
			TargetDomain: strings.TrimSpace(record[index[ColumnTargetDomain]]),
			TargetGroup:  strings.TrimSpace(record[index[ColumnTargetGroup]]),
		})
	}
	return requests, malformed, nil
}

// mapColumns resolves the position of each required column in the header.
func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(RequiredColumns))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("input is missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

// rowCovers reports whether record has enough fields for every mapped column.
func rowCovers(record []string, index map[string]int) bool {
	for _, name := range RequiredColumns {
		if index[name] >= len(record) {
			return false
		}
	}
	return true
}
