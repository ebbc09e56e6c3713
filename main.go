// Package main provides the entry point for the group membership sync service.
//
// groupsync bulk-adds users from one directory domain into group memberships
// in another (possibly foreign) domain, driven by a CSV input file, with
// retry, pre-flight validation, and per-operation audit logging.
//
// The tool supports:
//   - Batch membership runs from CSV input (run)
//   - Dry-run test mode that contacts the target directory without mutating it
//   - Standalone domain connectivity probing (probe)
//   - An HTTP API for submitting batches as JSON (serve)
//   - Bounded retry with optional exponential backoff for transient faults
//   - CSV audit logs plus JSON batch-session logs with daily summaries
//
// Usage:
//
//	groupsync run --csv memberships.csv --output-dir ./logs [flags]
//
// Environment Variables:
//   - GROUPSYNC_BIND_USER: Cross-domain admin account (DOMAIN\user or UPN)
//   - GROUPSYNC_BIND_PASSWORD: Password for the bind account
//   - GROUPSYNC_API_KEY: Optional API key protecting the serve-mode endpoints
//
// Example:
//
//	export GROUPSYNC_BIND_USER='CONTOSO\svc-groupsync'
//	export GROUPSYNC_BIND_PASSWORD=secret
//	groupsync run --csv memberships.csv --test-mode
package main

import "groupsyncservice/cmd"

// main is the application entry point that delegates to the cobra command structure.
func main() {
	_ = cmd.Execute()
}
