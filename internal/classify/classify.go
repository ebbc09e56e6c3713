// Package classify maps raw directory failure text into a closed error
// taxonomy. The directory service is a fixed external system, so failure
// modes are recognized by pattern matching on the message it returns.
package classify

import "strings"

// Category is the classified kind of a directory operation failure.
type Category string

const (
	Connectivity   Category = "Connectivity"
	Authentication Category = "Authentication"
	Timeout        Category = "Timeout"
	NotFound       Category = "NotFound"
	AlreadyExists  Category = "AlreadyExists"
	Other          Category = "Other"
)

// rules are evaluated in order; the first matching category wins. All
// matching is case-insensitive substring matching.
var rules = []struct {
	category Category
	patterns []string
}{
	{Connectivity, []string{"server is not operational", "rpc server"}},
	{Authentication, []string{"access denied", "unauthorized"}},
	{Timeout, []string{"timeout", "timed out"}},
	{NotFound, []string{"not found", "does not exist"}},
	{AlreadyExists, []string{"already a member", "already exists"}},
}

// Classify maps a raw failure message to its Category. Pure function, no I/O.
//
// AlreadyExists is special: callers must treat it as the idempotent
// already-a-member outcome, not as an error.
func Classify(rawMessage string) Category {
	msg := strings.ToLower(rawMessage)
	for _, rule := range rules {
		for _, pattern := range rule.patterns {
			if strings.Contains(msg, pattern) {
				return rule.category
			}
		}
	}
	return Other
}

// ClassifyError is a convenience wrapper for classifying a Go error value.
// A nil error classifies as Other; classification is only meaningful for
// actual failures.
func ClassifyError(err error) Category {
	if err == nil {
		return Other
	}
	return Classify(err.Error())
}
