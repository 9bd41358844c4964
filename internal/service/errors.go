package service

import "strings"

// ValidationError reports the required fields a submission left empty. It is
// terminal for the whole request before any file or mail work starts.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// MailError wraps a dispatch failure. It overrides any earlier per-file
// success because the notification is the only durable record of a
// submission.
type MailError struct {
	Err error
}

func (e *MailError) Error() string {
	return "notification dispatch failed: " + e.Err.Error()
}

func (e *MailError) Unwrap() error {
	return e.Err
}
