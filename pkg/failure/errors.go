package failure

import "fmt"

type Severity int

// scheduler control flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

// ClassifiedError is the single error type threaded through every package:
// every failure in the crawl pipeline carries both a message and a
// control-flow classification so callers can decide whether to abort the
// job or continue past it.
type ClassifiedError interface {
	error
	Severity() Severity
}

// Kind is the closed error taxonomy of the crawl engine. It is distinct
// from Severity: Kind says *what* went wrong, Severity says whether the
// pipeline should stop because of it.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindFetchError   Kind = "fetch_error"
	KindParseError   Kind = "parse_error"
	KindQueueError   Kind = "queue_error"
	KindStoreError   Kind = "store_error"
	KindJobTimeout   Kind = "job_timeout"
	KindNoContent    Kind = "no_content"
)

// Error is the concrete ClassifiedError used across the engine.
type Error struct {
	Kind     Kind
	Message  string
	Severity_ Severity
	Cause    error
}

func New(kind Kind, severity Severity, message string) *Error {
	return &Error{Kind: kind, Severity_: severity, Message: message}
}

func Wrap(kind Kind, severity Severity, message string, cause error) *Error {
	return &Error{Kind: kind, Severity_: severity, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Severity() Severity {
	return e.Severity_
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match by Kind when the target is itself an *Error
// with no message set (i.e. a sentinel created with New(kind, 0, "")).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}
