// Package errs defines the error-kind taxonomy shared by every stage of the
// analysis pipeline, so a caller can branch on Kind without depending on
// which internal package produced the failure.
package errs

import "fmt"

// Kind is a stable, user-visible error classification.
type Kind string

const (
	InvalidParameter  Kind = "InvalidParameter"
	EmptyInput        Kind = "EmptyInput"
	InvalidAudio      Kind = "InvalidAudio"
	Unsupported       Kind = "Unsupported"
	NumericInstability Kind = "NumericInstability"
	InsufficientSignal Kind = "InsufficientSignal"
	PluginFailure     Kind = "PluginFailure"
	Cancelled         Kind = "Cancelled"
	Timeout           Kind = "Timeout"
	WorkerFailed      Kind = "WorkerFailed"
)

// Error is the single result-type carrier for every kind above. It never
// embeds a raw filesystem path that wasn't supplied by the caller.
type Error struct {
	Kind    Kind
	Message string
	Plugin  string // set only for PluginFailure
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Plugin, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a bare Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error of the given kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// PluginErr builds a PluginFailure error naming the offending plugin.
func PluginErr(name string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: PluginFailure, Plugin: name, Message: msg, Err: cause}
}

// Is reports whether err carries the given Kind (including wrapped Errors).
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
