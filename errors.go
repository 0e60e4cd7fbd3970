package beatparser

import "github.com/jota2rz/beat-parser/internal/errs"

// Error kinds re-exported from internal/errs so callers never import an
// internal package to branch on failure category.
const (
	ErrInvalidParameter  = errs.InvalidParameter
	ErrEmptyInput        = errs.EmptyInput
	ErrInvalidAudio      = errs.InvalidAudio
	ErrUnsupported       = errs.Unsupported
	ErrNumericInstability = errs.NumericInstability
	ErrInsufficientSignal = errs.InsufficientSignal
	ErrPluginFailure     = errs.PluginFailure
	ErrCancelled         = errs.Cancelled
	ErrTimeout           = errs.Timeout
	ErrWorkerFailed      = errs.WorkerFailed
)

// ErrorKind is the classification carried by every error this package
// returns.
type ErrorKind = errs.Kind

// IsKind reports whether err (or any error it wraps) carries the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	return errs.Is(err, kind)
}
