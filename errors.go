package screencap

import "fmt"

// ErrorCode identifies a terminal capture failure. The set is closed: every
// error surfaced by this package maps to exactly one code.
type ErrorCode int

const (
	ErrCodeNotAuthorized        ErrorCode = iota + 1 // screen recording not authorized
	ErrCodeSourceNotFound                            // display/window id not in the catalog
	ErrCodeInvalidConfiguration                      // rejected before touching capture resources
	ErrCodeCaptureFailed                             // engine or per-frame failure after validation
	ErrCodeCancelled                                 // start aborted by stop or context
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeNotAuthorized:
		return "not authorized"
	case ErrCodeSourceNotFound:
		return "source not found"
	case ErrCodeInvalidConfiguration:
		return "invalid configuration"
	case ErrCodeCaptureFailed:
		return "capture failed"
	case ErrCodeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the typed error for all capture failures. Compare with errors.Is
// against the exported sentinels, or errors.As to read Detail.
type Error struct {
	Code   ErrorCode
	Detail string
	Err    error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := "screencap: " + e.Code.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so
// errors.Is(err, ErrNotAuthorized) works regardless of Detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel values for errors.Is comparisons.
var (
	ErrNotAuthorized        = &Error{Code: ErrCodeNotAuthorized}
	ErrSourceNotFound       = &Error{Code: ErrCodeSourceNotFound}
	ErrInvalidConfiguration = &Error{Code: ErrCodeInvalidConfiguration}
	ErrCaptureFailed        = &Error{Code: ErrCodeCaptureFailed}
	ErrCancelled            = &Error{Code: ErrCodeCancelled}
)

func invalidConfigf(format string, args ...interface{}) *Error {
	return &Error{Code: ErrCodeInvalidConfiguration, Detail: fmt.Sprintf(format, args...)}
}

func captureFailed(detail string, cause error) *Error {
	return &Error{Code: ErrCodeCaptureFailed, Detail: detail, Err: cause}
}

func notAuthorized(detail string, cause error) *Error {
	return &Error{Code: ErrCodeNotAuthorized, Detail: detail, Err: cause}
}

func sourceNotFound(detail string) *Error {
	return &Error{Code: ErrCodeSourceNotFound, Detail: detail}
}

func cancelled(detail string) *Error {
	return &Error{Code: ErrCodeCancelled, Detail: detail}
}

// asError normalizes an arbitrary error into the closed taxonomy. Errors
// already in the taxonomy pass through; anything else becomes CaptureFailed.
func asError(err error) *Error {
	if cerr, ok := err.(*Error); ok {
		return cerr
	}
	return captureFailed("", err)
}
