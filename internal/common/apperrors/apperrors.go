// Package apperrors provides the application error type used across the
// gateway. It extends the standard error interface with error chaining,
// HTTP status codes, and message derivation, while staying compatible with
// errors.Is / errors.As.
package apperrors

// Error is the interface implemented by all gateway errors. Methods that
// produce a new error never mutate the receiver, so package-level error
// values are safe to share.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error       // fresh error using the current one as template
	Msg(msg string) Error       // new message, wraps the original
	MsgErr(msg string, err ...error) Error
	Err(err ...error) Error     // attach additional causes
	SetStatusCode(int) Error    // HTTP status code for transport mapping
	StatusCode() int
	ErrorAll() string           // message including all wrapped causes
	UnwrapAll() []error
}
