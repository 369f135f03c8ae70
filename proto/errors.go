package proto

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for beanstalk protocol operations.
//
// Every failure returned by this package is exactly one of ClientError,
// CommandError or ServerError. Callers branch on the kind with errors.As or
// the IsClientError / IsCommandError / IsServerError helpers.

// Sentinels matched by CommandError and ServerError through errors.Is.
var (
	ErrNotFound     = errors.New("beanstalk: not found")
	ErrJobTooBig    = errors.New("beanstalk: job too big")
	ErrExpectedCRLF = errors.New("beanstalk: expected CRLF")
	ErrNotIgnored   = errors.New("beanstalk: not ignored")
	ErrTubeMismatch = errors.New("beanstalk: tube used does not match requested")
	ErrUnexpected   = errors.New("beanstalk: unexpected response")

	// ErrNotActive is wrapped by the ClientError returned when a command is
	// dispatched on a closed connection.
	ErrNotActive = errors.New("beanstalk: connection is not active")

	ErrOutOfMemory    = errors.New("beanstalk: out of memory")
	ErrInternalError  = errors.New("beanstalk: internal error")
	ErrBadFormat      = errors.New("beanstalk: bad format")
	ErrUnknownCommand = errors.New("beanstalk: unknown command")
	ErrDraining       = errors.New("beanstalk: draining")
)

// ClientError is a failure detected locally: an argument rejected before
// anything was written, an I/O failure, or a response that does not follow
// the framing rules.
//
// Connection handling: when Fatal is set the stream position is unknown and
// the connection MUST be closed.
type ClientError struct {
	Message string
	Request string // request line, empty when the failure happened before rendering
	Err     error  // underlying error, if any
	Fatal   bool
}

func (e *ClientError) Error() string {
	var b strings.Builder
	b.WriteString("beanstalk client error: ")
	b.WriteString(e.Message)
	if e.Request != "" {
		b.WriteString(" [")
		b.WriteString(e.Request)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true when the stream can no longer be trusted
func (e *ClientError) ShouldCloseConnection() bool {
	return e.Fatal
}

// CommandError is a negative outcome the protocol defines for one command,
// such as NOT_FOUND on delete or JOB_TOO_BIG on put. The response was fully
// consumed, the connection stays usable.
type CommandError struct {
	Status  string
	Request string
	Message string

	// kind overrides the sentinel derived from Status.
	kind error
}

func (e *CommandError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "got " + e.Status
	}
	return fmt.Sprintf("beanstalk command error: %s in response to %q", msg, e.Request)
}

// Is matches the sentinel of the outcome: the one set by the command that
// produced the error, else the one corresponding to the status.
func (e *CommandError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *CommandError) sentinel() error {
	if e.kind != nil {
		return e.kind
	}
	switch e.Status {
	case StatusNotFound:
		return ErrNotFound
	case StatusJobTooBig:
		return ErrJobTooBig
	case StatusExpectedCRLF:
		return ErrExpectedCRLF
	case StatusNotIgnored:
		return ErrNotIgnored
	}
	return ErrUnexpected
}

// ShouldCloseConnection returns false - the response was fully read
func (e *CommandError) ShouldCloseConnection() bool {
	return false
}

// ServerError reports one of the global error statuses. The server is
// degraded or did not understand the request; the job or data the command
// asked for is lost to the caller.
type ServerError struct {
	Status  string
	Request string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("beanstalk server error: got %s in response to %q", e.Status, e.Request)
}

func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrOutOfMemory:
		return e.Status == StatusOutOfMemory
	case ErrInternalError:
		return e.Status == StatusInternalError
	case ErrBadFormat:
		return e.Status == StatusBadFormat
	case ErrUnknownCommand:
		return e.Status == StatusUnknownCommand
	case ErrDraining:
		return e.Status == StatusDraining
	}
	return false
}

// ShouldCloseConnection returns false - the status line was the whole response
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// ErrorWithConnectionState is implemented by all protocol error types.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection in an
// unknown state. Unknown error types are treated as fatal.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

func IsClientError(err error) bool {
	var e *ClientError
	return errors.As(err, &e)
}

func IsCommandError(err error) bool {
	var e *CommandError
	return errors.As(err, &e)
}

func IsServerError(err error) bool {
	var e *ServerError
	return errors.As(err, &e)
}

func newCommandError(status, request, message string) *CommandError {
	return &CommandError{Status: status, Request: request, Message: message}
}

func unexpectedStatus(h Header, request string) *CommandError {
	return &CommandError{
		Status:  h.Status(),
		Request: request,
		Message: "got unexpected status " + h.Status(),
		kind:    ErrUnexpected,
	}
}

// invalidArgument is a non-fatal ClientError raised before any I/O.
func invalidArgument(format string, args ...any) *ClientError {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}
