package proto

import (
	"context"

	"github.com/pior/beanstalk/internal"
)

// Typical requests are a few dozen bytes; put carries up to MaxPayloadSize.
var requestBuffers = internal.NewBufferPool(256, 2*MaxPayloadSize)

// Do sends cmd over t and returns its typed result.
//
// The exchange is strictly synchronous: the request is written in full, then
// the response status line, data block and terminator are consumed before Do
// returns. Callers sharing a Transport between goroutines must serialize
// calls to Do.
//
// If t implements SetDeadline, the deadline of ctx is applied to the whole
// exchange, and cleared when ctx has none.
//
// Errors are *ClientError, *CommandError or *ServerError, returned unchanged
// from the framing layer and the command.
func Do[T any](ctx context.Context, t Transport, cmd Command[T]) (T, error) {
	var zero T

	request := cmd.String()

	if err := ctx.Err(); err != nil {
		return zero, &ClientError{Message: "context done before dispatch", Request: request, Err: err}
	}
	if !t.IsActive() {
		return zero, &ClientError{Message: "cannot dispatch", Request: request, Err: ErrNotActive, Fatal: true}
	}

	if d, ok := t.(deadliner); ok {
		deadline, _ := ctx.Deadline()
		if err := d.SetDeadline(deadline); err != nil {
			return zero, &ClientError{Message: "failed to set deadline", Request: request, Err: err, Fatal: true}
		}
	}

	buf := requestBuffers.Get()
	*buf = cmd.AppendRequest(*buf)
	err := t.WriteAll(*buf)
	requestBuffers.Put(buf)
	if err != nil {
		return zero, &ClientError{Message: "failed to write request", Request: request, Err: err, Fatal: true}
	}

	header, body, err := ReadResponse(t, request)
	if err != nil {
		return zero, err
	}

	return cmd.ParseResponse(header, body)
}
