// Package proto implements the beanstalkd wire protocol: request rendering,
// response framing, status classification and body decoding.
//
// It is the foundation of the beanstalk client and can be used on its own
// over any Transport. It does not open connections, pool them, or retry.
//
// # Commands
//
// Every protocol operation is a Command[T], built by a constructor that
// validates its arguments:
//
//	put, err := proto.NewPut("hello", proto.DefaultPriority, 0, proto.DefaultTTR, nil)
//	if err != nil {
//	    return err // *ClientError, nothing was written
//	}
//	job, err := proto.Do(ctx, conn, put)
//	// job.ID, job.Status ("INSERTED" or "BURIED")
//
// Do writes the request, reads the status line, reads the data block when
// the status carries one, checks its CRLF terminator and hands everything to
// the command's ParseResponse.
//
// # Framing
//
// Request: <keyword> [<arg>*]\r\n, followed by <data>\r\n for put.
// Response: <status> [<arg>*]\r\n, followed by <data>\r\n when the status is
// RESERVED, FOUND or OK. The data length is the last token of the status
// line.
//
// # Errors
//
//   - ClientError: rejected argument, I/O failure or framing violation.
//     When Fatal is set the connection must be closed.
//   - CommandError: a negative outcome defined for the command (NOT_FOUND,
//     JOB_TOO_BIG, NOT_IGNORED, ...). The connection stays usable.
//   - ServerError: OUT_OF_MEMORY, INTERNAL_ERROR, BAD_FORMAT,
//     UNKNOWN_COMMAND or DRAINING. The connection stays usable.
//
// Use ShouldCloseConnection to decide what to do with the connection:
//
//	if proto.ShouldCloseConnection(err) {
//	    conn.Close()
//	}
//
// # Thread Safety
//
// Commands are immutable and may be read from any goroutine. A Transport
// carries one exchange at a time; Do must not be called concurrently on the
// same Transport.
package proto
