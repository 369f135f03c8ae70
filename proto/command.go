package proto

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Command is one beanstalk operation: it renders its request and interprets
// the response the dispatcher read for it. T is the typed result.
//
// The set of commands is closed: only types of this package implement
// Command. Values are immutable once constructed and are meant to be
// dispatched once.
type Command[T any] interface {
	// AppendRequest appends the wire form of the request, CRLF included,
	// to buf.
	AppendRequest(buf []byte) []byte

	// ParseResponse turns a framed response into the command result.
	// body is nil unless the status carries a data block.
	ParseResponse(h Header, body []byte) (T, error)

	// String returns the request line without CRLF or data block.
	String() string

	sealed()
}

type sealedCommand struct{}

func (sealedCommand) sealed() {}

// Job is the result of put, reserve and peek commands.
// Status tells which outcome the server reported: INSERTED or BURIED for put,
// RESERVED, DEADLINE_SOON or TIMED_OUT for reserve, FOUND for peek.
type Job struct {
	ID     uint64
	Status string

	// Body is the raw data block, nil when the response carried none.
	Body []byte

	// Payload is Body decoded by the Encoder, or Body as a string when no
	// Encoder is configured.
	Payload any
}

// Reserved reports whether the job was handed to this client by reserve.
func (j Job) Reserved() bool {
	return j.Status == StatusReserved
}

// TimedOut reports whether reserve-with-timeout expired without a job.
func (j Job) TimedOut() bool {
	return j.Status == StatusTimedOut
}

// DeadlineSoon reports whether reserve returned early because a job reserved
// by this client is about to reach its TTR.
func (j Job) DeadlineSoon() bool {
	return j.Status == StatusDeadlineSoon
}

func appendKeyword(buf []byte, keyword string) []byte {
	return append(buf, keyword...)
}

func appendArg(buf []byte, arg string) []byte {
	buf = append(buf, ' ')
	return append(buf, arg...)
}

func appendUintArg(buf []byte, v uint64) []byte {
	buf = append(buf, ' ')
	return strconv.AppendUint(buf, v, 10)
}

func appendCRLF(buf []byte) []byte {
	return append(buf, CRLF...)
}

// requestLine renders cmd and keeps the first line only. Commands with a
// data block render their line themselves.
func requestLine(cmd interface{ AppendRequest([]byte) []byte }) string {
	req := cmd.AppendRequest(nil)
	if i := bytes.Index(req, []byte(CRLF)); i >= 0 {
		req = req[:i]
	}
	return string(req)
}

func seconds(d time.Duration) uint64 {
	return uint64(d / time.Second)
}

func validatePriority(priority int64) (uint32, error) {
	if priority < 0 || priority > MaxPriority {
		return 0, invalidArgument("job priority must be an integer between 0 and %d, got %d", uint64(MaxPriority), priority)
	}
	return uint32(priority), nil
}

func validateDelay(delay time.Duration) error {
	if delay < 0 {
		return invalidArgument("job delay must not be negative, got %s", delay)
	}
	return nil
}

// ValidateTubeName checks a tube name against beanstalkd rules: 1 to 200
// bytes of letters, digits and "-+/;.$_()", not starting with a hyphen.
func ValidateTubeName(name string) error {
	if name == "" {
		return invalidArgument("tube name is empty")
	}
	if len(name) > MaxTubeNameLength {
		return invalidArgument("tube name exceeds maximum length of %d bytes", MaxTubeNameLength)
	}
	if name[0] == '-' {
		return invalidArgument("tube name %q starts with a hyphen", name)
	}
	if i := strings.IndexFunc(name, func(r rune) bool { return !isTubeNameRune(r) }); i >= 0 {
		return invalidArgument("tube name %q contains invalid character %q", name, name[i])
	}
	return nil
}

func isTubeNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-+/;.$_()", r)
}

// expectStatus accepts any of ok and maps NOT_FOUND to a CommandError.
func expectStatus(h Header, request string, ok ...string) (string, error) {
	status := h.Status()
	for _, s := range ok {
		if status == s {
			return status, nil
		}
	}
	if status == StatusNotFound {
		return "", newCommandError(status, request, "job or tube not found")
	}
	return "", unexpectedStatus(h, request)
}

// countArg parses the integer argument of KICKED and WATCHING.
func countArg(h Header, request string) (uint64, error) {
	n, ok := h.Uint64Arg(0)
	if !ok {
		return 0, &ClientError{Message: "response is missing count [" + h.String() + "]", Request: request}
	}
	return n, nil
}

// decodeJob builds a Job from "<status> <id> <bytes>" and its data block.
func decodeJob(h Header, body []byte, enc Encoder, request string) (Job, error) {
	if len(h) < 3 {
		return Job{}, &ClientError{Message: "response is missing job id [" + h.String() + "]", Request: request}
	}
	id, ok := h.Uint64Arg(0)
	if !ok {
		return Job{}, &ClientError{Message: "invalid job id [" + h.String() + "]", Request: request}
	}

	job := Job{ID: id, Status: h.Status(), Body: body}
	if enc == nil {
		job.Payload = string(body)
		return job, nil
	}

	payload, err := enc.Decode(body)
	if err != nil {
		return Job{}, &ClientError{Message: "failed to decode job payload", Request: request, Err: err}
	}
	job.Payload = payload
	return job, nil
}
