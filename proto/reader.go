package proto

import (
	"strconv"
	"strings"
)

// Header holds the tokens of a response status line.
// Header[0] is the status, the remaining tokens are status-specific arguments.
type Header []string

// ParseHeader splits a status line (without CRLF) on single spaces.
func ParseHeader(line string) Header {
	return Header(strings.Split(line, Space))
}

// Status returns the first token, or "" for an empty header.
func (h Header) Status() string {
	if len(h) == 0 {
		return ""
	}
	return h[0]
}

// Arg returns the i-th argument after the status.
func (h Header) Arg(i int) (string, bool) {
	if i+1 >= len(h) || i < 0 {
		return "", false
	}
	return h[i+1], true
}

// Uint64Arg parses the i-th argument as an unsigned integer.
func (h Header) Uint64Arg(i int) (uint64, bool) {
	s, ok := h.Arg(i)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (h Header) String() string {
	return strings.Join(h, Space)
}

// ReadResponse reads one framed response from t.
//
// Response format: <status> [<arg>*]\r\n[<data>\r\n]
//
// Global error statuses are returned as *ServerError. For statuses carrying a
// body, the last header token is the data length; exactly that many bytes are
// read, followed by a mandatory CRLF. Any framing deviation is a fatal
// *ClientError: the stream is desynchronized and the connection must be
// discarded.
//
// request is the rendered request line, used for diagnostics only.
func ReadResponse(t Transport, request string) (Header, []byte, error) {
	line, err := t.ReadLine()
	if err != nil {
		return nil, nil, &ClientError{Message: "failed to read response line", Request: request, Err: err, Fatal: true}
	}

	header := ParseHeader(line)
	status := header.Status()
	if status == "" {
		return nil, nil, &ClientError{Message: "malformed response " + strconv.Quote(line), Request: request, Fatal: true}
	}

	if IsErrorStatus(status) {
		return header, nil, &ServerError{Status: status, Request: request}
	}

	if !CarriesBody(status) {
		return header, nil, nil
	}

	if len(header) < 2 {
		return header, nil, &ClientError{Message: "missing data length in " + strconv.Quote(line), Request: request, Fatal: true}
	}

	size, err := strconv.Atoi(header[len(header)-1])
	if err != nil || size < 0 {
		return header, nil, &ClientError{Message: "invalid data length in " + strconv.Quote(line), Request: request, Err: err, Fatal: true}
	}
	if size > MaxBodySize {
		return header, nil, &ClientError{Message: "data length exceeds " + strconv.Itoa(MaxBodySize) + " bytes in " + strconv.Quote(line), Request: request, Fatal: true}
	}

	body, err := t.ReadFull(size)
	if err != nil {
		return header, nil, &ClientError{Message: "failed to read data block", Request: request, Err: err, Fatal: true}
	}
	if len(body) != size {
		return header, nil, &ClientError{
			Message: "short data block: want " + strconv.Itoa(size) + " byte(s), got " + strconv.Itoa(len(body)),
			Request: request,
			Fatal:   true,
		}
	}

	term, err := t.ReadFull(len(CRLF))
	if err != nil {
		return header, nil, &ClientError{Message: "failed to read data terminator", Request: request, Err: err, Fatal: true}
	}
	if string(term) != CRLF {
		return header, nil, &ClientError{
			Message: "expected CRLF[" + escapeControl(CRLF) + "] after " + strconv.Itoa(size) +
				" byte(s) of data, got " + escapeControl(string(term)),
			Request: request,
			Fatal:   true,
		}
	}

	return header, body, nil
}

var controlEscaper = strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`)

func escapeControl(s string) string {
	return controlEscaper.Replace(s)
}
