package testutils

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a net.Conn replaying a scripted beanstalkd response stream
// and recording everything written to it.
type ConnectionMock struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
	writeErr error
}

// NewConnectionMock creates a mock connection serving the concatenated responses.
func NewConnectionMock(responseData ...string) *ConnectionMock {
	return &ConnectionMock{
		readBuf:  bytes.NewBufferString(strings.Join(responseData, "")),
		writeBuf: &bytes.Buffer{},
	}
}

// FailWrites makes every later Write return err.
func (m *ConnectionMock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *ConnectionMock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11300}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// GetWrittenRequest returns the raw request bytes written to the mock connection.
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}

// TransportMock is an in-memory transport: it has the method set of
// proto.Transport and records the order of writes and reads.
type TransportMock struct {
	reader *bufio.Reader
	Active bool

	// Writes holds every request passed to WriteAll.
	Writes []string
	// Events logs "write" and "read" in call order.
	Events []string

	// WriteErr, when set, is returned by WriteAll.
	WriteErr error
	// Deadline is the last value given to SetDeadline.
	Deadline time.Time
}

// NewTransportMock creates an active transport serving the concatenated responses.
func NewTransportMock(responseData ...string) *TransportMock {
	return &TransportMock{
		reader: bufio.NewReader(strings.NewReader(strings.Join(responseData, ""))),
		Active: true,
	}
}

func (m *TransportMock) IsActive() bool {
	return m.Active
}

func (m *TransportMock) WriteAll(p []byte) error {
	m.Events = append(m.Events, "write")
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes = append(m.Writes, string(p))
	return nil
}

func (m *TransportMock) ReadLine() (string, error) {
	m.Events = append(m.Events, "read")
	line, err := m.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	line, ok := strings.CutSuffix(line, "\r\n")
	if !ok {
		return "", errors.New("line not terminated by CRLF")
	}
	return line, nil
}

func (m *TransportMock) ReadFull(n int) ([]byte, error) {
	m.Events = append(m.Events, "read")
	buf := make([]byte, n)
	if _, err := io.ReadFull(m.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (m *TransportMock) SetDeadline(t time.Time) error {
	m.Deadline = t
	return nil
}

// Close marks the transport inactive.
func (m *TransportMock) Close() error {
	m.Active = false
	return nil
}

// Remaining returns the unread part of the scripted responses.
func (m *TransportMock) Remaining() string {
	rest, _ := io.ReadAll(m.reader)
	return string(rest)
}
