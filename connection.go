package beanstalk

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pior/beanstalk/internal/coarsetime"
	"github.com/pior/beanstalk/proto"
)

var (
	ErrConnectionClosed = errors.New("beanstalk: connection closed")
	ErrLineNotCRLF      = errors.New("beanstalk: response line not terminated by CRLF")
)

// Connection is a beanstalkd connection implementing proto.Transport over a
// net.Conn. Any I/O failure closes it: the protocol has no way to
// resynchronize a stream.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	mu       sync.Mutex
	closed   bool
	lastUsed time.Time
}

var _ proto.Transport = (*Connection)(nil)

// NewConnection wraps an established net.Conn.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		lastUsed: coarsetime.Now(),
	}
}

// DialConnection opens a TCP connection to addr. A nil dialer means the
// zero net.Dialer.
func DialConnection(ctx context.Context, addr string, dialer *net.Dialer) (*Connection, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConnection(conn), nil
}

func (c *Connection) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Connection) WriteAll(p []byte) error {
	if !c.IsActive() {
		return ErrConnectionClosed
	}

	if _, err := c.writer.Write(p); err != nil {
		c.fail()
		return err
	}
	if err := c.writer.Flush(); err != nil {
		c.fail()
		return err
	}

	c.touch()
	return nil
}

func (c *Connection) ReadLine() (string, error) {
	if !c.IsActive() {
		return "", ErrConnectionClosed
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.fail()
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	line, ok := strings.CutSuffix(line, "\r\n")
	if !ok {
		c.fail()
		return "", ErrLineNotCRLF
	}

	c.touch()
	return line, nil
}

func (c *Connection) ReadFull(n int) ([]byte, error) {
	if !c.IsActive() {
		return nil, ErrConnectionClosed
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		c.fail()
		return nil, err
	}

	c.touch()
	return buf, nil
}

// SetDeadline applies t to reads and writes. The zero time clears it.
func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Addr returns the remote address.
func (c *Connection) Addr() string {
	return c.conn.RemoteAddr().String()
}

// IdleDuration returns the time since the last completed read or write.
func (c *Connection) IdleDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return coarsetime.Now().Sub(c.lastUsed)
}

// Close closes the connection. Closing twice is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.conn.Close()
}

// fail closes the connection after an I/O error.
func (c *Connection) fail() {
	_ = c.Close()
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastUsed = coarsetime.Now()
	c.mu.Unlock()
}
