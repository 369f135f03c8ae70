package beanstalk

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func createListener(t testing.TB, handler func(conn net.Conn)) string {
	// Start a simple test server
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start test server: %v", err)
	}

	t.Cleanup(func() {
		listener.Close()
	})

	// Accept connections in background
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer c.Close()

				if handler != nil {
					handler(c)
				}
			}(conn)
		}
	}()

	return listener.Addr().String()
}

// serveRequests answers each request line with respond(line, body). body is
// the data block of put requests, nil otherwise.
func serveRequests(respond func(line string, body []byte) string) func(conn net.Conn) {
	return func(conn net.Conn) {
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSuffix(line, "\r\n")

			var body []byte
			if fields := strings.Fields(line); len(fields) == 5 && fields[0] == "put" {
				n, err := strconv.Atoi(fields[4])
				if err != nil {
					return
				}
				body = make([]byte, n+2)
				if _, err := io.ReadFull(reader, body); err != nil {
					return
				}
				body = body[:n]
			}

			if _, err := io.WriteString(conn, respond(line, body)); err != nil {
				return
			}
		}
	}
}

// scriptedResponses answers requests with the given responses, in order.
func scriptedResponses(responses ...string) func(conn net.Conn) {
	i := 0
	return serveRequests(func(string, []byte) string {
		if i >= len(responses) {
			return "UNKNOWN_COMMAND\r\n"
		}
		i++
		return responses[i-1]
	})
}

func dialTestClient(t testing.TB, handler func(conn net.Conn), config Config) *Client {
	t.Helper()

	addr := createListener(t, handler)
	client, err := Dial(context.Background(), addr, config)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
	})
	return client
}
