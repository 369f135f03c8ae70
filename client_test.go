package beanstalk

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pior/beanstalk/internal/testutils"
	"github.com/pior/beanstalk/proto"
)

func newMockClient(t *testing.T, config Config, responses ...string) (*Client, *testutils.ConnectionMock) {
	t.Helper()

	mock := testutils.NewConnectionMock(responses...)
	client, err := NewClient(NewConnection(mock), config)
	require.NoError(t, err)
	return client, mock
}

func TestNewClientRequiresActiveConnection(t *testing.T) {
	conn := NewConnection(testutils.NewConnectionMock())
	require.NoError(t, conn.Close())

	_, err := NewClient(conn, Config{})
	require.ErrorContains(t, err, "not active")

	_, err = NewClient(nil, Config{})
	require.Error(t, err)
}

func TestClientAddr(t *testing.T) {
	client, _ := newMockClient(t, Config{})
	assert.Equal(t, "127.0.0.1:11300", client.Addr())
}

func TestClientPut(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "INSERTED 42\r\n", "BURIED 43\r\n")
	ctx := context.Background()

	job, err := client.Put(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, Job{ID: 42, Status: proto.StatusInserted}, job)

	job, err = client.Put(ctx, "x", WithPriority(1), WithDelay(5*time.Second), WithTTR(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Job{ID: 43, Status: proto.StatusBuried}, job)

	assert.Equal(t, "put 2048 0 30 5\r\nhello\r\nput 1 5 60 1\r\nx\r\n", mock.GetWrittenRequest())
}

func TestClientPutInvalidArgumentsWriteNothing(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "INSERTED 1\r\n")
	ctx := context.Background()

	_, err := client.Put(ctx, "x", WithPriority(-1))
	require.ErrorContains(t, err, "priority")

	_, err = client.Put(ctx, "x", WithTTR(0))
	require.ErrorContains(t, err, "ttr")

	_, err = client.Put(ctx, strings.Repeat("x", proto.MaxPayloadSize+1))
	require.ErrorContains(t, err, "exceeds maximum")

	assert.Empty(t, mock.GetWrittenRequest())
	assert.False(t, mock.Closed())
	assert.Equal(t, uint64(3), client.ClientStats().ClientErrors)
}

func TestClientPutWithEncoder(t *testing.T) {
	client, mock := newMockClient(t, Config{Encoder: proto.JSONEncoder{}},
		"INSERTED 1\r\n",
		"RESERVED 1 11\r\n{\"id\":\"a\"}\n\r\n",
	)
	ctx := context.Background()

	_, err := client.Put(ctx, map[string]string{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "put 2048 0 30 10\r\n{\"id\":\"a\"}\r\n", mock.GetWrittenRequest())

	job, err := client.Reserve(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "a"}, job.Payload)
}

func TestClientReserve(t *testing.T) {
	client, mock := newMockClient(t, Config{},
		"RESERVED 5 5\r\nhello\r\n",
		"TIMED_OUT\r\n",
		"DEADLINE_SOON\r\n",
		"RESERVED 9 1\r\nx\r\n",
	)
	ctx := context.Background()

	job, err := client.Reserve(ctx)
	require.NoError(t, err)
	assert.True(t, job.Reserved())
	assert.Equal(t, uint64(5), job.ID)
	assert.Equal(t, "hello", job.Payload)

	job, err = client.ReserveWithTimeout(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, job.TimedOut())

	job, err = client.Reserve(ctx)
	require.NoError(t, err)
	assert.True(t, job.DeadlineSoon())

	job, err = client.ReserveJob(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), job.ID)

	assert.Equal(t, "reserve\r\nreserve-with-timeout 2\r\nreserve\r\nreserve-job 9\r\n", mock.GetWrittenRequest())

	stats := client.ClientStats()
	assert.Equal(t, uint64(4), stats.Reserves)
	assert.Equal(t, uint64(2), stats.ReserveTimeouts)
}

func TestClientJobCommands(t *testing.T) {
	client, mock := newMockClient(t, Config{},
		"DELETED\r\n",
		"RELEASED\r\n",
		"BURIED\r\n",
		"TOUCHED\r\n",
		"KICKED 3\r\n",
		"KICKED\r\n",
	)
	ctx := context.Background()

	require.NoError(t, client.Delete(ctx, 1))

	status, err := client.Release(ctx, 2, WithPriority(10), WithDelay(time.Second))
	require.NoError(t, err)
	assert.Equal(t, proto.StatusReleased, status)

	require.NoError(t, client.Bury(ctx, 3))
	require.NoError(t, client.Touch(ctx, 4))

	n, err := client.Kick(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	require.NoError(t, client.KickJob(ctx, 5))

	assert.Equal(t,
		"delete 1\r\nrelease 2 10 1\r\nbury 3 2048\r\ntouch 4\r\nkick 10\r\nkick-job 5\r\n",
		mock.GetWrittenRequest())
}

func TestClientPeek(t *testing.T) {
	client, mock := newMockClient(t, Config{},
		"FOUND 1 1\r\na\r\n",
		"FOUND 2 1\r\nb\r\n",
		"NOT_FOUND\r\n",
		"FOUND 3 0\r\n\r\n",
	)
	ctx := context.Background()

	job, err := client.Peek(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", job.Payload)

	job, err = client.PeekReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), job.ID)

	_, err = client.PeekDelayed(ctx)
	require.ErrorIs(t, err, proto.ErrNotFound)

	job, err = client.PeekBuried(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", job.Payload)

	assert.Equal(t, "peek 1\r\npeek-ready\r\npeek-delayed\r\npeek-buried\r\n", mock.GetWrittenRequest())
	assert.Equal(t, uint64(4), client.ClientStats().Peeks)
}

func TestClientTubes(t *testing.T) {
	client, mock := newMockClient(t, Config{},
		"USING jobs\r\n",
		"WATCHING 2\r\n",
		"WATCHING 1\r\n",
		"USING jobs\r\n",
		"OK 21\r\n---\n- default\n- jobs\n\r\n",
		"OK 11\r\n---\n- jobs\n\r\n",
		"PAUSED\r\n",
	)
	ctx := context.Background()

	require.NoError(t, client.UseTube(ctx, "jobs"))

	n, err := client.WatchTube(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, err = client.IgnoreTube(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	used, err := client.ListTubeUsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jobs", used)

	tubes, err := client.ListTubes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "jobs"}, tubes)

	watched, err := client.ListTubesWatched(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs"}, watched)

	require.NoError(t, client.PauseTube(ctx, "jobs", time.Minute))

	assert.Equal(t,
		"use jobs\r\nwatch jobs\r\nignore default\r\nlist-tube-used\r\nlist-tubes\r\nlist-tubes-watched\r\npause-tube jobs 60\r\n",
		mock.GetWrittenRequest())
	assert.Equal(t, uint64(7), client.ClientStats().TubeCommands)
}

func TestClientUseTubeMismatch(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "USING other\r\n")

	err := client.UseTube(context.Background(), "jobs")
	require.ErrorIs(t, err, proto.ErrTubeMismatch)
	assert.False(t, mock.Closed())
}

func TestClientInvalidTubeName(t *testing.T) {
	client, mock := newMockClient(t, Config{})
	ctx := context.Background()

	require.Error(t, client.UseTube(ctx, "bad tube"))
	_, err := client.WatchTube(ctx, "")
	require.Error(t, err)
	_, err = client.IgnoreTube(ctx, "-x")
	require.Error(t, err)
	_, err = client.StatsTube(ctx, "a b")
	require.Error(t, err)
	require.Error(t, client.PauseTube(ctx, "", 0))

	assert.Empty(t, mock.GetWrittenRequest())
}

func TestClientStatsCommands(t *testing.T) {
	client, mock := newMockClient(t, Config{},
		"OK 20\r\ncount: 5\nname: jobs\n\r\n",
		"OK 7\r\nid: 42\n\r\n",
		"NOT_FOUND\r\n",
	)
	ctx := context.Background()

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{"count": int64(5), "name": "jobs"}, stats)

	stats, err = client.StatsJob(ctx, 42)
	require.NoError(t, err)
	id, ok := stats.Int("id")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, err = client.StatsTube(ctx, "missing")
	require.ErrorIs(t, err, proto.ErrNotFound)

	assert.Equal(t, "stats\r\nstats-job 42\r\nstats-tube missing\r\n", mock.GetWrittenRequest())
}

func TestClientCommandErrorKeepsConnection(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "NOT_FOUND\r\n", "DELETED\r\n")
	ctx := context.Background()

	err := client.Delete(ctx, 1)
	require.ErrorIs(t, err, proto.ErrNotFound)
	assert.False(t, mock.Closed())

	require.NoError(t, client.Delete(ctx, 2))
	assert.Equal(t, uint64(1), client.ClientStats().CommandErrors)
}

func TestClientServerErrorKeepsConnection(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "OUT_OF_MEMORY\r\n", "INSERTED 1\r\n")
	ctx := context.Background()

	_, err := client.Put(ctx, "x")
	require.ErrorIs(t, err, proto.ErrOutOfMemory)
	assert.True(t, proto.IsServerError(err))
	assert.False(t, mock.Closed())

	_, err = client.Put(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), client.ClientStats().ServerErrors)
}

func TestClientFatalErrorClosesConnection(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client, mock := newMockClient(t, Config{Logger: zap.New(core)}, "RESERVED 1 5\r\nhelloXY", "DELETED\r\n")
	ctx := context.Background()

	_, err := client.Reserve(ctx)
	require.ErrorContains(t, err, "expected CRLF")
	assert.True(t, proto.ShouldCloseConnection(err))
	assert.True(t, mock.Closed())
	assert.Equal(t, 1, logs.FilterMessage("closing beanstalk connection after fatal error").Len())

	for range 3 {
		err = client.Delete(ctx, 1)
		require.ErrorIs(t, err, proto.ErrNotActive)
		require.ErrorContains(t, err, "not active")
	}
	assert.Equal(t, 1, logs.FilterMessage("closing beanstalk connection after fatal error").Len())
}

func TestClientBareLineFeedClosesConnection(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "INSERTED 1\n")

	_, err := client.Put(context.Background(), "x")
	require.ErrorIs(t, err, ErrLineNotCRLF)
	assert.True(t, proto.ShouldCloseConnection(err))
	assert.True(t, mock.Closed())
}

func TestClientWriteFailureClosesConnection(t *testing.T) {
	client, mock := newMockClient(t, Config{})
	mock.FailWrites(errors.New("broken pipe"))

	err := client.Touch(context.Background(), 1)
	require.ErrorContains(t, err, "broken pipe")
	assert.True(t, mock.Closed())
	assert.Equal(t, uint64(1), client.ClientStats().ClientErrors)
}

func TestClientLogsCommands(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	client, _ := newMockClient(t, Config{Logger: zap.New(core)}, "DELETED\r\n", "NOT_FOUND\r\n")
	ctx := context.Background()

	require.NoError(t, client.Delete(ctx, 1))
	require.Error(t, client.Delete(ctx, 2))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "beanstalk command", entries[0].Message)
	assert.Equal(t, "delete 1", entries[0].ContextMap()["request"])
	assert.Equal(t, "beanstalk command failed", entries[1].Message)
	assert.Equal(t, "delete", entries[1].ContextMap()["op"])
}

func TestClientCircuitBreaker(t *testing.T) {
	client, _ := newMockClient(t, Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}, "NOT_FOUND\r\n", "NOT_FOUND\r\n", "NOT_FOUND\r\n", "DELETED\r\n")
	ctx := context.Background()

	// Command errors do not trip the breaker.
	for range 3 {
		require.ErrorIs(t, client.Delete(ctx, 1), proto.ErrNotFound)
	}
	assert.Equal(t, StateClosed, client.CircuitBreakerState())
	require.NoError(t, client.Delete(ctx, 1))
}

func TestClientCircuitBreakerOpens(t *testing.T) {
	client, _ := newMockClient(t, Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})
	ctx := context.Background()

	// The first failure closes the connection, the following ones fail on
	// the inactive connection.
	for range 3 {
		require.Error(t, client.Delete(ctx, 1))
	}
	assert.Equal(t, StateOpen, client.CircuitBreakerState())

	err := client.Delete(ctx, 1)
	assert.True(t, isBreakerRejection(err))
}

func TestClientContextCanceled(t *testing.T) {
	client, mock := newMockClient(t, Config{}, "DELETED\r\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Delete(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, mock.Closed())
	assert.Empty(t, mock.GetWrittenRequest())
}

func TestClientOverNetwork(t *testing.T) {
	client := dialTestClient(t, serveRequests(func(line string, body []byte) string {
		switch {
		case strings.HasPrefix(line, "put "):
			if string(body) == "hello" {
				return "INSERTED 1\r\n"
			}
			return "JOB_TOO_BIG\r\n"
		case line == "reserve-with-timeout 1":
			return "RESERVED 1 5\r\nhello\r\n"
		case line == "delete 1":
			return "DELETED\r\n"
		}
		return "UNKNOWN_COMMAND\r\n"
	}), Config{DialTimeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := client.Put(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), job.ID)

	_, err = client.Put(ctx, "other")
	require.ErrorIs(t, err, proto.ErrJobTooBig)

	job, err = client.ReserveWithTimeout(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", job.Payload)

	require.NoError(t, client.Delete(ctx, job.ID))

	err = client.Touch(ctx, 1)
	require.ErrorIs(t, err, proto.ErrUnknownCommand)
}

func TestClientConcurrentCallsAreSerialized(t *testing.T) {
	client := dialTestClient(t, serveRequests(func(line string, _ []byte) string {
		if strings.HasPrefix(line, "stats-job ") {
			id := strings.TrimPrefix(line, "stats-job ")
			body := "id: " + id + "\n"
			return "OK " + strconv.Itoa(len(body)) + "\r\n" + body + "\r\n"
		}
		return "UNKNOWN_COMMAND\r\n"
	}), Config{})

	ctx := context.Background()
	errs := make(chan error, 20)
	for i := range 20 {
		go func(id uint64) {
			stats, err := client.StatsJob(ctx, id)
			if err == nil {
				if got, _ := stats.Int("id"); uint64(got) != id {
					err = errors.New("response mismatch")
				}
			}
			errs <- err
		}(uint64(i + 1))
	}

	for range 20 {
		require.NoError(t, <-errs)
	}
}

func TestDialFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = Dial(context.Background(), addr, Config{DialTimeout: time.Second})
	require.ErrorContains(t, err, "beanstalk: dial")
}

func TestDialTube(t *testing.T) {
	addr := createListener(t, scriptedResponses("USING jobs\r\n", "WATCHING 2\r\n", "INSERTED 3\r\n"))

	client, err := DialTube(context.Background(), []string{addr}, "jobs", nil, Config{})
	require.NoError(t, err)
	defer client.Close()

	job, err := client.Put(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), job.ID)
}

func TestDialTubeNoServers(t *testing.T) {
	_, err := DialTube(context.Background(), nil, "jobs", nil, Config{})
	require.ErrorIs(t, err, ErrNoServers)
}

func TestClientConnectionStats(t *testing.T) {
	client, _ := newMockClient(t, Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	}, "DELETED\r\n")

	require.NoError(t, client.Delete(context.Background(), 1))

	stats := client.ConnectionStats()
	assert.Equal(t, "127.0.0.1:11300", stats.Addr)
	assert.True(t, stats.Active)
	assert.Less(t, stats.IdleDuration, time.Second)
	assert.Equal(t, StateClosed, stats.CircuitBreakerState)
	assert.Equal(t, uint32(1), stats.CircuitBreakerCounts.TotalSuccesses)

	require.NoError(t, client.Close())
	assert.False(t, client.ConnectionStats().Active)
}

func TestClientCloseInterruptsReserve(t *testing.T) {
	client := dialTestClient(t, func(conn net.Conn) {
		// Accept requests, never answer.
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := client.Reserve(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, proto.IsClientError(err))
		assert.True(t, proto.ShouldCloseConnection(err))
	case <-time.After(time.Second):
		t.Fatal("reserve was not interrupted by Close")
	}
}
