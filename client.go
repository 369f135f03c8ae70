package beanstalk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pior/beanstalk/proto"
)

// Re-exported protocol types, so most callers only import this package.
type (
	Job     = proto.Job
	Stats   = proto.Stats
	Encoder = proto.Encoder
)

// Config holds configuration for a beanstalk Client.
type Config struct {
	// Dialer is the net.Dialer used by Dial.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// DialTimeout bounds connection establishment in Dial.
	// Zero means no limit beyond the context passed to Dial.
	DialTimeout time.Duration

	// Encoder turns payloads into job bodies and back.
	// If nil, Put accepts strings, byte slices and numbers only, and
	// Job.Payload is the body as a string.
	Encoder Encoder

	// Logger receives one debug entry per dispatched command.
	// If nil, logging is disabled.
	Logger *zap.Logger

	// NewCircuitBreaker creates the circuit breaker guarding the client.
	// Called once with the server address when the client is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) *CircuitBreaker
}

// Client sends beanstalk commands over a single transport.
//
// Calls are serialized: a command is written only once the response of the
// previous one was consumed in full. Use one Client per goroutine for
// parallelism. The Client keeps no copy of server-side session state (used
// tube, watch list).
//
// A fatal ClientError (I/O failure, desynchronized framing) closes the
// transport; every later call fails and a new Client must be created.
type Client struct {
	addr      string
	transport proto.Transport
	encoder   Encoder
	logger    *zap.Logger
	breaker   *CircuitBreaker

	mu sync.Mutex

	stats *clientStatsCollector
}

// NewClient creates a client over an established transport.
func NewClient(transport proto.Transport, config Config) (*Client, error) {
	if transport == nil || !transport.IsActive() {
		return nil, &proto.ClientError{Message: "given connection is not active"}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	addr := ""
	if a, ok := transport.(interface{ Addr() string }); ok {
		addr = a.Addr()
	}

	client := &Client{
		addr:      addr,
		transport: transport,
		encoder:   config.Encoder,
		logger:    logger.With(zap.String("server", addr)),
		stats:     newClientStatsCollector(),
	}

	if config.NewCircuitBreaker != nil {
		client.breaker = config.NewCircuitBreaker(addr)
	}

	return client, nil
}

// Dial connects to addr and returns a client over the new connection.
func Dial(ctx context.Context, addr string, config Config) (*Client, error) {
	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	conn, err := DialConnection(ctx, addr, config.Dialer)
	if err != nil {
		return nil, fmt.Errorf("beanstalk: dial %s: %w", addr, err)
	}

	return NewClient(conn, config)
}

// DialTube connects to the server owning tube among servers (see
// SelectServer), then uses and watches tube.
func DialTube(ctx context.Context, servers []string, tube string, selector ServerSelector, config Config) (*Client, error) {
	addr, err := SelectServer(tube, servers, selector)
	if err != nil {
		return nil, err
	}

	client, err := Dial(ctx, addr, config)
	if err != nil {
		return nil, err
	}

	if err := client.UseTube(ctx, tube); err != nil {
		_ = client.Close()
		return nil, err
	}
	if _, err := client.WatchTube(ctx, tube); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Addr returns the server address, empty when the transport does not expose it.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the transport when it supports closing. It does not wait for
// the command in flight, which fails on its next read.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ClientStats returns a snapshot of client statistics.
func (c *Client) ClientStats() ClientStats {
	return c.stats.snapshot()
}

// ConnectionStats returns the state of the connection and of its breaker.
func (c *Client) ConnectionStats() ConnectionStats {
	stats := ConnectionStats{
		Addr:                c.addr,
		Active:              c.transport.IsActive(),
		CircuitBreakerState: StateClosed,
	}
	if t, ok := c.transport.(interface{ IdleDuration() time.Duration }); ok {
		stats.IdleDuration = t.IdleDuration()
	}
	if c.breaker != nil {
		stats.CircuitBreakerState = c.breaker.State()
		stats.CircuitBreakerCounts = c.breaker.Counts()
	}
	return stats
}

// CircuitBreakerState returns the breaker state, StateClosed without breaker.
func (c *Client) CircuitBreakerState() CircuitBreakerState {
	if c.breaker == nil {
		return StateClosed
	}
	return c.breaker.State()
}

// execute dispatches one command with serialization, circuit breaking,
// accounting and logging.
func execute[T any](ctx context.Context, c *Client, op operation, cmd proto.Command[T]) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	var (
		res T
		err error
	)
	if c.breaker == nil {
		res, err = proto.Do(ctx, c.transport, cmd)
	} else {
		_, err = c.breaker.Execute(func() (bool, error) {
			var doErr error
			res, doErr = proto.Do(ctx, c.transport, cmd)
			return doErr == nil, doErr
		})
	}

	elapsed := time.Since(start)
	c.stats.record(op, elapsed, err)

	if err != nil {
		if ce := c.logger.Check(zap.DebugLevel, "beanstalk command failed"); ce != nil {
			ce.Write(
				zap.String("op", op.String()),
				zap.String("request", cmd.String()),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		}

		if !isBreakerRejection(err) && !errors.Is(err, proto.ErrNotActive) && proto.ShouldCloseConnection(err) {
			c.closeBroken(cmd.String(), err)
		}
		return res, err
	}

	if ce := c.logger.Check(zap.DebugLevel, "beanstalk command"); ce != nil {
		ce.Write(
			zap.String("op", op.String()),
			zap.String("request", cmd.String()),
			zap.Duration("elapsed", elapsed))
	}

	return res, nil
}

// closeBroken closes the transport after a fatal error. Must be called with
// c.mu held.
func (c *Client) closeBroken(request string, cause error) {
	c.logger.Warn("closing beanstalk connection after fatal error",
		zap.String("request", request),
		zap.Error(cause))

	if closer, ok := c.transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("failed to close beanstalk connection", zap.Error(err))
		}
	}
}

// Jobs

// Put submits payload to the used tube. Options default to priority 2048,
// no delay and a 30s TTR.
//
// The returned Job has ID set and Status INSERTED, or BURIED when the server
// could not grow its priority queue.
func (c *Client) Put(ctx context.Context, payload any, opts ...JobOption) (Job, error) {
	o := applyJobOptions(opts)

	cmd, err := proto.NewPut(payload, o.Priority, o.Delay, o.TTR, c.encoder)
	if err != nil {
		c.stats.record(opPut, 0, err)
		return Job{}, err
	}
	return execute(ctx, c, opPut, cmd)
}

// Reserve blocks until a job is available on the watched tubes.
//
// A Job with Status DEADLINE_SOON and a nil error means a job reserved by
// this client is about to reach its TTR; see Job.Reserved.
func (c *Client) Reserve(ctx context.Context) (Job, error) {
	return c.reserve(ctx, proto.NewReserve(c.encoder))
}

// ReserveWithTimeout is Reserve waiting at most timeout (whole seconds).
// On expiry the Job has Status TIMED_OUT and the error is nil.
//
// The ctx deadline, when set, must leave room for timeout.
func (c *Client) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (Job, error) {
	cmd, err := proto.NewReserveWithTimeout(timeout, c.encoder)
	if err != nil {
		c.stats.record(opReserve, 0, err)
		return Job{}, err
	}
	return c.reserve(ctx, cmd)
}

func (c *Client) reserve(ctx context.Context, cmd *proto.Reserve) (Job, error) {
	job, err := execute(ctx, c, opReserve, cmd)
	if err == nil && !job.Reserved() {
		c.stats.recordReserveTimeout()
	}
	return job, err
}

// ReserveJob reserves the job with the given id.
func (c *Client) ReserveJob(ctx context.Context, id uint64) (Job, error) {
	return execute(ctx, c, opReserve, proto.NewReserveJob(id, c.encoder))
}

// Delete removes a job. A job that does not exist, or is reserved by another
// client, yields a CommandError matching proto.ErrNotFound.
func (c *Client) Delete(ctx context.Context, id uint64) error {
	_, err := execute(ctx, c, opDelete, proto.NewDelete(id))
	return err
}

// Release returns a reserved job to the ready queue with the priority and
// delay of opts. The result is RELEASED, or BURIED when the server ran out of
// memory.
func (c *Client) Release(ctx context.Context, id uint64, opts ...JobOption) (string, error) {
	o := applyJobOptions(opts)

	cmd, err := proto.NewRelease(id, o.Priority, o.Delay)
	if err != nil {
		c.stats.record(opRelease, 0, err)
		return "", err
	}
	return execute(ctx, c, opRelease, cmd)
}

// Bury moves a reserved job to the buried list with the priority of opts.
func (c *Client) Bury(ctx context.Context, id uint64, opts ...JobOption) error {
	o := applyJobOptions(opts)

	cmd, err := proto.NewBury(id, o.Priority)
	if err != nil {
		c.stats.record(opBury, 0, err)
		return err
	}
	_, err = execute(ctx, c, opBury, cmd)
	return err
}

// Touch restarts the TTR of a reserved job.
func (c *Client) Touch(ctx context.Context, id uint64) error {
	_, err := execute(ctx, c, opTouch, proto.NewTouch(id))
	return err
}

// Kick moves up to bound buried jobs (or delayed jobs, when none are buried)
// of the used tube to the ready queue and returns how many were kicked.
func (c *Client) Kick(ctx context.Context, bound uint64) (uint64, error) {
	return execute(ctx, c, opKick, proto.NewKick(bound))
}

// KickJob moves one buried or delayed job to the ready queue.
func (c *Client) KickJob(ctx context.Context, id uint64) error {
	_, err := execute(ctx, c, opKick, proto.NewKickJob(id))
	return err
}

// Peek returns a job by id without reserving it.
func (c *Client) Peek(ctx context.Context, id uint64) (Job, error) {
	return execute(ctx, c, opPeek, proto.NewPeek(id, c.encoder))
}

// PeekReady returns the next ready job of the used tube.
func (c *Client) PeekReady(ctx context.Context) (Job, error) {
	return execute(ctx, c, opPeek, proto.NewPeekReady(c.encoder))
}

// PeekDelayed returns the delayed job of the used tube with the shortest
// delay left.
func (c *Client) PeekDelayed(ctx context.Context) (Job, error) {
	return execute(ctx, c, opPeek, proto.NewPeekDelayed(c.encoder))
}

// PeekBuried returns the next buried job of the used tube.
func (c *Client) PeekBuried(ctx context.Context) (Job, error) {
	return execute(ctx, c, opPeek, proto.NewPeekBuried(c.encoder))
}

// Stats

// Stats returns server-wide statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	return execute(ctx, c, opStats, proto.NewStats())
}

// StatsJob returns statistics about one job.
func (c *Client) StatsJob(ctx context.Context, id uint64) (Stats, error) {
	return execute(ctx, c, opStats, proto.NewStatsJob(id))
}

// StatsTube returns statistics about one tube.
func (c *Client) StatsTube(ctx context.Context, tube string) (Stats, error) {
	cmd, err := proto.NewStatsTube(tube)
	if err != nil {
		c.stats.record(opStats, 0, err)
		return nil, err
	}
	return execute(ctx, c, opStats, cmd)
}

// Tubes

// UseTube selects the tube Put submits to. The server confirming another
// tube yields a CommandError matching proto.ErrTubeMismatch.
func (c *Client) UseTube(ctx context.Context, tube string) error {
	cmd, err := proto.NewUseTube(tube)
	if err != nil {
		c.stats.record(opTube, 0, err)
		return err
	}
	_, err = execute(ctx, c, opTube, cmd)
	return err
}

// WatchTube adds tube to the watch list and returns the number of watched
// tubes.
func (c *Client) WatchTube(ctx context.Context, tube string) (uint64, error) {
	cmd, err := proto.NewWatchTube(tube)
	if err != nil {
		c.stats.record(opTube, 0, err)
		return 0, err
	}
	return execute(ctx, c, opTube, cmd)
}

// IgnoreTube removes tube from the watch list and returns the number of
// watched tubes. Ignoring the last watched tube yields a CommandError
// matching proto.ErrNotIgnored.
func (c *Client) IgnoreTube(ctx context.Context, tube string) (uint64, error) {
	cmd, err := proto.NewIgnoreTube(tube)
	if err != nil {
		c.stats.record(opTube, 0, err)
		return 0, err
	}
	return execute(ctx, c, opTube, cmd)
}

// ListTubeUsed returns the tube Put submits to.
func (c *Client) ListTubeUsed(ctx context.Context) (string, error) {
	return execute(ctx, c, opTube, proto.NewListTubeUsed())
}

// ListTubes returns all existing tubes.
func (c *Client) ListTubes(ctx context.Context) ([]string, error) {
	return execute(ctx, c, opTube, proto.NewListTubes())
}

// ListTubesWatched returns the watch list.
func (c *Client) ListTubesWatched(ctx context.Context) ([]string, error) {
	return execute(ctx, c, opTube, proto.NewListTubesWatched())
}

// PauseTube holds back reservations from tube for delay.
func (c *Client) PauseTube(ctx context.Context, tube string, delay time.Duration) error {
	cmd, err := proto.NewPauseTube(tube, delay)
	if err != nil {
		c.stats.record(opTube, 0, err)
		return err
	}
	_, err = execute(ctx, c, opTube, cmd)
	return err
}
