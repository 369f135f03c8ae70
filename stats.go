package beanstalk

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/beanstalk/proto"
)

// ConnectionStats describes the connection of a Client.
type ConnectionStats struct {
	Addr   string
	Active bool

	// IdleDuration is the time since the last read or write, zero when the
	// transport does not track it.
	IdleDuration time.Duration

	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

// ClientStats contains counters of the operations a Client dispatched.
//
// For Prometheus integration, expose these as:
//   - Counters: Puts, Reserves, Deletes, Releases, Buries, Touches, Kicks,
//     Peeks, TubeCommands, StatsCommands
//   - Counters: ClientErrors, CommandErrors, ServerErrors (with kind label)
//   - Counter: ReserveTimeouts (derive empty-reserve rate as ReserveTimeouts/Reserves)
type ClientStats struct {
	Puts            uint64
	Reserves        uint64
	ReserveTimeouts uint64 // reserves answered with TIMED_OUT or DEADLINE_SOON
	Deletes         uint64
	Releases        uint64
	Buries          uint64
	Touches         uint64
	Kicks           uint64
	Peeks           uint64
	TubeCommands    uint64 // use, watch, ignore, list-*, pause-tube
	StatsCommands   uint64

	ClientErrors  uint64
	CommandErrors uint64
	ServerErrors  uint64

	// DispatchTimeNs is the total time spent in exchanges with the server.
	DispatchTimeNs uint64
}

type operation int

const (
	opPut operation = iota
	opReserve
	opDelete
	opRelease
	opBury
	opTouch
	opKick
	opPeek
	opTube
	opStats
	opCount
)

var operationNames = [opCount]string{
	opPut:     "put",
	opReserve: "reserve",
	opDelete:  "delete",
	opRelease: "release",
	opBury:    "bury",
	opTouch:   "touch",
	opKick:    "kick",
	opPeek:    "peek",
	opTube:    "tube",
	opStats:   "stats",
}

func (o operation) String() string {
	return operationNames[o]
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
type clientStatsCollector struct {
	ops             [opCount]atomic.Uint64
	reserveTimeouts atomic.Uint64
	clientErrors    atomic.Uint64
	commandErrors   atomic.Uint64
	serverErrors    atomic.Uint64
	dispatchTimeNs  atomic.Uint64
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) record(op operation, elapsed time.Duration, err error) {
	c.ops[op].Add(1)
	c.dispatchTimeNs.Add(uint64(elapsed.Nanoseconds()))

	if err == nil {
		return
	}

	var (
		cmdErr    *proto.CommandError
		serverErr *proto.ServerError
	)
	switch {
	case errors.As(err, &cmdErr):
		c.commandErrors.Add(1)
	case errors.As(err, &serverErr):
		c.serverErrors.Add(1)
	default:
		c.clientErrors.Add(1)
	}
}

func (c *clientStatsCollector) recordReserveTimeout() {
	c.reserveTimeouts.Add(1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Puts:            c.ops[opPut].Load(),
		Reserves:        c.ops[opReserve].Load(),
		ReserveTimeouts: c.reserveTimeouts.Load(),
		Deletes:         c.ops[opDelete].Load(),
		Releases:        c.ops[opRelease].Load(),
		Buries:          c.ops[opBury].Load(),
		Touches:         c.ops[opTouch].Load(),
		Kicks:           c.ops[opKick].Load(),
		Peeks:           c.ops[opPeek].Load(),
		TubeCommands:    c.ops[opTube].Load(),
		StatsCommands:   c.ops[opStats].Load(),
		ClientErrors:    c.clientErrors.Load(),
		CommandErrors:   c.commandErrors.Load(),
		ServerErrors:    c.serverErrors.Load(),
		DispatchTimeNs:  c.dispatchTimeNs.Load(),
	}
}
