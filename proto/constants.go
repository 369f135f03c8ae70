package proto

import (
	"math"
	"time"
)

// Protocol delimiters
const (
	// CRLF terminates every request line, response line and data block.
	CRLF = "\r\n"

	// Space separates tokens on a request or response line.
	Space = " "
)

// Command keywords.
const (
	CmdPut                = "put"
	CmdReserve            = "reserve"
	CmdReserveWithTimeout = "reserve-with-timeout"
	CmdReserveJob         = "reserve-job"
	CmdDelete             = "delete"
	CmdRelease            = "release"
	CmdBury               = "bury"
	CmdTouch              = "touch"
	CmdKick               = "kick"
	CmdKickJob            = "kick-job"
	CmdPeek               = "peek"
	CmdPeekReady          = "peek-ready"
	CmdPeekDelayed        = "peek-delayed"
	CmdPeekBuried         = "peek-buried"
	CmdStats              = "stats"
	CmdStatsJob           = "stats-job"
	CmdStatsTube          = "stats-tube"
	CmdUse                = "use"
	CmdWatch              = "watch"
	CmdIgnore             = "ignore"
	CmdListTubeUsed       = "list-tube-used"
	CmdListTubes          = "list-tubes"
	CmdListTubesWatched   = "list-tubes-watched"
	CmdPauseTube          = "pause-tube"
)

// Response status tokens.
//
// Success and command-specific outcomes:
const (
	StatusInserted     = "INSERTED"
	StatusBuried       = "BURIED"
	StatusExpectedCRLF = "EXPECTED_CRLF"
	StatusJobTooBig    = "JOB_TOO_BIG"
	StatusReserved     = "RESERVED"
	StatusDeadlineSoon = "DEADLINE_SOON"
	StatusTimedOut     = "TIMED_OUT"
	StatusDeleted      = "DELETED"
	StatusNotFound     = "NOT_FOUND"
	StatusReleased     = "RELEASED"
	StatusTouched      = "TOUCHED"
	StatusKicked       = "KICKED"
	StatusFound        = "FOUND"
	StatusOK           = "OK"
	StatusUsing        = "USING"
	StatusWatching     = "WATCHING"
	StatusNotIgnored   = "NOT_IGNORED"
	StatusPaused       = "PAUSED"
)

// Global error statuses. Any command may receive one of these; they signal a
// degraded or confused server rather than a command-specific outcome.
const (
	StatusOutOfMemory    = "OUT_OF_MEMORY"
	StatusInternalError  = "INTERNAL_ERROR"
	StatusBadFormat      = "BAD_FORMAT"
	StatusUnknownCommand = "UNKNOWN_COMMAND"
	StatusDraining       = "DRAINING"
)

// Protocol limits and defaults
const (
	// MaxPriority is the largest job priority (2^32-1). Zero is most urgent.
	MaxPriority = math.MaxUint32

	// MaxPayloadSize is the largest encoded job body accepted by Put.
	MaxPayloadSize = 65536

	// MaxBodySize bounds the data block length accepted from the server.
	MaxBodySize = 64 << 20

	// MaxTubeNameLength is the longest tube name accepted by beanstalkd.
	MaxTubeNameLength = 200

	DefaultPriority = 2048
	DefaultDelay    = 0 * time.Second
	DefaultTTR      = 30 * time.Second
	DefaultTube     = "default"
)

var errorStatuses = map[string]struct{}{
	StatusOutOfMemory:    {},
	StatusInternalError:  {},
	StatusBadFormat:      {},
	StatusUnknownCommand: {},
	StatusDraining:       {},
}

// Statuses followed by "<bytes>\r\n<data>\r\n". The length is always the last
// token of the status line.
var bodyStatuses = map[string]struct{}{
	StatusReserved: {},
	StatusFound:    {},
	StatusOK:       {},
}

// IsErrorStatus reports whether status is one of the global error statuses.
func IsErrorStatus(status string) bool {
	_, ok := errorStatuses[status]
	return ok
}

// CarriesBody reports whether a response with the given status is followed
// by a length-prefixed data block.
func CarriesBody(status string) bool {
	_, ok := bodyStatuses[status]
	return ok
}
