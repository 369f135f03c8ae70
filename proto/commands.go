package proto

import (
	"strconv"
	"time"
)

// Compile-time checks that every command satisfies Command.
var (
	_ Command[Job]      = (*Put)(nil)
	_ Command[Job]      = (*Reserve)(nil)
	_ Command[Job]      = (*ReserveJob)(nil)
	_ Command[Job]      = (*Peek)(nil)
	_ Command[string]   = (*Delete)(nil)
	_ Command[string]   = (*Release)(nil)
	_ Command[string]   = (*Bury)(nil)
	_ Command[string]   = (*Touch)(nil)
	_ Command[uint64]   = (*Kick)(nil)
	_ Command[string]   = (*KickJob)(nil)
	_ Command[Stats]    = (*StatsCmd)(nil)
	_ Command[string]   = (*UseTube)(nil)
	_ Command[uint64]   = (*WatchTube)(nil)
	_ Command[uint64]   = (*IgnoreTube)(nil)
	_ Command[string]   = (*ListTubeUsed)(nil)
	_ Command[[]string] = (*ListTubes)(nil)
	_ Command[string]   = (*PauseTube)(nil)
)

// Put submits a job.
//
// Wire format: put <pri> <delay> <ttr> <bytes>\r\n<data>\r\n
//
// Response statuses:
//   - INSERTED <id>: job stored
//   - BURIED <id>: server ran out of memory growing the priority queue, the
//     job was stored buried
//   - EXPECTED_CRLF, JOB_TOO_BIG: CommandError
type Put struct {
	sealedCommand
	priority uint32
	delay    uint64
	ttr      uint64
	data     []byte
}

// NewPut validates the job parameters and encodes payload.
//
// With enc set the payload is enc.Encode(payload). Without an encoder the
// payload must be a string, a []byte or a number.
func NewPut(payload any, priority int64, delay, ttr time.Duration, enc Encoder) (*Put, error) {
	pri, err := validatePriority(priority)
	if err != nil {
		return nil, err
	}
	if err := validateDelay(delay); err != nil {
		return nil, err
	}
	if ttr < time.Second {
		return nil, invalidArgument("job ttr must be greater than 0 seconds, got %s", ttr)
	}

	var data []byte
	if enc != nil {
		data, err = enc.Encode(payload)
		if err != nil {
			return nil, &ClientError{Message: "failed to encode job payload", Err: err}
		}
	} else {
		data, err = plainPayload(payload)
		if err != nil {
			return nil, err
		}
	}

	if len(data) > MaxPayloadSize {
		return nil, invalidArgument("job payload size %d exceeds maximum %d", len(data), MaxPayloadSize)
	}

	return &Put{
		priority: pri,
		delay:    seconds(delay),
		ttr:      seconds(ttr),
		data:     data,
	}, nil
}

func plainPayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
	}
	return nil, invalidArgument("without a payload encoder, job payload must be a string, []byte or number, got %T", payload)
}

// Size returns the length of the encoded job body.
func (c *Put) Size() int {
	return len(c.data)
}

func (c *Put) AppendRequest(buf []byte) []byte {
	buf = appendCRLF(c.appendHeader(buf))
	buf = append(buf, c.data...)
	return appendCRLF(buf)
}

func (c *Put) appendHeader(buf []byte) []byte {
	buf = appendKeyword(buf, CmdPut)
	buf = appendUintArg(buf, uint64(c.priority))
	buf = appendUintArg(buf, c.delay)
	buf = appendUintArg(buf, c.ttr)
	return appendUintArg(buf, uint64(len(c.data)))
}

// String renders the command line only, the body is never copied.
func (c *Put) String() string {
	var line [80]byte
	return string(c.appendHeader(line[:0]))
}

func (c *Put) ParseResponse(h Header, _ []byte) (Job, error) {
	switch h.Status() {
	case StatusInserted, StatusBuried:
		id, ok := h.Uint64Arg(0)
		if !ok {
			return Job{}, &ClientError{Message: "response is missing job id [" + h.String() + "]", Request: c.String()}
		}
		return Job{ID: id, Status: h.Status()}, nil
	case StatusJobTooBig:
		return Job{}, newCommandError(StatusJobTooBig, c.String(), "job payload size exceeds max-job-size")
	case StatusExpectedCRLF:
		return Job{}, newCommandError(StatusExpectedCRLF, c.String(), "job body was not followed by CRLF")
	}
	return Job{}, unexpectedStatus(h, c.String())
}

// Reserve waits for a job on the watched tubes.
//
// Wire format: reserve\r\n or reserve-with-timeout <seconds>\r\n
//
// Response statuses:
//   - RESERVED <id> <bytes>: job with data block
//   - DEADLINE_SOON, TIMED_OUT: no job; returned as a Job with that Status and
//     a nil error
type Reserve struct {
	sealedCommand
	timeout    uint64
	hasTimeout bool
	enc        Encoder
}

func NewReserve(enc Encoder) *Reserve {
	return &Reserve{enc: enc}
}

// NewReserveWithTimeout waits at most timeout, rounded down to seconds.
// A zero timeout polls.
func NewReserveWithTimeout(timeout time.Duration, enc Encoder) (*Reserve, error) {
	if timeout < 0 {
		return nil, invalidArgument("reserve timeout must not be negative, got %s", timeout)
	}
	return &Reserve{timeout: seconds(timeout), hasTimeout: true, enc: enc}, nil
}

func (c *Reserve) AppendRequest(buf []byte) []byte {
	if !c.hasTimeout {
		return appendCRLF(appendKeyword(buf, CmdReserve))
	}
	buf = appendKeyword(buf, CmdReserveWithTimeout)
	buf = appendUintArg(buf, c.timeout)
	return appendCRLF(buf)
}

func (c *Reserve) String() string {
	return requestLine(c)
}

func (c *Reserve) ParseResponse(h Header, body []byte) (Job, error) {
	switch h.Status() {
	case StatusReserved:
		return decodeJob(h, body, c.enc, c.String())
	case StatusDeadlineSoon, StatusTimedOut:
		return Job{Status: h.Status()}, nil
	}
	return Job{}, unexpectedStatus(h, c.String())
}

// ReserveJob reserves a specific job by id.
//
// Wire format: reserve-job <id>\r\n
type ReserveJob struct {
	sealedCommand
	id  uint64
	enc Encoder
}

func NewReserveJob(id uint64, enc Encoder) *ReserveJob {
	return &ReserveJob{id: id, enc: enc}
}

func (c *ReserveJob) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendUintArg(appendKeyword(buf, CmdReserveJob), c.id))
}

func (c *ReserveJob) String() string {
	return requestLine(c)
}

func (c *ReserveJob) ParseResponse(h Header, body []byte) (Job, error) {
	if h.Status() == StatusReserved {
		return decodeJob(h, body, c.enc, c.String())
	}
	_, err := expectStatus(h, c.String())
	return Job{}, err
}

// Peek inspects a job without reserving it: by id, or the next ready,
// delayed or buried job of the used tube.
//
// Wire format: peek <id>\r\n, peek-ready\r\n, peek-delayed\r\n, peek-buried\r\n
//
// Response statuses:
//   - FOUND <id> <bytes>: job with data block
//   - NOT_FOUND: CommandError
type Peek struct {
	sealedCommand
	keyword string
	id      uint64
	enc     Encoder
}

func NewPeek(id uint64, enc Encoder) *Peek {
	return &Peek{keyword: CmdPeek, id: id, enc: enc}
}

func NewPeekReady(enc Encoder) *Peek {
	return &Peek{keyword: CmdPeekReady, enc: enc}
}

func NewPeekDelayed(enc Encoder) *Peek {
	return &Peek{keyword: CmdPeekDelayed, enc: enc}
}

func NewPeekBuried(enc Encoder) *Peek {
	return &Peek{keyword: CmdPeekBuried, enc: enc}
}

func (c *Peek) AppendRequest(buf []byte) []byte {
	buf = appendKeyword(buf, c.keyword)
	if c.keyword == CmdPeek {
		buf = appendUintArg(buf, c.id)
	}
	return appendCRLF(buf)
}

func (c *Peek) String() string {
	return requestLine(c)
}

func (c *Peek) ParseResponse(h Header, body []byte) (Job, error) {
	if h.Status() == StatusFound {
		return decodeJob(h, body, c.enc, c.String())
	}
	_, err := expectStatus(h, c.String())
	return Job{}, err
}

// Delete removes a job.
//
// Wire format: delete <id>\r\n
//
// Response statuses: DELETED, NOT_FOUND (CommandError)
type Delete struct {
	sealedCommand
	id uint64
}

func NewDelete(id uint64) *Delete {
	return &Delete{id: id}
}

func (c *Delete) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendUintArg(appendKeyword(buf, CmdDelete), c.id))
}

func (c *Delete) String() string {
	return requestLine(c)
}

func (c *Delete) ParseResponse(h Header, _ []byte) (string, error) {
	return expectStatus(h, c.String(), StatusDeleted)
}

// Release puts a reserved job back into the ready queue.
//
// Wire format: release <id> <pri> <delay>\r\n
//
// Response statuses: RELEASED, BURIED (success), NOT_FOUND (CommandError)
type Release struct {
	sealedCommand
	id       uint64
	priority uint32
	delay    uint64
}

func NewRelease(id uint64, priority int64, delay time.Duration) (*Release, error) {
	pri, err := validatePriority(priority)
	if err != nil {
		return nil, err
	}
	if err := validateDelay(delay); err != nil {
		return nil, err
	}
	return &Release{id: id, priority: pri, delay: seconds(delay)}, nil
}

func (c *Release) AppendRequest(buf []byte) []byte {
	buf = appendKeyword(buf, CmdRelease)
	buf = appendUintArg(buf, c.id)
	buf = appendUintArg(buf, uint64(c.priority))
	buf = appendUintArg(buf, c.delay)
	return appendCRLF(buf)
}

func (c *Release) String() string {
	return requestLine(c)
}

func (c *Release) ParseResponse(h Header, _ []byte) (string, error) {
	return expectStatus(h, c.String(), StatusReleased, StatusBuried)
}

// Bury moves a reserved job to the buried state.
//
// Wire format: bury <id> <pri>\r\n
//
// Response statuses: BURIED, NOT_FOUND (CommandError)
type Bury struct {
	sealedCommand
	id       uint64
	priority uint32
}

func NewBury(id uint64, priority int64) (*Bury, error) {
	pri, err := validatePriority(priority)
	if err != nil {
		return nil, err
	}
	return &Bury{id: id, priority: pri}, nil
}

func (c *Bury) AppendRequest(buf []byte) []byte {
	buf = appendKeyword(buf, CmdBury)
	buf = appendUintArg(buf, c.id)
	buf = appendUintArg(buf, uint64(c.priority))
	return appendCRLF(buf)
}

func (c *Bury) String() string {
	return requestLine(c)
}

func (c *Bury) ParseResponse(h Header, _ []byte) (string, error) {
	return expectStatus(h, c.String(), StatusBuried)
}

// Touch extends the TTR of a reserved job.
//
// Wire format: touch <id>\r\n
//
// Response statuses: TOUCHED, NOT_FOUND (CommandError)
type Touch struct {
	sealedCommand
	id uint64
}

func NewTouch(id uint64) *Touch {
	return &Touch{id: id}
}

func (c *Touch) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendUintArg(appendKeyword(buf, CmdTouch), c.id))
}

func (c *Touch) String() string {
	return requestLine(c)
}

func (c *Touch) ParseResponse(h Header, _ []byte) (string, error) {
	return expectStatus(h, c.String(), StatusTouched)
}

// Kick moves up to bound buried (or, when none are buried, delayed) jobs of
// the used tube into the ready queue.
//
// Wire format: kick <bound>\r\n
//
// Response statuses: KICKED <count>
type Kick struct {
	sealedCommand
	bound uint64
}

func NewKick(bound uint64) *Kick {
	return &Kick{bound: bound}
}

func (c *Kick) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendUintArg(appendKeyword(buf, CmdKick), c.bound))
}

func (c *Kick) String() string {
	return requestLine(c)
}

func (c *Kick) ParseResponse(h Header, _ []byte) (uint64, error) {
	if h.Status() != StatusKicked {
		return 0, unexpectedStatus(h, c.String())
	}
	return countArg(h, c.String())
}

// KickJob moves one buried or delayed job into the ready queue.
//
// Wire format: kick-job <id>\r\n
//
// Response statuses: KICKED, NOT_FOUND (CommandError)
type KickJob struct {
	sealedCommand
	id uint64
}

func NewKickJob(id uint64) *KickJob {
	return &KickJob{id: id}
}

func (c *KickJob) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendUintArg(appendKeyword(buf, CmdKickJob), c.id))
}

func (c *KickJob) String() string {
	return requestLine(c)
}

func (c *KickJob) ParseResponse(h Header, _ []byte) (string, error) {
	return expectStatus(h, c.String(), StatusKicked)
}

// StatsCmd covers stats, stats-job and stats-tube.
//
// Wire format: stats\r\n, stats-job <id>\r\n, stats-tube <tube>\r\n
//
// Response statuses:
//   - OK <bytes>: YAML mapping decoded into Stats
//   - NOT_FOUND: CommandError (stats-job, stats-tube)
type StatsCmd struct {
	sealedCommand
	keyword string
	arg     string
}

func NewStats() *StatsCmd {
	return &StatsCmd{keyword: CmdStats}
}

func NewStatsJob(id uint64) *StatsCmd {
	return &StatsCmd{keyword: CmdStatsJob, arg: strconv.FormatUint(id, 10)}
}

func NewStatsTube(tube string) (*StatsCmd, error) {
	if err := ValidateTubeName(tube); err != nil {
		return nil, err
	}
	return &StatsCmd{keyword: CmdStatsTube, arg: tube}, nil
}

func (c *StatsCmd) AppendRequest(buf []byte) []byte {
	buf = appendKeyword(buf, c.keyword)
	if c.arg != "" {
		buf = appendArg(buf, c.arg)
	}
	return appendCRLF(buf)
}

func (c *StatsCmd) String() string {
	return requestLine(c)
}

func (c *StatsCmd) ParseResponse(h Header, body []byte) (Stats, error) {
	if _, err := expectStatus(h, c.String(), StatusOK); err != nil {
		return nil, err
	}
	stats, err := ParseStats(body)
	if err != nil {
		return nil, &ClientError{Message: "failed to decode stats body", Request: c.String(), Err: err}
	}
	return stats, nil
}

// UseTube selects the tube subsequent put commands go to.
//
// Wire format: use <tube>\r\n
//
// Response statuses: USING <tube>. A tube other than the requested one is a
// CommandError matching ErrTubeMismatch.
type UseTube struct {
	sealedCommand
	tube string
}

func NewUseTube(tube string) (*UseTube, error) {
	if err := ValidateTubeName(tube); err != nil {
		return nil, err
	}
	return &UseTube{tube: tube}, nil
}

func (c *UseTube) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendArg(appendKeyword(buf, CmdUse), c.tube))
}

func (c *UseTube) String() string {
	return requestLine(c)
}

func (c *UseTube) ParseResponse(h Header, _ []byte) (string, error) {
	if h.Status() != StatusUsing {
		return "", unexpectedStatus(h, c.String())
	}
	tube, _ := h.Arg(0)
	if tube != c.tube {
		err := newCommandError(StatusUsing, c.String(), "tube used "+strconv.Quote(tube)+" does not match requested tube")
		err.kind = ErrTubeMismatch
		return "", err
	}
	return tube, nil
}

// WatchTube adds a tube to the watch list used by reserve.
//
// Wire format: watch <tube>\r\n
//
// Response statuses: WATCHING <count>
type WatchTube struct {
	sealedCommand
	tube string
}

func NewWatchTube(tube string) (*WatchTube, error) {
	if err := ValidateTubeName(tube); err != nil {
		return nil, err
	}
	return &WatchTube{tube: tube}, nil
}

func (c *WatchTube) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendArg(appendKeyword(buf, CmdWatch), c.tube))
}

func (c *WatchTube) String() string {
	return requestLine(c)
}

func (c *WatchTube) ParseResponse(h Header, _ []byte) (uint64, error) {
	if h.Status() != StatusWatching {
		return 0, unexpectedStatus(h, c.String())
	}
	return countArg(h, c.String())
}

// IgnoreTube removes a tube from the watch list.
//
// Wire format: ignore <tube>\r\n
//
// Response statuses: WATCHING <count>, NOT_IGNORED (CommandError, the tube
// is the last one watched)
type IgnoreTube struct {
	sealedCommand
	tube string
}

func NewIgnoreTube(tube string) (*IgnoreTube, error) {
	if err := ValidateTubeName(tube); err != nil {
		return nil, err
	}
	return &IgnoreTube{tube: tube}, nil
}

func (c *IgnoreTube) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendArg(appendKeyword(buf, CmdIgnore), c.tube))
}

func (c *IgnoreTube) String() string {
	return requestLine(c)
}

func (c *IgnoreTube) ParseResponse(h Header, _ []byte) (uint64, error) {
	switch h.Status() {
	case StatusWatching:
		return countArg(h, c.String())
	case StatusNotIgnored:
		return 0, newCommandError(StatusNotIgnored, c.String(), "cannot ignore the only watched tube")
	}
	return 0, unexpectedStatus(h, c.String())
}

// ListTubeUsed returns the tube currently used.
//
// Wire format: list-tube-used\r\n
//
// Response statuses: USING <tube>
type ListTubeUsed struct {
	sealedCommand
}

func NewListTubeUsed() *ListTubeUsed {
	return &ListTubeUsed{}
}

func (c *ListTubeUsed) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendKeyword(buf, CmdListTubeUsed))
}

func (c *ListTubeUsed) String() string {
	return requestLine(c)
}

func (c *ListTubeUsed) ParseResponse(h Header, _ []byte) (string, error) {
	if h.Status() != StatusUsing {
		return "", unexpectedStatus(h, c.String())
	}
	tube, ok := h.Arg(0)
	if !ok || tube == "" {
		return "", &ClientError{Message: "response is missing tube name [" + h.String() + "]", Request: c.String()}
	}
	return tube, nil
}

// ListTubes covers list-tubes and list-tubes-watched.
//
// Wire format: list-tubes\r\n, list-tubes-watched\r\n
//
// Response statuses: OK <bytes> with a YAML sequence of tube names
type ListTubes struct {
	sealedCommand
	keyword string
}

func NewListTubes() *ListTubes {
	return &ListTubes{keyword: CmdListTubes}
}

func NewListTubesWatched() *ListTubes {
	return &ListTubes{keyword: CmdListTubesWatched}
}

func (c *ListTubes) AppendRequest(buf []byte) []byte {
	return appendCRLF(appendKeyword(buf, c.keyword))
}

func (c *ListTubes) String() string {
	return requestLine(c)
}

func (c *ListTubes) ParseResponse(h Header, body []byte) ([]string, error) {
	if h.Status() != StatusOK {
		return nil, unexpectedStatus(h, c.String())
	}
	tubes, err := ParseList(body)
	if err != nil {
		return nil, &ClientError{Message: "failed to decode tube list", Request: c.String(), Err: err}
	}
	return tubes, nil
}

// PauseTube delays new reservations from a tube.
//
// Wire format: pause-tube <tube> <delay>\r\n
//
// Response statuses: PAUSED, NOT_FOUND (CommandError)
type PauseTube struct {
	sealedCommand
	tube  string
	delay uint64
}

func NewPauseTube(tube string, delay time.Duration) (*PauseTube, error) {
	if err := ValidateTubeName(tube); err != nil {
		return nil, err
	}
	if err := validateDelay(delay); err != nil {
		return nil, err
	}
	return &PauseTube{tube: tube, delay: seconds(delay)}, nil
}

func (c *PauseTube) AppendRequest(buf []byte) []byte {
	buf = appendKeyword(buf, CmdPauseTube)
	buf = appendArg(buf, c.tube)
	buf = appendUintArg(buf, c.delay)
	return appendCRLF(buf)
}

func (c *PauseTube) String() string {
	return requestLine(c)
}

func (c *PauseTube) ParseResponse(h Header, _ []byte) (string, error) {
	return expectStatus(h, c.String(), StatusPaused)
}
