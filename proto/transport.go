package proto

import (
	"encoding/json"
	"time"
)

// Transport is the connection capability consumed by Do. The protocol engine
// never opens or closes sockets itself.
//
// Implementations are not required to be safe for concurrent use; Do issues
// one request and consumes its whole response before returning.
type Transport interface {
	// IsActive reports whether the underlying connection is usable.
	IsActive() bool

	// WriteAll writes p entirely or fails. p must not be retained.
	WriteAll(p []byte) error

	// ReadLine reads one line and returns it without the trailing CRLF.
	// It fails on I/O errors and on EOF.
	ReadLine() (string, error)

	// ReadFull reads exactly n bytes or fails.
	ReadFull(n int) ([]byte, error)
}

// deadliner is implemented by transports that map context deadlines onto
// socket deadlines.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Encoder turns application payloads into job bodies and back.
// A nil Encoder means payloads must already be textual or numeric.
type Encoder interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONEncoder encodes payloads as JSON. Decode yields the generic
// encoding/json representation (map[string]any, []any, float64, ...).
type JSONEncoder struct{}

var _ Encoder = JSONEncoder{}

func (JSONEncoder) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONEncoder) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
