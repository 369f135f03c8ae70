package beanstalk

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/beanstalk/proto"
)

func TestNewCircuitBreakerConfig(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("localhost:11300")
	require.NotNil(t, cb)

	assert.Equal(t, "localhost:11300", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerTripsOnFatalErrors(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("test")
	fatal := &proto.ClientError{Message: "failed to read response line", Err: io.ErrUnexpectedEOF, Fatal: true}

	for range 2 {
		_, err := cb.Execute(func() (bool, error) { return false, fatal })
		require.Error(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())

	_, err := cb.Execute(func() (bool, error) { return false, fatal })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	_, err = cb.Execute(func() (bool, error) { return true, nil })
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, isBreakerRejection(err))
}

func TestCircuitBreakerIgnoresCommandErrors(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("test")

	for range 10 {
		_, err := cb.Execute(func() (bool, error) {
			return false, &proto.CommandError{Status: proto.StatusNotFound}
		})
		require.ErrorIs(t, err, proto.ErrNotFound)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.Counts().TotalFailures)
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, 50*time.Millisecond)("test")

	for range 3 {
		cb.Execute(func() (bool, error) { return false, &proto.ServerError{Status: proto.StatusInternalError} })
	}
	require.Equal(t, StateOpen, cb.State())

	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, 10*time.Millisecond)

	_, err := cb.Execute(func() (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestIsHealthyOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"command error", &proto.CommandError{Status: proto.StatusNotFound}, true},
		{"wrapped command error", fmt.Errorf("x: %w", &proto.CommandError{Status: proto.StatusJobTooBig}), true},
		{"argument error", &proto.ClientError{Message: "invalid"}, true},
		{"fatal client error", &proto.ClientError{Message: "io", Fatal: true}, false},
		{"server error", &proto.ServerError{Status: proto.StatusOutOfMemory}, false},
		{"unknown error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHealthyOutcome(tt.err))
		})
	}
}
