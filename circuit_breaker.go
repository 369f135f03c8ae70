package beanstalk

import (
	"errors"
	"time"

	"github.com/pior/beanstalk/proto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the dispatches of one Client.
// The result type is unused: a Client reports success through the error only.
type CircuitBreaker = gobreaker.CircuitBreaker[bool]

// CircuitBreakerState is the state of a CircuitBreaker.
type CircuitBreakerState = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
// This is a helper for common use cases.
//
// The breaker trips when at least 3 requests were seen in the interval and
// 60% of them failed. Command errors (NOT_FOUND, JOB_TOO_BIG, ...) and
// argument errors count as successes: they say nothing about server health.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(serverAddr string) *CircuitBreaker {
	return func(serverAddr string) *CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: IsHealthyOutcome,
		}
		return gobreaker.NewCircuitBreaker[bool](settings)
	}
}

// IsHealthyOutcome reports whether err is compatible with a healthy server:
// nil, a CommandError, or a ClientError raised before any I/O.
func IsHealthyOutcome(err error) bool {
	if err == nil || proto.IsCommandError(err) {
		return true
	}
	var clientErr *proto.ClientError
	return errors.As(err, &clientErr) && !clientErr.Fatal
}

// isBreakerRejection reports whether err comes from the breaker itself rather
// than from the connection.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
