package beanstalk

import (
	"time"

	"github.com/pior/beanstalk/proto"
)

// JobOptions configures put, release and bury.
type JobOptions struct {
	// Priority orders ready jobs. Lower values are reserved first; 0 is most
	// urgent, proto.MaxPriority least.
	Priority int64

	// Delay holds the job in the delayed state before it becomes ready.
	// Truncated to whole seconds. Ignored by bury.
	Delay time.Duration

	// TTR is the time a worker may hold the reservation before the server
	// releases the job. At least one second. Used by put only.
	TTR time.Duration
}

// DefaultJobOptions returns priority 2048, no delay and a 30 seconds TTR.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		Priority: proto.DefaultPriority,
		Delay:    proto.DefaultDelay,
		TTR:      proto.DefaultTTR,
	}
}

// JobOption is a functional option for job commands.
type JobOption func(*JobOptions)

// WithPriority sets the job priority.
func WithPriority(p int64) JobOption {
	return func(o *JobOptions) {
		o.Priority = p
	}
}

// WithDelay sets the job delay.
func WithDelay(d time.Duration) JobOption {
	return func(o *JobOptions) {
		o.Delay = d
	}
}

// WithTTR sets the time-to-run of the job.
func WithTTR(d time.Duration) JobOption {
	return func(o *JobOptions) {
		o.TTR = d
	}
}

func applyJobOptions(opts []JobOption) JobOptions {
	o := DefaultJobOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
