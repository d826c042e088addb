package coredelay

import (
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Delay computes how long to sleep before retry attempt number attempt.
// Attempts are numbered starting at 1 and increase monotonically, which is
// what allows schedules to be backed by a stateful backoff policy.  A Delay
// is not safe for concurrent use; create one per operation.
type Delay interface {
	Calculate(attempt uint32) time.Duration
}

type backOffDelay struct {
	b   backoff.BackOff
	max time.Duration
}

func (d *backOffDelay) Calculate(attempt uint32) time.Duration {
	next := d.b.NextBackOff()
	if next == backoff.Stop || next > d.max {
		return d.max
	}
	return next
}

// Fixed returns a schedule that always sleeps for d.
func Fixed(d time.Duration) Delay {
	return &backOffDelay{
		b:   backoff.NewConstantBackOff(d),
		max: d,
	}
}

// Exponential returns a schedule that starts at initial and doubles up to
// max.  The schedule never gives up on its own; bounding the overall
// operation is the caller's context's job.
func Exponential(initial time.Duration, max time.Duration) Delay {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &backOffDelay{
		b:   b,
		max: max,
	}
}
