// Package sem provides the counting signal used to reserve buffer slots.
package sem

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout indicates the reservation was not granted in time.
var ErrTimeout = errors.New("acquire timeout")

// Signal is a counting signal with a fixed ceiling.
// Acquire waits while the count is zero and decrements on success,
// Release increments and wakes one waiter.
type Signal struct {
	max   int
	count int64
	sem   *semaphore.Weighted
}

// New creates a Signal holding initial out of max.
func New(max, initial int) *Signal {
	if max < 1 {
		max = 1
	}
	if initial < 0 {
		initial = 0
	} else if initial > max {
		initial = max
	}
	s := &Signal{
		max:   max,
		count: int64(initial),
		sem:   semaphore.NewWeighted(int64(max)),
	}
	// permits not yet signalled are parked as held.
	if held := max - initial; held > 0 {
		s.sem.TryAcquire(int64(held))
	}
	return s
}

// Max returns the ceiling of the count.
func (s *Signal) Max() int {
	return s.max
}

// Count returns the current count. While reservations are in flight the
// value is approximate; it is exact when nobody is acquiring or releasing.
func (s *Signal) Count() int {
	n := atomic.LoadInt64(&s.count)
	if n < 0 {
		return 0
	}
	if n > int64(s.max) {
		return s.max
	}
	return int(n)
}

// Acquire waits until the count is positive or ctx is done.
func (s *Signal) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	atomic.AddInt64(&s.count, -1)
	return nil
}

// AcquireTimeout waits at most timeout for the count to become positive.
// It returns ErrTimeout when the timeout elapses, or ctx.Err() if ctx is
// done first. A non-positive timeout polls once.
func (s *Signal) AcquireTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		if s.sem.TryAcquire(1) {
			atomic.AddInt64(&s.count, -1)
			return nil
		}
		return ErrTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Acquire(tctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
	return nil
}

// TryAcquire is AcquireTimeout reduced to granted or not.
func (s *Signal) TryAcquire(ctx context.Context, timeout time.Duration) bool {
	return s.AcquireTimeout(ctx, timeout) == nil
}

// Release increments the count and wakes one waiter.
// Releasing more than was taken panics.
func (s *Signal) Release() {
	atomic.AddInt64(&s.count, 1)
	s.sem.Release(1)
}
