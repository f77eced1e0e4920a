// Package stackmon monitors the minimum remaining stack of tasks.
package stackmon

import (
	"fmt"
	"sync"
)

// StackOverflowError is returned when a charge exceeds a task's stack.
type StackOverflowError struct {
	Task string
	Size int
	Want int
}

// Error implements error.
func (e *StackOverflowError) Error() string {
	return fmt.Sprintf("stack overflow in task %s: need %d of %d bytes", e.Task, e.Want, e.Size)
}

// Budget tracks the stack usage a task declares against its size.
// Goroutine stacks grow on demand, so usage is charged explicitly by the
// task for the frames and buffers it holds.
type Budget struct {
	name string
	size int

	lock sync.Mutex
	used int
	peak int
}

// NewBudget creates a Budget of size bytes.
func NewBudget(name string, size int) *Budget {
	return &Budget{name: name, size: size}
}

// Size returns the declared stack size.
func (b *Budget) Size() int {
	return b.size
}

// Use charges n bytes until the returned release func is called.
// Exceeding the size pins the high-water-mark at zero and fails with
// *StackOverflowError.
func (b *Budget) Use(n int) (release func(), err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if want := b.used + n; want > b.size {
		b.peak = b.size
		return nil, &StackOverflowError{Task: b.name, Size: b.size, Want: want}
	}
	b.used += n
	if b.used > b.peak {
		b.peak = b.used
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			b.lock.Lock()
			b.used -= n
			b.lock.Unlock()
		})
	}, nil
}

// Used returns the bytes currently charged.
func (b *Budget) Used() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.used
}

// HighWaterMark returns the lowest remaining margin ever observed.
func (b *Budget) HighWaterMark() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	if hwm := b.size - b.peak; hwm > 0 {
		return hwm
	}
	return 0
}
