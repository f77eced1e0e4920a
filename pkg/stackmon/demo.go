package stackmon

import (
	"context"
	"runtime"
	"time"

	"github.com/golang/glog"
)

// Sizes used by the demo tasks.
const (
	NormalStackSize = 2048
	SmallStackSize  = 1800
	LargeArraySize  = 1500
	// PrintFrameSize is charged around every log call.
	PrintFrameSize = 160
)

// DemoConfig configures the demo tasks.
type DemoConfig struct {
	NormalStack  int
	SmallStack   int
	NormalPeriod time.Duration
	SmallPeriod  time.Duration
}

// DefaultDemoConfig returns the sizes and periods of the demo firmware.
func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		NormalStack:  NormalStackSize,
		SmallStack:   SmallStackSize,
		NormalPeriod: time.Second,
		SmallPeriod:  500 * time.Millisecond,
	}
}

// Tasks creates the normal and the small stack demo tasks.
func (c DemoConfig) Tasks() []*Task {
	return []*Task{
		NormalTask(c.NormalStack, c.NormalPeriod),
		SmallStackTask(c.SmallStack, c.SmallPeriod),
	}
}

// NormalTask increments a local counter every period.
func NormalTask(stackSize int, period time.Duration) *Task {
	return NewTask("Normal Task", stackSize, func(ctx context.Context, t *Task) error {
		localVar := 0
		for {
			localVar++
			if err := logf(t, "Normal Task - Running, LocalVar: %d", localVar); err != nil {
				return err
			}
			if err := sleep(ctx, period); err != nil {
				return err
			}
		}
	})
}

// SmallStackTask holds a large work array on a small stack, leaving
// little margin.
func SmallStackTask(stackSize int, period time.Duration) *Task {
	return NewTask("Small Stack Task", stackSize, func(ctx context.Context, t *Task) error {
		release, err := t.Use(LargeArraySize)
		if err != nil {
			glog.Error("Failed to allocate memory for largeArray")
			return err
		}
		defer release()
		largeArray := make([]byte, LargeArraySize)
		for i := 0; i < 200; i++ {
			largeArray[i] = byte(i)
		}
		for {
			if err := logf(t, "Small Stack Task - Running"); err != nil {
				return err
			}
			if err := logf(t, "Free heap size: %d bytes", freeHeap()); err != nil {
				return err
			}
			if err := sleep(ctx, period); err != nil {
				return err
			}
		}
	})
}

func logf(t *Task, format string, args ...interface{}) error {
	release, err := t.Use(PrintFrameSize)
	if err != nil {
		return err
	}
	defer release()
	glog.Infof(format, args...)
	return nil
}

func freeHeap() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapIdle - ms.HeapReleased
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
