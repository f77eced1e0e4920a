package bbuf

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ringtask/pkg/ring"
	"github.com/robotalks/ringtask/pkg/sem"
)

// Buffer is the shared handle of a bounded buffer: the store, the lock
// guarding it and the filled/empty counting signals.
// Every operation takes the handle explicitly; there is no global state.
type Buffer struct {
	name    string
	maxData int
	timeout time.Duration
	metrics *Metrics

	lock  sync.Mutex
	store *ring.Store
	size  int
	data  int

	filled *sem.Signal
	empty  *sem.Signal

	stats Stats
}

// New creates a Buffer. Zero fields of conf fall back to defaults.
func New(conf Config) *Buffer {
	if conf.Capacity <= 0 {
		conf.Capacity = DefaultCapacity
	}
	if conf.MaxData <= 0 {
		conf.MaxData = DefaultMaxData
	}
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
	if conf.Name == "" {
		conf.Name = "default"
	}
	return &Buffer{
		name:    conf.Name,
		maxData: conf.MaxData,
		timeout: conf.Timeout,
		store:   ring.New(conf.Capacity),
		filled:  sem.New(conf.Capacity, 0),
		empty:   sem.New(conf.Capacity, conf.Capacity),
	}
}

// WithMetrics attaches metrics updated by every operation.
func (b *Buffer) WithMetrics(m *Metrics) *Buffer {
	b.metrics = m
	return b
}

// Name returns the configured name.
func (b *Buffer) Name() string {
	return b.name
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return b.store.Cap()
}

// Produce reserves an empty slot, writes the next value and publishes it
// as filled. If no slot frees up within the timeout the attempt is
// dropped with a "buffer full" warning and the store is left untouched.
func (b *Buffer) Produce(ctx context.Context) Result {
	res := Result{Op: OpProduce}
	if b.empty.TryAcquire(ctx, b.timeout) {
		b.lock.Lock()
		res.Value = b.data
		b.store.Write(res.Value)
		b.size++
		b.data = (b.data + 1) % b.maxData
		b.filled.Release()
		res.Snapshot = b.snapshot()
		b.lock.Unlock()
		res.OK = true
		atomic.AddUint64(&b.stats.Produced, 1)
		glog.Infof("[%s] produced %d", b.name, res.Value)
	} else {
		atomic.AddUint64(&b.stats.Full, 1)
		glog.Warningf("[%s] buffer full", b.name)
		res.Snapshot = b.Snapshot()
	}
	return b.finish(res)
}

// Consume reserves a filled slot, reads its value and publishes the slot
// as empty. If nothing is produced within the timeout the attempt is
// dropped with a "buffer empty" warning.
func (b *Buffer) Consume(ctx context.Context) Result {
	res := Result{Op: OpConsume}
	if b.filled.TryAcquire(ctx, b.timeout) {
		b.lock.Lock()
		res.Value = b.store.Read()
		b.size--
		b.empty.Release()
		res.Snapshot = b.snapshot()
		b.lock.Unlock()
		res.OK = true
		atomic.AddUint64(&b.stats.Consumed, 1)
		glog.Infof("[%s] consumed %d", b.name, res.Value)
	} else {
		atomic.AddUint64(&b.stats.Empty, 1)
		glog.Warningf("[%s] buffer empty", b.name)
		res.Snapshot = b.Snapshot()
	}
	return b.finish(res)
}

// Do runs the operation named by op.
func (b *Buffer) Do(ctx context.Context, op Op) Result {
	if op == OpConsume {
		return b.Consume(ctx)
	}
	return b.Produce(ctx)
}

// Snapshot returns a consistent view of the store taken under the lock.
// The signal counts are exact only when no reservation is in flight.
func (b *Buffer) Snapshot() Snapshot {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.snapshot()
}

func (b *Buffer) snapshot() Snapshot {
	return Snapshot{
		Head:     b.store.Head(),
		Tail:     b.store.Tail(),
		Size:     b.size,
		Filled:   b.filled.Count(),
		Empty:    b.empty.Count(),
		Contents: b.store.Contents(b.size),
	}
}

// Stats returns the operation counters.
func (b *Buffer) Stats() Stats {
	return Stats{
		Produced: atomic.LoadUint64(&b.stats.Produced),
		Consumed: atomic.LoadUint64(&b.stats.Consumed),
		Full:     atomic.LoadUint64(&b.stats.Full),
		Empty:    atomic.LoadUint64(&b.stats.Empty),
	}
}

func (b *Buffer) finish(res Result) Result {
	glog.Infof("[%s] buffer: %s", b.name, res.Snapshot)
	if m := b.metrics; m != nil {
		m.record(res)
	}
	return res
}
