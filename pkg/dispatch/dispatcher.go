// Package dispatch turns a stream of input symbols into buffer operations.
package dispatch

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ringtask/pkg/bbuf"
	fx "github.com/robotalks/ringtask/pkg/framework"
)

// Recognized symbols.
const (
	SymbolProduce byte = 'p'
	SymbolConsume byte = 'c'
)

// DefaultPollInterval is the idle wait between empty reads.
const DefaultPollInterval = 10 * time.Millisecond

// State of the dispatcher.
type State int

const (
	// StateIdle means waiting for input.
	StateIdle State = iota
	// StateDispatching means an operation is being spawned.
	StateDispatching
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateDispatching {
		return "dispatching"
	}
	return "idle"
}

// ResultHandler is called when a spawned operation completes.
type ResultHandler interface {
	HandleResult(bbuf.Result)
}

// HandleResultFunc is func type of ResultHandler.
type HandleResultFunc func(bbuf.Result)

// HandleResult implements ResultHandler.
func (f HandleResultFunc) HandleResult(res bbuf.Result) {
	f(res)
}

// Dispatcher reads single-byte symbols and spawns one operation per
// recognized symbol. Spawning is fire-and-forget: the dispatcher never
// waits for an operation, so any number may be in flight at once.
type Dispatcher struct {
	Reader       io.Reader
	Buffer       *bbuf.Buffer
	Handler      ResultHandler
	PollInterval time.Duration
	// ReadTimeout is set to true if Reader returns on idle, either with
	// zero bytes or a timeout error (e.g. a serial device opened with
	// VMIN=0, or a file supporting read deadlines). Otherwise reads happen
	// in a background goroutine.
	ReadTimeout bool

	spawner     fx.Spawner
	dispatching int32
	ignored     uint64
}

// New creates a Dispatcher.
func New(r io.Reader, buf *bbuf.Buffer) *Dispatcher {
	return &Dispatcher{
		Reader:       r,
		Buffer:       buf,
		PollInterval: DefaultPollInterval,
	}
}

// Name implements framework.Named.
func (d *Dispatcher) Name() string {
	return "dispatcher"
}

// State returns the current state.
func (d *Dispatcher) State() State {
	if atomic.LoadInt32(&d.dispatching) > 0 {
		return StateDispatching
	}
	return StateIdle
}

// InFlight returns the number of operations not yet completed.
func (d *Dispatcher) InFlight() int {
	return d.spawner.Active()
}

// Ignored returns the number of unrecognized symbols.
func (d *Dispatcher) Ignored() uint64 {
	return atomic.LoadUint64(&d.ignored)
}

// Dispatch spawns the operation for symbol and reports whether the
// symbol was recognized.
func (d *Dispatcher) Dispatch(symbol byte) bool {
	var op bbuf.Op
	switch symbol {
	case SymbolProduce:
		op = bbuf.OpProduce
	case SymbolConsume:
		op = bbuf.OpConsume
	default:
		atomic.AddUint64(&d.ignored, 1)
		glog.V(3).Infof("ignored symbol 0x%02x", symbol)
		return false
	}
	atomic.AddInt32(&d.dispatching, 1)
	d.spawner.Go(op.String(), func() {
		// operations are never canceled; the reservation timeout bounds them.
		res := d.Buffer.Do(context.Background(), op)
		if h := d.Handler; h != nil {
			h.HandleResult(res)
		}
	})
	atomic.AddInt32(&d.dispatching, -1)
	return true
}

// Write implements io.Writer, dispatching every byte of p.
func (d *Dispatcher) Write(p []byte) (int, error) {
	for _, b := range p {
		d.Dispatch(b)
	}
	return len(p), nil
}

// Wait blocks until every spawned operation completed.
func (d *Dispatcher) Wait() {
	d.spawner.Wait()
}

// Run reads symbols until ctx is done or the reader fails.
// End of input is not an error: Run waits for in-flight operations and
// returns nil.
func (d *Dispatcher) Run(ctx context.Context) (err error) {
	defer d.spawner.Wait()
	if d.ReadTimeout {
		err = d.pollLoop(ctx)
	} else {
		err = d.chanLoop(ctx)
	}
	if err == io.EOF {
		glog.Info("end of input")
		return nil
	}
	return err
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

func (d *Dispatcher) pollLoop(ctx context.Context) error {
	buf := make([]byte, 1)
	interval := d.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	dl, _ := d.Reader.(readDeadliner)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if dl != nil {
			// not every file supports deadlines, it then simply blocks.
			dl.SetReadDeadline(time.Now().Add(interval))
		}
		n, err := d.Reader.Read(buf)
		if n > 0 {
			d.Dispatch(buf[0])
			continue
		}
		if err != nil {
			if !os.IsTimeout(err) {
				return err
			}
			if dl != nil {
				// the read already waited out the deadline.
				continue
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (d *Dispatcher) chanLoop(ctx context.Context) error {
	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case b := <-byteCh:
			d.Dispatch(b)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for {
		n, err := d.Reader.Read(buf)
		if n > 0 {
			select {
			case byteCh <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// ResultHandlers fans a result out to every handler in order.
type ResultHandlers []ResultHandler

// HandleResult implements ResultHandler.
func (h ResultHandlers) HandleResult(res bbuf.Result) {
	for _, handler := range h {
		handler.HandleResult(res)
	}
}
