package dispatch

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ringtask/pkg/bbuf"
)

type chanReader struct {
	readCh <-chan byte
}

func (r *chanReader) Read(p []byte) (int, error) {
	b, ok := <-r.readCh
	if !ok {
		return 0, io.EOF
	}
	p[0] = b
	return 1, nil
}

// pollReader returns no data instead of blocking, like a serial port with
// a read timeout.
type pollReader struct {
	lock    sync.Mutex
	pending []byte
	err     error
	reads   int
}

func (r *pollReader) Read(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reads++
	if len(r.pending) == 0 {
		return 0, r.err
	}
	p[0], r.pending = r.pending[0], r.pending[1:]
	return 1, nil
}

func (r *pollReader) inject(s string, err error) {
	r.lock.Lock()
	r.pending = append(r.pending, s...)
	r.err = err
	r.lock.Unlock()
}

type dispatchTestEnv struct {
	t        *testing.T
	buffer   *bbuf.Buffer
	results  chan bbuf.Result
	dispatch *Dispatcher
}

func newDispatchTestEnv(t *testing.T, r io.Reader) *dispatchTestEnv {
	env := &dispatchTestEnv{
		t:       t,
		buffer:  bbuf.New(bbuf.Config{Name: "test", Capacity: 5, MaxData: 5, Timeout: 20 * time.Millisecond}),
		results: make(chan bbuf.Result, 64),
	}
	env.dispatch = New(r, env.buffer)
	env.dispatch.Handler = HandleResultFunc(func(res bbuf.Result) {
		env.results <- res
	})
	return env
}

func (e *dispatchTestEnv) nextResult() bbuf.Result {
	select {
	case res := <-e.results:
		return res
	case <-time.After(time.Second):
		e.t.Fatal("result timeout")
	}
	return bbuf.Result{}
}

func (e *dispatchTestEnv) outcomes(count int) (outcomes []string, values []int) {
	for i := 0; i < count; i++ {
		res := e.nextResult()
		outcomes = append(outcomes, res.Outcome())
		if res.OK {
			values = append(values, res.Value)
		}
	}
	return
}

func TestDispatchSymbols(t *testing.T) {
	env := newDispatchTestEnv(t, nil)
	require.True(t, env.dispatch.Dispatch('p'))
	require.Equal(t, "produced", env.nextResult().Outcome())
	require.True(t, env.dispatch.Dispatch('c'))
	require.Equal(t, "consumed", env.nextResult().Outcome())
	for _, b := range []byte("xP C\r\n\x00") {
		require.False(t, env.dispatch.Dispatch(b))
	}
	require.Equal(t, uint64(7), env.dispatch.Ignored())
	env.dispatch.Wait()
	require.Equal(t, 0, env.dispatch.InFlight())
	require.Equal(t, StateIdle, env.dispatch.State())
}

func TestDispatchSequentialScenario(t *testing.T) {
	env := newDispatchTestEnv(t, nil)
	var outcomes []string
	var values []int
	for _, b := range []byte("pppppp") {
		env.dispatch.Dispatch(b)
		res := env.nextResult()
		outcomes = append(outcomes, res.Outcome())
		if res.OK {
			values = append(values, res.Value)
		}
	}
	require.Equal(t, []string{"produced", "produced", "produced", "produced", "produced", "full"}, outcomes)
	require.Equal(t, []int{0, 1, 2, 3, 4}, values)

	outcomes, values = nil, nil
	for _, b := range []byte("cccccc") {
		env.dispatch.Dispatch(b)
		res := env.nextResult()
		outcomes = append(outcomes, res.Outcome())
		if res.OK {
			values = append(values, res.Value)
		}
	}
	require.Equal(t, []string{"consumed", "consumed", "consumed", "consumed", "consumed", "empty"}, outcomes)
	require.Equal(t, []int{0, 1, 2, 3, 4}, values)
}

func TestRunUntilEOF(t *testing.T) {
	env := newDispatchTestEnv(t, strings.NewReader("pp\npppp"))
	require.NoError(t, env.dispatch.Run(context.Background()))
	require.Equal(t, 0, env.dispatch.InFlight())
	outcomes, values := env.outcomes(6)
	require.ElementsMatch(t, []string{"produced", "produced", "produced", "produced", "produced", "full"}, outcomes)
	require.ElementsMatch(t, []int{0, 1, 2, 3, 4}, values)
	require.Equal(t, "[0 1 2 3 4]", env.buffer.Snapshot().String())

	env.dispatch.Reader = strings.NewReader("cccccc")
	require.NoError(t, env.dispatch.Run(context.Background()))
	outcomes, values = env.outcomes(6)
	require.ElementsMatch(t, []string{"consumed", "consumed", "consumed", "consumed", "consumed", "empty"}, outcomes)
	require.ElementsMatch(t, []int{0, 1, 2, 3, 4}, values)
	s := env.buffer.Snapshot()
	require.Equal(t, 0, s.Filled)
	require.Equal(t, 5, s.Empty)
}

func TestRunCanceled(t *testing.T) {
	readCh := make(chan byte)
	env := newDispatchTestEnv(t, &chanReader{readCh: readCh})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.dispatch.Run(ctx) }()

	readCh <- 'p'
	require.Equal(t, "produced", env.nextResult().Outcome())
	readCh <- 'c'
	require.Equal(t, "consumed", env.nextResult().Outcome())
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher not stopped")
	}
}

func TestRunReadError(t *testing.T) {
	failure := errors.New("device gone")
	r := &pollReader{}
	r.inject("p", failure)
	env := newDispatchTestEnv(t, r)
	env.dispatch.ReadTimeout = true
	require.Equal(t, failure, env.dispatch.Run(context.Background()))
	require.Equal(t, "produced", env.nextResult().Outcome())
}

func TestRunPolling(t *testing.T) {
	r := &pollReader{}
	env := newDispatchTestEnv(t, r)
	env.dispatch.ReadTimeout = true
	env.dispatch.PollInterval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.dispatch.Run(ctx) }()

	r.inject("p", nil)
	require.Equal(t, "produced", env.nextResult().Outcome())
	r.inject("c", nil)
	require.Equal(t, "consumed", env.nextResult().Outcome())
	r.inject("c", nil)
	require.Equal(t, "empty", env.nextResult().Outcome())
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher not stopped")
	}
	r.lock.Lock()
	require.True(t, r.reads > 3)
	r.lock.Unlock()
}

func TestWriteDispatches(t *testing.T) {
	env := newDispatchTestEnv(t, nil)
	n, err := env.dispatch.Write([]byte("p?p"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	outcomes, _ := env.outcomes(2)
	require.Equal(t, []string{"produced", "produced"}, outcomes)
	require.Equal(t, uint64(1), env.dispatch.Ignored())
}

func TestRunPollingWithDeadline(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()
	env := newDispatchTestEnv(t, r)
	env.dispatch.ReadTimeout = true
	env.dispatch.PollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.dispatch.Run(ctx) }()

	_, err = w.Write([]byte("p"))
	require.NoError(t, err)
	require.Equal(t, "produced", env.nextResult().Outcome())
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher not stopped")
	}
}

func TestResultHandlers(t *testing.T) {
	var got []string
	handlers := ResultHandlers{
		HandleResultFunc(func(res bbuf.Result) { got = append(got, "a:"+res.Outcome()) }),
		HandleResultFunc(func(res bbuf.Result) { got = append(got, "b:"+res.Outcome()) }),
	}
	handlers.HandleResult(bbuf.Result{Op: bbuf.OpConsume})
	require.Equal(t, []string{"a:empty", "b:empty"}, got)
}

func TestWriteWhileRunStops(t *testing.T) {
	for i := 0; i < 50; i++ {
		env := newDispatchTestEnv(t, strings.NewReader(""))
		env.dispatch.Handler = nil
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-stop:
					return
				default:
					env.dispatch.Write([]byte("pc"))
				}
			}
		}()
		require.NoError(t, env.dispatch.Run(context.Background()))
		close(stop)
		<-done
		env.dispatch.Wait()
		require.Equal(t, 0, env.dispatch.InFlight())
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// deadlineReader reports a timeout on every empty read as if its deadline
// had already been waited out.
type deadlineReader struct {
	pollReader
	deadlines int32
}

func (r *deadlineReader) SetReadDeadline(time.Time) error {
	atomic.AddInt32(&r.deadlines, 1)
	return nil
}

func TestRunPollingDeadlineNoExtraWait(t *testing.T) {
	r := &deadlineReader{}
	r.err = timeoutError{}
	env := newDispatchTestEnv(t, r)
	env.dispatch.ReadTimeout = true
	env.dispatch.PollInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.dispatch.Run(ctx) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&r.deadlines) > 3
	}, time.Second, time.Millisecond)
	r.inject("p", timeoutError{})
	require.Equal(t, "produced", env.nextResult().Outcome())
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher not stopped")
	}
}
