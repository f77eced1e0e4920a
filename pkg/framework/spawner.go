package framework

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// Spawner starts short-lived tasks without handing out a handle.
// The spawning side never observes completion; Wait exists for shutdown
// and tests. Go may be called from any goroutine, also while Wait is
// blocking; such calls are held until Wait returns.
type Spawner struct {
	lock    sync.RWMutex
	wg      sync.WaitGroup
	active  int64
	spawned uint64
}

// Go runs fn in its own goroutine.
func (s *Spawner) Go(name string, fn func()) {
	seq := atomic.AddUint64(&s.spawned, 1)
	atomic.AddInt64(&s.active, 1)
	s.lock.RLock()
	s.wg.Add(1)
	s.lock.RUnlock()
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)
		if glog.V(4) {
			glog.Infof("task %s#%d started", name, seq)
			defer glog.Infof("task %s#%d done", name, seq)
		}
		fn()
	}()
}

// Active returns the number of tasks still running.
func (s *Spawner) Active() int {
	return int(atomic.LoadInt64(&s.active))
}

// Spawned returns the number of tasks ever started.
func (s *Spawner) Spawned() uint64 {
	return atomic.LoadUint64(&s.spawned)
}

// Wait blocks until every spawned task returned.
func (s *Spawner) Wait() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.wg.Wait()
}
