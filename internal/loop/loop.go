// Package loop provides the single-threaded cooperative dispatcher the stores
// mutate on. Every store mutation is posted here, so stores never need locks
// between each other and callbacks observe a consistent view, mirroring a UI
// event loop. Timers are cooperative and cancelled on Close.
package loop

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Post and Sync after Close.
var ErrClosed = errors.New("loop: closed")

// Loop runs posted tasks one at a time on a single goroutine.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	done   chan struct{} // closed when the run goroutine exits
	quit   chan struct{} // closed on Close, stops timer goroutines
	timers sync.WaitGroup
}

// New creates a loop and starts its dispatch goroutine.
func New() *Loop {
	l := &Loop{
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	l.mu.Lock()
	for {
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			break
		}
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		task()
		l.mu.Lock()
	}
	l.mu.Unlock()
	close(l.done)
}

// Post queues fn for execution on the dispatch goroutine.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return nil
}

// Sync runs fn on the dispatch goroutine and waits for it to finish. Intended
// for tests and for read paths that need a consistent snapshot.
func (l *Loop) Sync(fn func()) error {
	ran := make(chan struct{})
	err := l.Post(func() {
		fn()
		close(ran)
	})
	if err != nil {
		return err
	}
	<-ran
	return nil
}

// Every posts fn on the dispatch goroutine once per interval until the
// returned cancel func is called or the loop closes. The first run happens
// after one full interval, not immediately.
func (l *Loop) Every(interval time.Duration, fn func()) (cancel func()) {
	stop := make(chan struct{})
	var once sync.Once

	l.timers.Add(1)
	go func() {
		defer l.timers.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if l.Post(fn) != nil {
					return
				}
			case <-stop:
				return
			case <-l.quit:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }
}

// Close stops accepting tasks, runs what is already queued, cancels timers,
// and waits for the dispatch goroutine to exit. Safe to call once.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.quit)
	l.cond.Signal()
	l.mu.Unlock()

	<-l.done
	l.timers.Wait()
}
