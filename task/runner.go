// Package task runs posted work items and timer expiries one at a time on a
// single goroutine, the way a cooperative firmware task loop would.
package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rotaryd/hal"
)

// DefaultQueueLen is the ready queue length used by NewRunner when none is given.
const DefaultQueueLen = 32

type item struct {
	fn     func()
	posted atomic.Bool
}

type expiry struct {
	t   *timer
	gen uint64
}

// Runner implements hal.Scheduler.
type Runner struct {
	logger *slog.Logger

	mu    sync.RWMutex
	items []*item

	ready   chan *item
	expired chan expiry
	done    chan struct{}
	stop    sync.Once

	running atomic.Bool
}

// NewRunner returns a Runner whose ready queue holds queueLen posts.
func NewRunner(queueLen int, logger *slog.Logger) *Runner {
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:  logger,
		ready:   make(chan *item, queueLen),
		expired: make(chan expiry, queueLen),
		done:    make(chan struct{}),
	}
}

// Register implements hal.Scheduler.
func (r *Runner) Register(fn func()) hal.TaskHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, &item{fn: fn})
	return hal.TaskHandle(len(r.items) - 1)
}

// Post implements hal.Scheduler. It never blocks.
func (r *Runner) Post(h hal.TaskHandle) bool {
	r.mu.RLock()
	if int(h) < 0 || int(h) >= len(r.items) {
		r.mu.RUnlock()
		return false
	}
	it := r.items[h]
	r.mu.RUnlock()

	if !it.posted.CompareAndSwap(false, true) {
		return false
	}
	select {
	case r.ready <- it:
		return true
	default:
		it.posted.Store(false)
		r.logger.Warn("task queue full", "handle", int(h))
		return false
	}
}

// Run executes posted work until ctx is done. It must be called once.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		panic("task: Run called twice")
	}
	defer r.stop.Do(func() { close(r.done) })

	r.logger.Debug("task runner started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("task runner stopped")
			return ctx.Err()
		case it := <-r.ready:
			it.posted.Store(false)
			it.fn()
		case ex := <-r.expired:
			if ex.t.gen.Load() == ex.gen {
				ex.t.fn()
			}
		}
	}
}

// NewTimer implements hal.Scheduler.
func (r *Runner) NewTimer(fn func()) hal.Timer {
	return &timer{r: r, fn: fn}
}

// timer hands its expiry to the run loop, which drops it if the timer was
// re-armed or disarmed since.
type timer struct {
	r   *Runner
	fn  func()
	gen atomic.Uint64

	mu sync.Mutex
	t  *time.Timer
}

func (t *timer) Arm(d time.Duration) {
	gen := t.gen.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.t = time.AfterFunc(d, func() {
		select {
		case t.r.expired <- expiry{t: t, gen: gen}:
		case <-t.r.done:
		}
	})
}

func (t *timer) Disarm() {
	t.gen.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
