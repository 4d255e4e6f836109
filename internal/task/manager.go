// Package task manages the goroutines of the monitor's long running components.
//
// Every listener, reader, ticker and dispatcher goroutine is started through a Manager,
// so shutdown is a single Stop followed by Wait, and a panic inside one task is logged
// instead of killing the display process.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hwmon/monitor/logger"
)

// Func is executed repeatedly by Start until it returns false or the manager stops.
type Func func() bool

// RunFunc is executed once by Go and must return when ctx is cancelled.
type RunFunc func(ctx context.Context)

// CancelFunc is called when the goroutine of a task exits for any reason.
type CancelFunc func()

var (
	// ErrStopped is returned when starting a task on a stopped manager.
	ErrStopped = errors.New("task manager already stopped")
	// ErrIntervalExists is returned when an interval task with the same name is running.
	ErrIntervalExists = errors.New("interval task already exists")
)

// Manager owns a group of goroutines sharing one cancellation context.
type Manager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	clock   clockwork.Clock
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map     // map[string]clockwork.Ticker
	mu      sync.RWMutex // protect ctx and cancel
	taskMu  sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a Manager whose tasks stop when ctx is cancelled.
// A nil clock selects the real clock.
func NewManager(ctx context.Context, l logger.Logger, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	mgr := &Manager{pctx: ctx, logger: l, clock: clock}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs taskFunc in a loop on a new goroutine until it returns false.
// The optional onExit is called when the goroutine exits.
func (mgr *Manager) Start(name string, taskFunc Func, onExit CancelFunc) error {
	mgr.logger.Debug("start task", "name", name)

	return mgr.spawn(name, func(ctx context.Context) {
		if onExit != nil {
			defer onExit()
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})
}

// Go runs fn once on a new goroutine. fn receives the manager context.
func (mgr *Manager) Go(name string, fn RunFunc) error {
	mgr.logger.Debug("start task", "name", name)

	return mgr.spawn(name, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}
		}()
		fn(ctx)
	})
}

// StartInterval executes taskFunc every interval on the manager clock until it returns false.
// If runNow is true, taskFunc is executed once on the caller's goroutine before the interval starts.
func (mgr *Manager) StartInterval(name string, taskFunc Func, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "run_now", runNow)

	if interval <= 0 {
		return fmt.Errorf("invalid interval %v for %s", interval, name)
	}

	ticker := mgr.clock.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return fmt.Errorf("%s: %w", name, ErrIntervalExists)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.CompareAndDelete(name, ticker)
	}

	if runNow && !mgr.callWithRecover(name, taskFunc) {
		cleanup()
		return nil
	}

	err := mgr.spawn(name, func(ctx context.Context) {
		defer cleanup()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})
	if err != nil {
		cleanup()
	}

	return err
}

// Stop signals every running task to terminate.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		value.(clockwork.Ticker).Stop()
		return true
	})

	mgr.mu.Lock()
	mgr.cancel()
	mgr.mu.Unlock()
}

// Wait blocks until every task terminated, then re-arms the manager so it can be reused.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) spawn(name string, body func(ctx context.Context)) error {
	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	ctx := mgr.Context()
	if ctx.Err() != nil {
		return fmt.Errorf("start %s: %w", name, ErrStopped)
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)
	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
		}()
		body(ctx)
	}()

	return nil
}

func (mgr *Manager) callWithRecover(name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn()
}
