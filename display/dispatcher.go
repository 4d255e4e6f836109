package display

import (
	"context"

	"github.com/hwmon/monitor/internal/queue"
	"github.com/hwmon/monitor/logger"
)

// Dispatcher executes posted functions one at a time on a single goroutine.
// It is the rendering context: renderer calls and state changes coming from
// transport goroutines are serialized through it.
type Dispatcher struct {
	q      *queue.Queue[func()]
	logger logger.Logger
}

// NewDispatcher creates an idle Dispatcher. Posted work runs once Run is called.
func NewDispatcher(l logger.Logger) *Dispatcher {
	return &Dispatcher{q: queue.New[func()](), logger: l}
}

// Post queues fn. It never blocks.
func (d *Dispatcher) Post(fn func()) {
	if fn != nil {
		d.q.Enqueue(fn)
	}
}

// Pending returns the number of queued functions.
func (d *Dispatcher) Pending() int {
	return d.q.Length()
}

// Run executes queued functions until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		d.drain()
		select {
		case <-ctx.Done():
			return
		case <-d.q.Ready():
		}
	}
}

// Flush waits until everything posted before the call has executed.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	d.Post(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain() {
	for {
		fn, ok := d.q.Dequeue()
		if !ok {
			return
		}
		d.run(fn)
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in dispatched function", "panic", r)
		}
	}()
	fn()
}
