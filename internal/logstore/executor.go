package logstore

import (
	"fmt"
	"log/slog"
	"sync"
)

// executor runs tasks one at a time, in submission order, on a single
// goroutine. The queue is unbounded so submit never blocks.
type executor struct {
	log *slog.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	queueCh chan struct{} // signals new tasks in queue
	done    chan struct{}
}

func newExecutor(log *slog.Logger) *executor {
	x := &executor{
		log:     log,
		queueCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go x.loop()
	return x
}

// submit enqueues fn without waiting for it to run.
func (x *executor) submit(fn func()) error {
	x.mu.Lock()
	if x.stopped {
		x.mu.Unlock()
		return ErrClosed
	}
	x.queue = append(x.queue, fn)
	x.mu.Unlock()

	x.signal()
	return nil
}

// do enqueues fn and blocks until it has run, returning its error.
func (x *executor) do(fn func() error) error {
	result := make(chan error, 1)
	err := x.submit(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
			result <- err
		}()
		err = fn()
	})
	if err != nil {
		return err
	}
	return <-result
}

// stop rejects new tasks, lets the queued ones finish, then waits for the
// loop to exit. Safe to call more than once.
func (x *executor) stop() {
	x.mu.Lock()
	x.stopped = true
	x.mu.Unlock()

	x.signal()
	<-x.done
}

func (x *executor) signal() {
	select {
	case x.queueCh <- struct{}{}:
	default:
	}
}

func (x *executor) loop() {
	defer close(x.done)

	for range x.queueCh {
		for {
			x.mu.Lock()
			if len(x.queue) == 0 {
				stopped := x.stopped
				x.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			fn := x.queue[0]
			x.queue[0] = nil
			x.queue = x.queue[1:]
			x.mu.Unlock()

			x.run(fn)
		}
	}
}

func (x *executor) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error("log store task panicked", "panic", r)
		}
	}()
	fn()
}
