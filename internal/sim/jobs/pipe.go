// Package jobs runs a single background goroutine fed by a bounded request
// channel. The owner submits without blocking and collects completions
// without blocking, once per tick.
package jobs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull     = errors.New("job queue full")
	ErrClosed        = errors.New("job pipe closed")
	ErrWorkerCrashed = errors.New("job worker crashed")
)

// Done is one completed request.
type Done[In, Out any] struct {
	In  In
	Out Out
	Err error
}

type Stats struct {
	Name          string `json:"name"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Submitted     uint64 `json:"submitted"`
	Completed     uint64 `json:"completed"`
	Failed        uint64 `json:"failed"`
}

// Pipe owns one worker goroutine. Submit, Drain and Close must be called
// from a single owner goroutine.
type Pipe[In, Out any] struct {
	name string
	fn   func(In) (Out, error)

	req  chan In
	out  chan Done[In, Out]
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	crash  atomic.Pointer[error]

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// Start launches the worker. queue bounds both the request and the
// completion buffers.
func Start[In, Out any](name string, queue int, fn func(In) (Out, error)) *Pipe[In, Out] {
	if queue <= 0 {
		queue = 1
	}
	p := &Pipe[In, Out]{
		name: name,
		fn:   fn,
		req:  make(chan In, queue),
		out:  make(chan Done[In, Out], queue),
		stop: make(chan struct{}),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.out)
		p.loop()
	}()
	return p
}

func (p *Pipe[In, Out]) loop() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s: %w: %v", p.name, ErrWorkerCrashed, r)
			p.crash.Store(&err)
		}
	}()
	for in := range p.req {
		select {
		case <-p.stop:
			return
		default:
		}
		out, err := p.fn(in)
		if err != nil {
			p.failed.Add(1)
		}
		select {
		case p.out <- Done[In, Out]{In: in, Out: out, Err: err}:
			p.completed.Add(1)
		case <-p.stop:
			return
		}
	}
}

// Submit queues a request without blocking.
func (p *Pipe[In, Out]) Submit(in In) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if e := p.crash.Load(); e != nil {
		return *e
	}
	select {
	case p.req <- in:
		p.submitted.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain hands every completion already available to fn and returns without
// waiting for more. A worker that died is reported as ErrWorkerCrashed.
func (p *Pipe[In, Out]) Drain(fn func(Done[In, Out])) error {
	for {
		select {
		case d, ok := <-p.out:
			if !ok {
				if e := p.crash.Load(); e != nil {
					return *e
				}
				return ErrClosed
			}
			fn(d)
		default:
			return nil
		}
	}
}

// Close stops accepting requests, abandons completions nobody will collect
// and joins the worker.
func (p *Pipe[In, Out]) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.req)
		close(p.stop)
		p.wg.Wait()
	})
}

func (p *Pipe[In, Out]) Stats() Stats {
	return Stats{
		Name:          p.name,
		QueueDepth:    len(p.req),
		QueueCapacity: cap(p.req),
		Submitted:     p.submitted.Load(),
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
	}
}
