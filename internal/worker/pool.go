package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanic marks a job that panicked instead of returning a result
var ErrPanic = errors.New("job panicked")

// Job is one unit of work run by a Pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of a Job
type Result interface {
	GetError() error
}

// Recoverable jobs turn a panic during Execute into a failed result, so one
// broken claim cannot take down the rest of a batch. Panics in other jobs
// propagate.
type Recoverable interface {
	Job
	Fail(err error) Result
}

// Pool runs jobs on a fixed number of goroutines. Results are collected
// while jobs are still being submitted, so Submit never waits on a reader.
// Cancelling the parent context stops workers after their current job.
type Pool struct {
	size      int
	queue     chan Job
	out       chan Result
	collected chan []Result

	ctx    context.Context
	cancel context.CancelFunc

	running  sync.WaitGroup
	closeOut sync.Once
}

// NewPool creates a pool of size workers bound to ctx
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		size:      size,
		queue:     make(chan Job, size*2),
		out:       make(chan Result, size*2),
		collected: make(chan []Result, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	p.running.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.loop()
	}
	go p.collect()
}

func (p *Pool) collect() {
	var results []Result
	for res := range p.out {
		results = append(results, res)
	}
	p.collected <- results
}

func (p *Pool) loop() {
	defer p.running.Done()
	for {
		var job Job
		select {
		case <-p.ctx.Done():
			return
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			job = j
		}

		res := p.run(job)
		select {
		case p.out <- res:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) run(job Job) (res Result) {
	if r, ok := job.(Recoverable); ok {
		defer func() {
			if v := recover(); v != nil {
				res = r.Fail(fmt.Errorf("%w: %v", ErrPanic, v))
			}
		}()
	}
	return job.Execute(p.ctx)
}

// Submit queues a job. It reports false when the pool is cancelled and the
// job was dropped.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.queue <- job:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Wait closes the queue, waits for the workers and returns every result in
// completion order. It must follow Start and be called once.
func (p *Pool) Wait() []Result {
	close(p.queue)
	p.running.Wait()
	p.finish()
	results := <-p.collected
	p.cancel()
	return results
}

// Shutdown cancels the pool and discards pending results
func (p *Pool) Shutdown() {
	p.cancel()
	p.running.Wait()
	p.finish()
}

func (p *Pool) finish() {
	p.closeOut.Do(func() { close(p.out) })
}
