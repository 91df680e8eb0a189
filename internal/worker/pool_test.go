package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubResult struct {
	err error
}

func (r *stubResult) GetError() error {
	return r.err
}

// stubJob runs fn, or sleeps for delay honoring ctx when fn is nil
type stubJob struct {
	delay time.Duration
	fn    func(ctx context.Context) error
}

func (j *stubJob) Execute(ctx context.Context) Result {
	if j.fn != nil {
		return &stubResult{err: j.fn(ctx)}
	}
	select {
	case <-time.After(j.delay):
		return &stubResult{}
	case <-ctx.Done():
		return &stubResult{err: ctx.Err()}
	}
}

// recoverableJob panics and converts the panic into a failed result
type recoverableJob struct{ stubJob }

func (j *recoverableJob) Fail(err error) Result {
	return &stubResult{err: err}
}

func TestNewPool_Size(t *testing.T) {
	tests := []struct {
		desc string
		size int
		want int
	}{
		{desc: "explicit size", size: 5, want: 5},
		{desc: "zero falls back to one", size: 0, want: 1},
		{desc: "negative falls back to one", size: -3, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := NewPool(context.Background(), tt.size).size; got != tt.want {
				t.Errorf("expected size %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPool_RunsEveryJob(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	var ran int32
	const n = 12
	for i := 0; i < n; i++ {
		fail := i%4 == 0
		pool.Submit(&stubJob{fn: func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			if fail {
				return errors.New("provider unavailable")
			}
			return nil
		}})
	}

	results := pool.Wait()
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	if got := atomic.LoadInt32(&ran); got != n {
		t.Errorf("expected %d executions, got %d", n, got)
	}
	failed := 0
	for _, r := range results {
		if r.GetError() != nil {
			failed++
		}
	}
	if failed != 3 {
		t.Errorf("expected 3 failed results, got %d", failed)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 4
	pool := NewPool(context.Background(), size)
	pool.Start()

	var current, peak int32
	for i := 0; i < 40; i++ {
		pool.Submit(&stubJob{fn: func(context.Context) error {
			now := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		}})
	}
	pool.Wait()

	if p := atomic.LoadInt32(&peak); p > size {
		t.Errorf("peak concurrency %d exceeded pool size %d", p, size)
	}
}

func TestPool_ManyMoreJobsThanBuffer(t *testing.T) {
	tests := []struct {
		desc string
		size int
		jobs int
	}{
		{desc: "one worker", size: 1, jobs: 50},
		{desc: "four workers with a full batch", size: 4, jobs: 25},
		{desc: "four workers", size: 4, jobs: 200},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			pool := NewPool(context.Background(), tt.size)
			pool.Start()

			done := make(chan []Result)
			go func() {
				for i := 0; i < tt.jobs; i++ {
					if !pool.Submit(&stubJob{}) {
						t.Error("expected Submit to accept the job")
					}
				}
				done <- pool.Wait()
			}()

			select {
			case results := <-done:
				if len(results) != tt.jobs {
					t.Errorf("expected %d results, got %d", tt.jobs, len(results))
				}
			case <-time.After(5 * time.Second):
				t.Fatal("pool stalled while jobs were being submitted")
			}
		})
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&recoverableJob{stubJob{fn: func(context.Context) error {
		panic("nil response from provider SDK")
	}}})
	pool.Submit(&stubJob{})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	panicked := 0
	for _, r := range results {
		if errors.Is(r.GetError(), ErrPanic) {
			panicked++
		}
	}
	if panicked != 1 {
		t.Errorf("expected exactly one ErrPanic result, got %d", panicked)
	}
}

func TestPool_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	pool.Submit(&stubJob{delay: 5 * time.Second})
	cancel()

	done := make(chan []Result)
	go func() { done <- pool.Wait() }()

	select {
	case results := <-done:
		for _, r := range results {
			if r.GetError() == nil {
				t.Error("expected a cancelled job to report an error")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after parent cancellation")
	}
}

func TestPool_Shutdown(t *testing.T) {
	tests := []struct {
		desc string
		run  func(t *testing.T, pool *Pool)
	}{
		{
			desc: "submit after shutdown is dropped without blocking",
			run: func(t *testing.T, pool *Pool) {
				pool.Shutdown()
				if pool.Submit(&stubJob{}) {
					t.Error("expected Submit to report a dropped job")
				}
			},
		},
		{
			desc: "shutdown interrupts a running job",
			run: func(t *testing.T, pool *Pool) {
				started := make(chan struct{})
				interrupted := make(chan error, 1)
				pool.Submit(&stubJob{fn: func(ctx context.Context) error {
					close(started)
					<-ctx.Done()
					interrupted <- ctx.Err()
					return ctx.Err()
				}})
				<-started
				pool.Shutdown()
				if err := <-interrupted; !errors.Is(err, context.Canceled) {
					t.Errorf("expected the running job to see context.Canceled, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			pool := NewPool(context.Background(), 2)
			pool.Start()

			done := make(chan struct{})
			go func() {
				tt.run(t, pool)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("timed out")
			}
		})
	}
}
