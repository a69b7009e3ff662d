package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool_Do_RunsJob(t *testing.T) {
	p := NewPool(2, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	ran := false
	if err := p.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Fatalf("expected job to run before Do returned")
	}
}

func TestPool_Do_BoundsConcurrency(t *testing.T) {
	const workers = 3
	p := NewPool(workers, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
			})
		}()
	}
	wg.Wait()

	if peak > workers {
		t.Fatalf("expected at most %d concurrent jobs, saw %d", workers, peak)
	}
}

func TestPool_Do_CancelledContext(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	// Not started: nothing drains the channel, but a cancelled ctx must win.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	if err := p.Do(ctx, func() { ran = true }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatalf("job must not run once ctx is cancelled")
	}
}

func TestPool_Do_AfterStop(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	p.Start(context.Background())
	p.Stop()

	for i := 0; i < channelBuffer+1; i++ {
		err := p.Do(context.Background(), func() {})
		if errors.Is(err, ErrPoolStopped) {
			return
		}
	}
	t.Fatalf("expected ErrPoolStopped after Stop")
}

func TestPool_PanickingJobDoesNotKillWorker(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if err := p.Do(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}

	ran := false
	if err := p.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Fatalf("worker did not survive a panicking job")
	}
}

func TestPool_ReportsQueueDepth(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	var calls int32
	p.OnQueueDepth = func(int) { atomic.AddInt32(&calls, 1) }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	_ = p.Do(context.Background(), func() {})
	if atomic.LoadInt32(&calls) == 0 {
		t.Fatalf("expected queue depth to be reported")
	}
}
