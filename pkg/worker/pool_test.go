package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Work item shape used across pool tests, modeled on a stream delivery.
type testDelivery struct {
	seq    int
	delay  time.Duration
	fail   bool
	panics bool
}

func TestNewPool(t *testing.T) {
	processor := func(ctx context.Context, _ testDelivery) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	// Valid parameters
	pool := NewPool(5, 100, processor)
	if pool.workers != 5 {
		t.Errorf("Expected 5 workers, got %d", pool.workers)
	}
	if pool.queueSize != 100 {
		t.Errorf("Expected queue size 100, got %d", pool.queueSize)
	}

	// Zero workers defaults
	pool = NewPool(0, 100, processor)
	if pool.workers != 10 {
		t.Errorf("Expected default 10 workers, got %d", pool.workers)
	}

	// Zero queue size defaults
	pool = NewPool(5, 0, processor)
	if pool.queueSize != 1000 {
		t.Errorf("Expected default queue size 1000, got %d", pool.queueSize)
	}
}

func TestNewPool_NilProcessor(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for nil processor")
		}
	}()
	NewPool[testDelivery](5, 100, nil)
}

func TestPool_StartStop(t *testing.T) {
	var processedCount int64
	processor := func(_ context.Context, _ testDelivery) error {
		atomic.AddInt64(&processedCount, 1)
		return nil
	}

	pool := NewPool(2, 10, processor)

	ctx := context.Background()
	err := pool.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	// Starting twice fails
	err = pool.Start(ctx)
	if err == nil {
		t.Error("Expected error when starting pool twice")
	}

	for i := 0; i < 5; i++ {
		err := pool.Submit(testDelivery{seq: i})
		if err != nil {
			t.Errorf("Failed to submit work %d: %v", i, err)
		}
	}

	// Give workers time to process
	time.Sleep(100 * time.Millisecond)

	err = pool.Stop(5 * time.Second)
	if err != nil {
		t.Fatalf("Failed to stop pool: %v", err)
	}

	processed := atomic.LoadInt64(&processedCount)
	if processed != 5 {
		t.Errorf("Expected 5 processed items, got %d", processed)
	}

	// Submitting after stop fails
	err = pool.Submit(testDelivery{seq: 999})
	if err == nil {
		t.Error("Expected error when submitting to stopped pool")
	}
}

func TestPool_QueueFull(t *testing.T) {
	processor := func(_ context.Context, work testDelivery) error {
		// Slow processor to fill queue
		time.Sleep(work.delay)
		return nil
	}

	pool := NewPool(1, 2, processor) // Small queue

	ctx := context.Background()
	err := pool.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop(5 * time.Second)

	submitted := 0
	dropped := 0

	for i := 0; i < 5; i++ {
		err := pool.Submit(testDelivery{
			seq:   i,
			delay: 200 * time.Millisecond,
		})
		if err != nil {
			dropped++
		} else {
			submitted++
		}
	}

	if dropped == 0 {
		t.Error("Expected some work to be dropped due to full queue")
	}
	if submitted == 0 {
		t.Error("Expected some work to be submitted successfully")
	}

	stats := pool.Stats()
	if stats.Dropped == 0 {
		t.Error("Stats should show dropped work items")
	}
}

func TestPool_SubmitWait(t *testing.T) {
	t.Run("WaitsForQueueSpace", func(t *testing.T) {
		release := make(chan struct{})
		processor := func(_ context.Context, _ testDelivery) error {
			<-release
			return nil
		}

		pool := NewPool(1, 1, processor)

		ctx := context.Background()
		if err := pool.Start(ctx); err != nil {
			t.Fatalf("Failed to start pool: %v", err)
		}

		// One in the worker, one in the queue
		_ = pool.Submit(testDelivery{seq: 0})
		_ = pool.Submit(testDelivery{seq: 1})

		done := make(chan error, 1)
		go func() {
			done <- pool.SubmitWait(ctx, testDelivery{seq: 2})
		}()

		// Must still be waiting
		select {
		case err := <-done:
			t.Fatalf("SubmitWait returned early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}

		// Release workers so the queue drains
		close(release)

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("SubmitWait failed after space freed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("SubmitWait did not complete after queue drained")
		}

		pool.Stop(5 * time.Second)
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		processor := func(_ context.Context, _ testDelivery) error {
			<-block
			return nil
		}

		pool := NewPool(1, 1, processor)

		if err := pool.Start(context.Background()); err != nil {
			t.Fatalf("Failed to start pool: %v", err)
		}

		_ = pool.Submit(testDelivery{seq: 0})
		_ = pool.Submit(testDelivery{seq: 1})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := pool.SubmitWait(ctx, testDelivery{seq: 2})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected DeadlineExceeded, got %v", err)
		}
	})
}

func TestPool_ProcessingErrors(t *testing.T) {
	var successCount, errorCount int64

	processor := func(_ context.Context, work testDelivery) error {
		if work.fail {
			atomic.AddInt64(&errorCount, 1)
			return errors.New("simulated error")
		}
		atomic.AddInt64(&successCount, 1)
		return nil
	}

	pool := NewPool(2, 10, processor)

	ctx := context.Background()
	err := pool.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop(5 * time.Second)

	// Half fail
	for i := 0; i < 10; i++ {
		work := testDelivery{
			seq:  i,
			fail: i%2 == 0,
		}
		err := pool.Submit(work)
		if err != nil {
			t.Errorf("Failed to submit work %d: %v", i, err)
		}
	}

	time.Sleep(100 * time.Millisecond)

	success := atomic.LoadInt64(&successCount)
	errCount := atomic.LoadInt64(&errorCount)

	if success != 5 {
		t.Errorf("Expected 5 successful processes, got %d", success)
	}
	if errCount != 5 {
		t.Errorf("Expected 5 failed processes, got %d", errCount)
	}

	stats := pool.Stats()
	if stats.Processed != 10 {
		t.Errorf("Expected 10 processed items in stats, got %d", stats.Processed)
	}
	if stats.Failed != 5 {
		t.Errorf("Expected 5 failed items in stats, got %d", stats.Failed)
	}
}

func TestPool_PanicRecovery(t *testing.T) {
	var okCount int64

	processor := func(_ context.Context, work testDelivery) error {
		if work.panics {
			panic("malformed payload")
		}
		atomic.AddInt64(&okCount, 1)
		return nil
	}

	pool := NewPool(1, 10, processor) // Single worker: an unrecovered panic would stop all processing

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	_ = pool.Submit(testDelivery{seq: 0})
	_ = pool.Submit(testDelivery{seq: 1, panics: true})
	_ = pool.Submit(testDelivery{seq: 2})

	time.Sleep(100 * time.Millisecond)

	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Failed to stop pool: %v", err)
	}

	// The item after the panic must still be processed
	if ok := atomic.LoadInt64(&okCount); ok != 2 {
		t.Errorf("Expected 2 successful items around the panic, got %d", ok)
	}

	stats := pool.Stats()
	if stats.Processed != 3 {
		t.Errorf("Expected 3 processed items, got %d", stats.Processed)
	}
	if stats.Failed != 1 {
		t.Errorf("Expected panic counted as 1 failure, got %d", stats.Failed)
	}
}

func TestPool_ContextCancellation(t *testing.T) {
	var processedCount int64

	processor := func(ctx context.Context, work testDelivery) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			time.Sleep(work.delay)
			atomic.AddInt64(&processedCount, 1)
			return nil
		}
	}

	pool := NewPool(2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	err := pool.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	for i := 0; i < 5; i++ {
		err := pool.Submit(testDelivery{
			seq:   i,
			delay: 50 * time.Millisecond,
		})
		if err != nil {
			t.Errorf("Failed to submit work %d: %v", i, err)
		}
	}

	// Cancel quickly
	time.Sleep(10 * time.Millisecond)
	cancel()

	err = pool.Stop(5 * time.Second)
	if err != nil {
		t.Fatalf("Failed to stop pool: %v", err)
	}

	// Some work might be processed before cancellation
	processed := atomic.LoadInt64(&processedCount)
	t.Logf("Processed %d items before cancellation", processed)
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var processedCount int64

	processor := func(_ context.Context, _ testDelivery) error {
		atomic.AddInt64(&processedCount, 1)
		return nil
	}

	pool := NewPool(5, 100, processor)

	ctx := context.Background()
	err := pool.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop(5 * time.Second)

	var wg sync.WaitGroup
	submitters := 10
	workPerSubmitter := 10

	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(submitterID int) {
			defer wg.Done()
			for j := 0; j < workPerSubmitter; j++ {
				work := testDelivery{
					seq: submitterID*workPerSubmitter + j,
				}
				err := pool.Submit(work)
				if err != nil {
					t.Errorf("Submitter %d failed to submit work %d: %v", submitterID, j, err)
				}
			}
		}(i)
	}

	wg.Wait()

	time.Sleep(200 * time.Millisecond)

	processed := atomic.LoadInt64(&processedCount)
	expected := int64(submitters * workPerSubmitter)
	if processed != expected {
		t.Errorf("Expected %d processed items, got %d", expected, processed)
	}
}

func TestPool_Stats(t *testing.T) {
	processor := func(ctx context.Context, _ testDelivery) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil
		}
	}

	pool := NewPool(3, 50, processor)

	stats := pool.Stats()
	if stats.Workers != 3 {
		t.Errorf("Expected 3 workers in stats, got %d", stats.Workers)
	}
	if stats.QueueSize != 50 {
		t.Errorf("Expected queue size 50 in stats, got %d", stats.QueueSize)
	}
	if stats.Submitted != 0 {
		t.Errorf("Expected 0 submitted initially, got %d", stats.Submitted)
	}

	ctx := context.Background()
	err := pool.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	defer pool.Stop(5 * time.Second)

	for i := 0; i < 10; i++ {
		_ = pool.Submit(testDelivery{seq: i})
	}

	time.Sleep(50 * time.Millisecond)
	stats = pool.Stats()

	if stats.Submitted != 10 {
		t.Errorf("Expected 10 submitted in stats, got %d", stats.Submitted)
	}

	if stats.Processed <= 0 || stats.Processed > stats.Submitted {
		t.Errorf("Invalid processed count in stats: %d (submitted: %d)", stats.Processed, stats.Submitted)
	}
}
