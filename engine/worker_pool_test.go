package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/franksops/lzstage/engine"
)

func TestWorkerPool_SetWorkerCount(t *testing.T) {
	ch := make(engine.JobChannel, 100)
	handler := func(ctx context.Context, job engine.TransferJob) error {
		return nil
	}

	pool := engine.NewWorkerPool(context.Background(), ch, handler)

	pool.SetWorkerCount(5)
	if count := pool.WorkerCount(); count != 5 {
		t.Errorf("Expected 5 workers, got %d", count)
	}

	pool.SetWorkerCount(2)
	if count := pool.WorkerCount(); count != 2 {
		t.Errorf("Expected 2 workers, got %d", count)
	}

	pool.SetWorkerCount(10)
	if count := pool.WorkerCount(); count != 10 {
		t.Errorf("Expected 10 workers, got %d", count)
	}

	pool.Stop()
}

func TestWorkerPool_Execution(t *testing.T) {
	ch := make(engine.JobChannel, 100)

	var mu sync.Mutex
	var processed int

	handler := func(ctx context.Context, job engine.TransferJob) error {
		mu.Lock()
		processed++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond) // simulate work
		return nil
	}

	pool := engine.NewWorkerPool(context.Background(), ch, handler)
	pool.SetWorkerCount(3)

	for i := 0; i < 10; i++ {
		ch <- engine.TransferJob{SourcePath: "file.txt"}
	}
	close(ch)

	require.NoError(t, pool.Wait())

	mu.Lock()
	if processed != 10 {
		t.Errorf("Expected 10 processed jobs, got %d", processed)
	}
	mu.Unlock()
}

func TestWorkerPool_StopsPullingAfterFailure(t *testing.T) {
	ch := make(engine.JobChannel, 100)
	for i := 0; i < 100; i++ {
		ch <- engine.TransferJob{SourcePath: fmt.Sprintf("/data/%03d", i)}
	}
	close(ch)

	boom := errors.New("boom")
	var started atomic.Int32
	handler := func(ctx context.Context, job engine.TransferJob) error {
		started.Add(1)
		if job.SourcePath == "/data/000" {
			return boom
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	pool := engine.NewWorkerPool(context.Background(), ch, handler)
	pool.SetWorkerCount(1)

	require.ErrorIs(t, pool.Wait(), boom)
	require.Equal(t, int32(1), started.Load())
}

func jobSet(n int) engine.JobSet {
	jobs := make([]engine.TransferJob, n)
	for i := range jobs {
		jobs[i] = engine.TransferJob{
			SourcePath:      fmt.Sprintf("/data/%02d.bam", i),
			DestinationPath: fmt.Sprintf("/zone/%02d.bam", i),
			Size:            int64(i + 1),
		}
	}
	return engine.NewJobSet(jobs...)
}

func TestRunJobs_Sequential(t *testing.T) {
	var order []string
	err := engine.RunJobs(context.Background(), jobSet(5), 0, func(ctx context.Context, job engine.TransferJob) error {
		order = append(order, job.SourcePath)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"/data/00.bam", "/data/01.bam", "/data/02.bam", "/data/03.bam", "/data/04.bam"}, order)
}

func TestRunJobs_SequentialStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var seen []string
	err := engine.RunJobs(context.Background(), jobSet(5), 0, func(ctx context.Context, job engine.TransferJob) error {
		seen = append(seen, job.SourcePath)
		if job.SourcePath == "/data/02.bam" {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Len(t, seen, 3)
}

func TestRunJobs_PoolRunsEachJobOnce(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	err := engine.RunJobs(context.Background(), jobSet(50), 4, func(ctx context.Context, job engine.TransferJob) error {
		mu.Lock()
		seen[job.SourcePath]++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 50)
	for src, n := range seen {
		require.Equal(t, 1, n, src)
	}
}

func TestRunJobs_Empty(t *testing.T) {
	called := false
	err := engine.RunJobs(context.Background(), engine.NewJobSet(), 3, func(ctx context.Context, job engine.TransferJob) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestRunJobs_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.RunJobs(ctx, jobSet(3), 0, func(ctx context.Context, job engine.TransferJob) error {
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
