package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tcaqs/internal/telemetry"
)

const report_pool_panic = "pool.panic"

var (
	// ErrTimeout marks a task that did not finish within Pool.Timeout.
	ErrTimeout = errors.New("task timed out")
	// ErrWorkerPanic marks a task that panicked or that was queued behind
	// one in the same sub-batch.
	ErrWorkerPanic = errors.New("worker panicked")
)

// Outcome is the result of one task.
type Outcome[T, R any] struct {
	Input T
	Value R
	Err   error
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	Workers int
	// Timeout bounds every single task, zero disables it.
	Timeout time.Duration
	Tel     telemetry.API
}

// SubBatches splits inputs into slices of len(inputs)/workers entries
// (at least one), the last slice holds the remainder.
func SubBatches[T any](inputs []T, workers int) [][]T {
	if len(inputs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	size := max(1, len(inputs)/workers)

	var out [][]T
	for start := 0; start < len(inputs); start += size {
		end := min(start+size, len(inputs))
		out = append(out, inputs[start:end])
	}
	return out
}

type taskResult struct {
	value    any
	err      error
	panicked any
}

func (p Pool) runOne(ctx context.Context, run func(ctx context.Context) (any, error)) taskResult {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	done := make(chan taskResult, 1)
	go func() {
		defer func() {
			r := recover()
			if r != nil {
				done <- taskResult{panicked: r}
			}
		}()
		value, err := run(ctx)
		done <- taskResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return taskResult{err: ErrTimeout}
		}
		return taskResult{err: ctx.Err()}
	}
}

// Map applies fn to every input. Inputs are split with SubBatches, each
// sub-batch is handled by one worker and outcomes are returned in the order
// sub-batches complete. Every input yields exactly one outcome.
func Map[T, R any](ctx context.Context, p Pool, inputs []T, fn func(ctx context.Context, input T) (R, error)) []Outcome[T, R] {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	tel := p.Tel
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}

	batches := SubBatches(inputs, workers)
	queue := make(chan []T, len(batches))
	for _, b := range batches {
		queue <- b
	}
	close(queue)

	results := make(chan []Outcome[T, R], len(batches))
	wg := sync.WaitGroup{}
	for i := 0; i < min(workers, len(batches)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range queue {
				results <- processBatch(ctx, p, tel, batch, fn)
			}
		}()
	}
	wg.Wait()
	close(results)

	out := make([]Outcome[T, R], 0, len(inputs))
	for res := range results {
		out = append(out, res...)
	}
	return out
}

func processBatch[T, R any](
	ctx context.Context,
	p Pool,
	tel telemetry.API,
	batch []T,
	fn func(ctx context.Context, input T) (R, error),
) []Outcome[T, R] {
	out := make([]Outcome[T, R], 0, len(batch))
	for i, input := range batch {
		res := p.runOne(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx, input)
		})

		if res.panicked != nil {
			err := fmt.Errorf("%w: %v", ErrWorkerPanic, res.panicked)
			tel.ReportBroken(report_pool_panic, err, len(batch)-i)
			for _, rest := range batch[i:] {
				out = append(out, Outcome[T, R]{Input: rest, Err: err})
			}
			return out
		}

		outcome := Outcome[T, R]{Input: input, Err: res.err}
		if res.err == nil {
			outcome.Value, _ = res.value.(R)
		}
		out = append(out, outcome)
	}
	return out
}
