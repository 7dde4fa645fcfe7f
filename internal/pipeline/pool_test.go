package pipeline

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"tcaqs/internal/telemetry"

	"github.com/stretchr/testify/require"
)

func TestSubBatches(t *testing.T) {
	testCases := []struct {
		inputs   []int
		workers  int
		expected [][]int
	}{
		{inputs: []int{1, 2, 3, 4, 5, 6}, workers: 2, expected: [][]int{{1, 2, 3}, {4, 5, 6}}},
		{inputs: []int{1, 2, 3, 4, 5}, workers: 2, expected: [][]int{{1, 2}, {3, 4}, {5}}},
		{inputs: []int{1, 2}, workers: 8, expected: [][]int{{1}, {2}}},
		{inputs: []int{1, 2, 3}, workers: 0, expected: [][]int{{1, 2, 3}}},
		{inputs: nil, workers: 4, expected: nil},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, SubBatches(test.inputs, test.workers))
	}
}

func outcomeValues(outcomes []Outcome[int, int]) (ok []int, failed map[int]error) {
	failed = map[int]error{}
	for _, o := range outcomes {
		if o.Err != nil {
			failed[o.Input] = o.Err
			continue
		}
		ok = append(ok, o.Value)
	}
	sort.Ints(ok)
	return ok, failed
}

func TestMapCoversEveryInput(t *testing.T) {
	inputs := make([]int, 37)
	for i := range inputs {
		inputs[i] = i
	}

	outcomes := Map(context.Background(), Pool{Workers: 4}, inputs, func(_ context.Context, n int) (int, error) {
		if n%10 == 3 {
			return 0, errors.New("bad input")
		}
		return n * 2, nil
	})
	require.Len(t, outcomes, len(inputs))

	ok, failed := outcomeValues(outcomes)
	require.Len(t, failed, 4)
	require.Len(t, ok, 33)
	require.Contains(t, failed, 23)
}

func TestMapPanicFailsRestOfSubBatch(t *testing.T) {
	tel := &telemetry.Recorder{}
	outcomes := Map(context.Background(), Pool{Workers: 2, Tel: tel}, []int{1, 2, 3, 4, 5, 6}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			panic("boom")
		}
		return n, nil
	})
	require.Len(t, outcomes, 6)

	ok, failed := outcomeValues(outcomes)
	require.Equal(t, []int{1, 4, 5, 6}, ok)
	require.Len(t, failed, 2)
	require.True(t, errors.Is(failed[2], ErrWorkerPanic))
	require.True(t, errors.Is(failed[3], ErrWorkerPanic))
	require.Len(t, tel.Reports("broken", report_pool_panic), 1)
}

func TestMapTimeout(t *testing.T) {
	pool := Pool{Workers: 2, Timeout: 20 * time.Millisecond}
	outcomes := Map(context.Background(), pool, []int{1, 2, 3, 4}, func(ctx context.Context, n int) (int, error) {
		switch n {
		case 1:
			<-ctx.Done()
			return 0, ctx.Err()
		case 3:
			// ignores its context entirely
			time.Sleep(time.Second)
		}
		return n, nil
	})

	ok, failed := outcomeValues(outcomes)
	require.Equal(t, []int{2, 4}, ok)
	require.True(t, errors.Is(failed[1], ErrTimeout) || errors.Is(failed[1], context.DeadlineExceeded))
	require.True(t, errors.Is(failed[3], ErrTimeout))
}

func TestMapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := Map(ctx, Pool{Workers: 2}, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		require.True(t, errors.Is(o.Err, context.Canceled))
	}
}
