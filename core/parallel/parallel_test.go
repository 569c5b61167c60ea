package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

func TestChunksCoversAllItems(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		for _, workers := range []int{0, 1, 3, 2000} {
			var count int64
			seen := make([]int32, items)
			Chunks(items, workers, 0, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
					atomic.AddInt64(&count, 1)
				}
			})
			assert.Equal(t, int64(items), count)
			for i, v := range seen {
				assert.Equal(t, int32(1), v, "item %d workers %d", i, workers)
			}
		}
	}
}

func TestChunksSequentialBelowThreshold(t *testing.T) {
	calls := 0
	Chunks(10, 4, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEachFillsSlots(t *testing.T) {
	out := make([]int, 50)
	err := ForEach(context.Background(), len(out), 4, func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestForEachReturnsError(t *testing.T) {
	err := ForEach(context.Background(), 20, 2, func(_ context.Context, i int) error {
		if i == 3 {
			return fmt.Errorf("fit %d failed", i)
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fit 3 failed")
}

func TestForEachRecoversPanic(t *testing.T) {
	err := ForEach(context.Background(), 4, 0, func(_ context.Context, i int) error {
		if i == 2 {
			panic("mat: dimension mismatch")
		}
		return nil
	})
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "parallel.ForEach", panicErr.Operation)
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran int64
	err := ForEach(ctx, 10, 2, func(_ context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), ran)
}
