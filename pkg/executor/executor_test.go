package executor

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleThreadPreservesOrder(t *testing.T) {
	e := SingleThread()

	out, err := Map(e, []int{1, 2, 3, 4}, func(x int) (int, error) {
		return x * x, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16}, out)
}

func TestMultiThreadPreservesOrder(t *testing.T) {
	e := MultiThread(4)

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	out, err := Map(e, items, func(x int) (int, error) {
		return x * 2, nil
	})
	require.NoError(t, err)

	for i, v := range out {
		assert.Equal(t, i*2, v)
	}
}

func TestMultiThreadPropagatesFirstError(t *testing.T) {
	e := MultiThread(8)
	boom := errors.New("boom")

	_, err := Map(e, []int{1, 2, 3}, func(x int) (int, error) {
		if x == 2 {
			return 0, boom
		}
		return x, nil
	})
	require.ErrorIs(t, err, boom)
}

func TestEachRunsForSideEffects(t *testing.T) {
	e := MultiThread(2)

	var count int32
	err := Each(e, []int{1, 2, 3}, func(int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
}
