package rewrite

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoComputesOnce(t *testing.T) {
	m := NewMemo[int]()
	var calls int32
	fn := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	v1, err := m.Do(OIDKey{}, fn)
	require.NoError(t, err)
	v2, err := m.Do(OIDKey{}, fn)
	require.NoError(t, err)

	assert.Equal(t, 42, v1)
	assert.Equal(t, 42, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, m.Len())
}

func TestMemoConcurrentCallersShareOneComputation(t *testing.T) {
	m := NewMemo[int]()
	var calls int32
	fn := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return 7, nil
	}

	const n = 20
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := m.Do(OIDKey{}, fn)
			require.NoError(t, err)
			results <- v
		}()
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, 7, <-results)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMemoDistinctKeysComputeIndependently(t *testing.T) {
	m := NewMemo[int]()
	v1, err := m.Do(PathKey{Path: "a"}, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	v2, err := m.Do(PathKey{Path: "b"}, func() (int, error) { return 2, nil })
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
	assert.Equal(t, 2, m.Len())
}
