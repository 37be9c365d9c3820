package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	for _, want := range []int{1, 2, 3} {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.True(t, rq.IsEmpty())
	_, err = rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue[string](2)
	require.NoError(t, rq.Enqueue("a"))
	_, _ = rq.Dequeue()
	require.NoError(t, rq.Enqueue("b"))
	require.NoError(t, rq.Enqueue("c"))

	v, _ := rq.Dequeue()
	assert.Equal(t, "b", v)
	v, _ = rq.Dequeue()
	assert.Equal(t, "c", v)
}

func TestRingQueuePushEvictsOldest(t *testing.T) {
	rq := NewRingQueue[int](2)
	_, evicted := rq.Push(1)
	assert.False(t, evicted)
	rq.Push(2)

	dropped, evicted := rq.Push(3)
	assert.True(t, evicted)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, rq.Len())
	assert.Equal(t, 2, rq.Cap())

	v, _ := rq.Peek()
	assert.Equal(t, 2, v)
}
