package ranging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OfferDropsNewest(t *testing.T) {
	q := newQueue[int](RawQueueSize)

	assert.True(t, q.offer(1))
	assert.True(t, q.offer(2))
	assert.False(t, q.offer(3))
	assert.Equal(t, uint32(1), q.drops())

	v, ok := q.tryReceive()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.tryReceive()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = q.tryReceive()
	assert.False(t, ok)
}

func TestQueue_PublishEvictsOldest(t *testing.T) {
	q := newQueue[int](ProcessedQueueSize)

	for i := 1; i <= 5; i++ {
		assert.False(t, q.publish(i))
	}
	assert.True(t, q.publish(6))
	assert.Equal(t, uint32(1), q.drops())
	assert.Equal(t, ProcessedQueueSize, q.len())

	for want := 2; want <= 6; want++ {
		v, ok := q.tryReceive()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestQueue_PublishCountsEveryEviction(t *testing.T) {
	q := newQueue[int](ProcessedQueueSize)
	for i := 0; i < 12; i++ {
		q.publish(i)
	}
	assert.Equal(t, uint32(7), q.drops())
	assert.Equal(t, ProcessedQueueSize, q.len())

	v, _ := q.tryReceive()
	assert.Equal(t, 7, v)
}

func TestQueue_Drain(t *testing.T) {
	q := newQueue[int](RawQueueSize)
	q.offer(1)
	q.offer(2)

	assert.Equal(t, 2, q.drain())
	assert.Equal(t, 0, q.drain())
	assert.Equal(t, uint32(0), q.drops(), "drain is not a loss")
}

func TestQueue_PublishWithConcurrentConsumer(t *testing.T) {
	q := newQueue[int](ProcessedQueueSize)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	received := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if _, ok := q.tryReceive(); ok {
					received++
				}
			}
		}
	}()

	const n = 10000
	for i := 0; i < n; i++ {
		q.publish(i)
	}
	close(stop)
	wg.Wait()

	// Every published item is either consumed, evicted or still queued.
	assert.Equal(t, n, received+int(q.drops())+q.len())
}
