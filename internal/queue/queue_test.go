package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"netbench/internal/frame"
	"netbench/internal/metrics"
)

func TestEnqueueDequeueFIFOOrder(t *testing.T) {
	q := New(4, metrics.New())

	q.Enqueue(frame.Captured{Data: []byte{1}})
	q.Enqueue(frame.Captured{Data: []byte{2}})
	q.Enqueue(frame.Captured{Data: []byte{3}})

	fr, ok := q.dequeue()
	require.True(t, ok)
	assert.Equal(t, byte(1), fr.Data[0])

	fr, ok = q.dequeue()
	require.True(t, ok)
	assert.Equal(t, byte(2), fr.Data[0])

	fr, ok = q.dequeue()
	require.True(t, ok)
	assert.Equal(t, byte(3), fr.Data[0])
}

func TestEnqueueDropsWhenFullAndCountsDrop(t *testing.T) {
	m := metrics.New()
	q := New(2, m)

	q.Enqueue(frame.Captured{Data: []byte{1}})
	q.Enqueue(frame.Captured{Data: []byte{2}})
	q.Enqueue(frame.Captured{Data: []byte{3}}) // dropped, queue full

	assert.Equal(t, 2, q.Depth())
	assert.EqualValues(t, 1, m.Snapshot().QueueDrops)
}

func TestEnqueueRaisesDepthWatermark(t *testing.T) {
	m := metrics.New()
	q := New(8, m)

	q.Enqueue(frame.Captured{Data: []byte{1}})
	q.Enqueue(frame.Captured{Data: []byte{2}})
	q.Enqueue(frame.Captured{Data: []byte{3}})
	_, _ = q.dequeue()
	q.Enqueue(frame.Captured{Data: []byte{4}})

	assert.EqualValues(t, 3, m.Snapshot().QueueDepthMax)
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(4, metrics.New())

	done := make(chan frame.Captured, 1)
	go func() {
		fr, ok := q.dequeue()
		if ok {
			done <- fr
		}
	}()

	select {
	case <-done:
		t.Fatal("dequeue returned before any frame was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue(frame.Captured{Data: []byte{42}})

	select {
	case fr := <-done:
		assert.Equal(t, byte(42), fr.Data[0])
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up after enqueue")
	}
}

func TestShutdownWakesBlockedDequeueWithNoData(t *testing.T) {
	q := New(4, metrics.New())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.dequeue()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("shutdown never woke the blocked dequeue")
	}
}

func TestShutdownDrainsRemainingFramesBeforeEmpty(t *testing.T) {
	q := New(4, metrics.New())
	q.Enqueue(frame.Captured{Data: []byte{1}})
	q.Enqueue(frame.Captured{Data: []byte{2}})

	q.Shutdown()

	fr, ok := q.dequeue()
	require.True(t, ok)
	assert.Equal(t, byte(1), fr.Data[0])

	fr, ok = q.dequeue()
	require.True(t, ok)
	assert.Equal(t, byte(2), fr.Data[0])

	_, ok = q.dequeue()
	assert.False(t, ok)
}

func TestShutdownIsIdempotent(t *testing.T) {
	q := New(4, metrics.New())
	q.Shutdown()
	q.Shutdown()
	_, ok := q.dequeue()
	assert.False(t, ok)
}

func TestPoolWorkersDrainQueueAfterShutdown(t *testing.T) {
	m := metrics.New()
	m.Start()
	q := New(16, m)
	pool := NewPool(q, m)
	pool.Start(4)

	for i := 0; i < 10; i++ {
		// 14-byte Ethernet header claiming an unhandled ethertype: decodes
		// cleanly as EthernetValid-only, no parse error.
		q.Enqueue(frame.Captured{Data: make([]byte, 14), ArrivalNS: 1})
	}

	q.Shutdown()
	pool.Wait()

	snap := m.Snapshot()
	assert.EqualValues(t, 10, snap.PktsProcessed)
	assert.EqualValues(t, 10, snap.EtherOther)
}
