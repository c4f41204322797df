// Package queue implements the bounded queue and worker pool from spec
// §4.F: one producer (the capture engine) enqueues, N workers dequeue,
// decode, and record metrics. The queue protects its FIFO with a mutex and
// condition variable, mirroring the pthread mutex/condvar contract the
// original C thread_pool.c uses, with Go channel-free synchronization so
// enqueue can make the drop-on-full decision in O(1) under the lock exactly
// as the source does.
package queue

import (
	"sync"

	"netbench/internal/decode"
	"netbench/internal/frame"
	"netbench/internal/metrics"
)

// Queue is a bounded FIFO of captured frames shared between one producer
// and N worker goroutines.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []frame.Captured
	capacity int
	shutdown bool

	metrics *metrics.Core
}

// New creates a bounded queue of the given capacity wired to metricsCore for
// drop and watermark accounting.
func New(capacity int, metricsCore *metrics.Core) *Queue {
	q := &Queue{
		items:    make([]frame.Captured, 0, capacity),
		capacity: capacity,
		metrics:  metricsCore,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds fr to the queue. If the queue is full the frame is dropped
// and queue_drops is incremented; capture never blocks on a full queue
// (spec §4.F).
func (q *Queue) Enqueue(fr frame.Captured) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		q.metrics.IncQueueDrops()
		return
	}
	q.items = append(q.items, fr)
	depth := len(q.items)
	q.mu.Unlock()

	q.metrics.UpdateQueueDepthMax(uint32(depth))
	q.cond.Signal()
}

// dequeue blocks until a frame is available or shutdown is observed. ok is
// false only once the queue has been drained after shutdown.
func (q *Queue) dequeue() (frame.Captured, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.shutdown {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return frame.Captured{}, false
	}

	fr := q.items[0]
	q.items = q.items[1:]
	return fr, true
}

// Shutdown is idempotent and wakes every blocked worker; workers drain any
// remaining frames before exiting (spec §4.F).
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Depth returns the current number of queued frames, for diagnostics.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pool runs N workers against a Queue, each decoding a frame and recording
// its metrics before moving to the next.
type Pool struct {
	queue   *Queue
	metrics *metrics.Core
	wg      sync.WaitGroup
}

// NewPool builds a worker pool that drains queue into metricsCore.
func NewPool(q *Queue, metricsCore *metrics.Core) *Pool {
	return &Pool{queue: q, metrics: metricsCore}
}

// Start launches n worker goroutines.
func (p *Pool) Start(n int) {
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
}

// Wait blocks until every worker has drained the queue and exited, which
// only happens after Shutdown has been called on the queue.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// worker implements the body from spec §4.F: dequeue, decode, and --
// ordering within this worker is: record ethertype, record L4, observe
// latency, inc_processed -- exactly the sequence spec §5's ordering
// guarantee names. Parse failures are counted and never abort the worker.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		fr, ok := p.queue.dequeue()
		if !ok {
			return
		}

		result := decode.Decode(fr.Data)
		if result.ParseError {
			p.metrics.IncParseErrors()
			continue
		}

		if !p.metrics.IsActive() {
			continue
		}

		p.metrics.RecordEtherType(metrics.EtherType(result.Decoded.EtherType))
		if result.Decoded.L4Valid {
			p.metrics.RecordProtocol(metrics.Protocol(result.Decoded.L4Proto))
			if !result.Decoded.ChecksumOK {
				p.metrics.IncChecksumFailures()
			}
		}

		now := nowNS()
		p.metrics.ObserveLatency(now - fr.ArrivalNS)
		p.metrics.IncProcessed(uint32(fr.CapLen()))
	}
}
