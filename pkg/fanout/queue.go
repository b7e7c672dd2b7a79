package fanout

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"msgsync/pkg/store"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("fanout queue full")

// defaultMaxPooledBuffer bounds buffers returned to the pool when no limit is
// configured; larger payloads are dropped so the pool does not pin big
// allocations.
const defaultMaxPooledBuffer = 256 * 1024

// Item is one committed event queued for dispatch. Payload is the marshaled
// event backed by a pooled buffer; the worker must call Done() exactly once.
type Item struct {
	Thread  string
	Payload []byte

	buf       *bytebufferpool.ByteBuffer
	poolLimit int
	once      sync.Once
}

// Done releases the pooled buffer.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) <= it.poolLimit {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		it.Payload = nil
	})
}

// Queue is a bounded in-memory queue between event committers and the
// dispatch worker. Committers never block: when the queue is full the nudge
// is dropped and subscribers catch up from the durable log on their next
// poll, so at-least-once delivery survives the drop.
type Queue struct {
	ch        chan *Item
	maxPooled int
	dropped   uint64
}

// NewQueue creates a bounded queue. maxPooledBytes caps the payload buffers
// returned to the pool; zero applies the default.
func NewQueue(capacity, maxPooledBytes int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	if maxPooledBytes <= 0 {
		maxPooledBytes = defaultMaxPooledBuffer
	}
	return &Queue{ch: make(chan *Item, capacity), maxPooled: maxPooledBytes}
}

// TryEnqueue copies payload into a pooled buffer and enqueues it.
func (q *Queue) TryEnqueue(thread string, payload []byte) error {
	bb := bytebufferpool.Get()
	bb.B = append(bb.B[:0], payload...)
	it := &Item{Thread: thread, Payload: bb.B[:len(payload)], buf: bb, poolLimit: q.maxPooled}
	select {
	case q.ch <- it:
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		store.FanoutDropsTotal.Inc()
		return ErrQueueFull
	}
}

// Out returns the consumer side of the queue.
func (q *Queue) Out() <-chan *Item { return q.ch }

// RunWorker invokes handler for each dequeued item until stop closes,
// guaranteeing Done() even when the handler fails.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Item) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it)
			}(it)
		case <-stop:
			return
		}
	}
}

// Dropped returns the number of enqueues rejected by a full queue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

// Len returns the current queue depth.
func (q *Queue) Len() int { return len(q.ch) }
