// Package fanout pushes committed thread changes to live subscribers.
//
// Events are durable: committers write them in the same Pebble batch as the
// state change, then hand the marshaled event to the hub's notify queue. A
// subscription never reads from the queue directly; it replays the durable
// log from its cursor and uses queue nudges (plus a slow poll) to learn that
// new entries exist. That makes delivery per-thread ordered, at-least-once,
// and naturally resumable after a disconnect.
package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"msgsync/pkg/logger"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
)

// pollInterval is the fallback wakeup for subscriptions; it covers nudges
// dropped by a full queue.
const pollInterval = 2 * time.Second

// Hub owns subscriptions and the dispatch worker.
type Hub struct {
	q           *Queue
	push        PushNotifier
	replayBatch int

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHub builds a hub with the given notify-queue capacity, per-round replay
// batch size, and pooled-payload bound (zero values apply defaults).
func NewHub(queueCapacity, replayBatch int, maxEventBytes int64, push PushNotifier) *Hub {
	if replayBatch <= 0 {
		replayBatch = 256
	}
	if push == nil {
		push = LogNotifier{}
	}
	return &Hub{
		q:           NewQueue(queueCapacity, int(maxEventBytes)),
		push:        push,
		replayBatch: replayBatch,
		subs:        map[string]map[*Subscription]struct{}{},
		stop:        make(chan struct{}),
	}
}

// DefaultHub is the process-wide hub wired at startup; services publish
// through Publish below. Nil in unit tests that don't exercise fanout.
var DefaultHub *Hub

// Publish hands evt to the default hub if one is installed.
func Publish(evt models.Event) {
	if DefaultHub != nil {
		DefaultHub.Publish(evt)
	}
}

// Start launches the dispatch worker.
func (h *Hub) Start() {
	go h.q.RunWorker(h.stop, h.dispatch)
}

// Stop terminates the worker and closes all subscriptions.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.mu.Lock()
	for _, set := range h.subs {
		for sub := range set {
			sub.cancel()
		}
	}
	h.mu.Unlock()
}

// Publish enqueues the committed event for dispatch. The event must already
// be durable; a full queue only delays subscribers until their next poll.
func (h *Hub) Publish(evt models.Event) {
	store.EventsTotal.WithLabelValues(string(evt.Kind)).Inc()
	b, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Error("fanout_marshal_failed", zap.String("thread", evt.Thread), zap.Error(err))
		return
	}
	if err := h.q.TryEnqueue(evt.Thread, b); err != nil {
		logger.Log.Warn("fanout_nudge_dropped", zap.String("thread", evt.Thread), zap.Uint64("dropped", h.q.Dropped()))
	}
}

// dispatch nudges the thread's subscriptions and fires best-effort push
// notifications for appended messages.
func (h *Hub) dispatch(it *Item) error {
	var evt models.Event
	if err := json.Unmarshal(it.Payload, &evt); err != nil {
		logger.Log.Error("fanout_dispatch_bad_payload", zap.Error(err))
		return err
	}

	h.mu.RLock()
	for sub := range h.subs[it.Thread] {
		sub.nudgeNow()
	}
	h.mu.RUnlock()

	if evt.Kind == models.EventMessageAppended {
		for _, recipient := range evt.Recipients {
			if err := h.push.Notify(context.Background(), recipient, evt); err != nil {
				logger.Log.Warn("push_notify_failed", zap.String("recipient", recipient), zap.Error(err))
			}
		}
	}
	return nil
}

// Subscription is a live, cancellable stream of one thread's events in
// commit order starting after the subscriber's cursor.
type Subscription struct {
	Thread string

	out    chan models.Event
	nudge  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	hub    *Hub
	cursor uint64
}

// Events returns the receive side of the stream. The channel closes when the
// subscription ends.
func (s *Subscription) Events() <-chan models.Event { return s.out }

// Cursor returns the sequence of the last event handed out; clients persist
// it to resume after a reconnect.
func (s *Subscription) Cursor() uint64 { return s.cursor }

// Close cancels the subscription and releases its server-side resources.
func (s *Subscription) Close() { s.cancel() }

func (s *Subscription) nudgeNow() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Subscribe registers a subscription for threadID resuming after the given
// cursor (0 replays the full retained log). The subscription ends when ctx
// is cancelled or Close is called.
func (h *Hub) Subscribe(ctx context.Context, threadID string, since uint64) *Subscription {
	sctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		Thread: threadID,
		out:    make(chan models.Event, 32),
		nudge:  make(chan struct{}, 1),
		ctx:    sctx,
		cancel: cancel,
		hub:    h,
		cursor: since,
	}

	h.mu.Lock()
	if h.subs[threadID] == nil {
		h.subs[threadID] = map[*Subscription]struct{}{}
	}
	h.subs[threadID][sub] = struct{}{}
	h.mu.Unlock()
	store.SubscribersGauge.Inc()

	go sub.run()
	return sub
}

func (s *Subscription) run() {
	defer func() {
		s.hub.mu.Lock()
		if set := s.hub.subs[s.Thread]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.Thread)
			}
		}
		s.hub.mu.Unlock()
		store.SubscribersGauge.Dec()
		close(s.out)
	}()

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		for {
			evts, err := store.ListEvents(s.Thread, s.cursor, s.hub.replayBatch)
			if err != nil {
				logger.Log.Error("fanout_replay_failed", zap.String("thread", s.Thread), zap.Error(err))
				break
			}
			for _, evt := range evts {
				select {
				case s.out <- evt:
					s.cursor = evt.Seq
				case <-s.ctx.Done():
					return
				}
			}
			if len(evts) < s.hub.replayBatch {
				break
			}
		}

		select {
		case <-s.nudge:
		case <-poll.C:
		case <-s.ctx.Done():
			return
		}
	}
}
