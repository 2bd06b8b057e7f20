package engine

import (
	"sync"
	"time"

	"github.com/seantiz/conductor/internal/model"
)

// DefaultKeepAliveInterval is how often an idle keep-alive is queued on
// every attached subscription.
const DefaultKeepAliveInterval = 15 * time.Second

// maxPendingLogs is the number of undelivered log chunks a subscription
// buffers. Further chunks are dropped until the observer catches up; control
// events are always kept.
const maxPendingLogs = 4096

// Hub routes events to the single live observer of each execution and
// broadcasts capacity stats to all of them. It is safe for concurrent use.
//
// Publishing never blocks: each Subscription owns an ordered mailbox that its
// observer drains at its own pace.
type Hub struct {
	mu        sync.Mutex
	subs      map[string]*Subscription
	keepAlive time.Duration
}

// NewHub creates a hub. keepAlive <= 0 disables keep-alive events.
func NewHub(keepAlive time.Duration) *Hub {
	return &Hub{
		subs:      make(map[string]*Subscription),
		keepAlive: keepAlive,
	}
}

// Attach binds a new subscription to executionID. Any previous subscription
// for the same id is superseded: its Done channel is closed and it receives
// nothing further.
func (h *Hub) Attach(executionID string) *Subscription {
	sub := newSubscription(executionID)

	h.mu.Lock()
	prev := h.subs[executionID]
	h.subs[executionID] = sub
	h.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	if h.keepAlive > 0 {
		go sub.keepAliveLoop(h.keepAlive)
	}
	return sub
}

// Detach removes sub if it is still the current subscription for
// executionID and releases it. It reports whether sub was current.
func (h *Hub) Detach(executionID string, sub *Subscription) bool {
	h.mu.Lock()
	current := h.subs[executionID] == sub
	if current {
		delete(h.subs, executionID)
	}
	h.mu.Unlock()

	sub.release()
	return current
}

// Has reports whether executionID has a live observer.
func (h *Hub) Has(executionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.subs[executionID]
	return ok
}

// Len returns the number of attached subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers ev to the observer of executionID. Without an observer
// it is a no-op and reports false.
func (h *Hub) Publish(executionID string, ev Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[executionID]
	if !ok {
		return false
	}
	return sub.push(ev)
}

// BroadcastStats delivers a stats snapshot to every attached observer.
func (h *Hub) BroadcastStats(stats model.Stats) {
	ev := StatsEvent(stats)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		sub.push(ev)
	}
}

// Close ends the stream of executionID once everything queued so far,
// typically the END marker, has been drained by the observer.
func (h *Hub) Close(executionID string) {
	h.mu.Lock()
	sub, ok := h.subs[executionID]
	if ok {
		delete(h.subs, executionID)
	}
	h.mu.Unlock()

	if ok {
		sub.finish()
	}
}

// Subscription is one observer's mailbox for one execution.
type Subscription struct {
	executionID string

	mu          sync.Mutex
	pending     []Event
	pendingLogs int
	dropped     int
	finished    bool

	ready    chan struct{}
	done     chan struct{}
	stop     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
}

func newSubscription(executionID string) *Subscription {
	return &Subscription{
		executionID: executionID,
		ready:       make(chan struct{}, 1),
		done:        make(chan struct{}),
		stop:        make(chan struct{}),
	}
}

// ExecutionID returns the execution this subscription observes.
func (s *Subscription) ExecutionID() string {
	return s.executionID
}

// Ready is signalled whenever new events are pending or the stream finished.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed when the subscription is detached or superseded.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Drain returns all pending events in order. finished is true once the
// stream has ended and no further events will follow the returned ones.
func (s *Subscription) Drain() (events []Event, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events = s.pending
	s.pending = nil
	s.pendingLogs = 0
	return events, s.finished
}

// Dropped returns the number of log chunks discarded for a slow observer.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) push(ev Event) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	if !ev.control() {
		if s.pendingLogs >= maxPendingLogs {
			s.dropped++
			s.mu.Unlock()
			droppedEventsTotal.Inc()
			return false
		}
		s.pendingLogs++
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()

	s.signal()
	return true
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stop) })
	s.signal()
}

func (s *Subscription) release() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscription) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.push(Event{Kind: EventKeepAlive}) {
				return
			}
		}
	}
}
