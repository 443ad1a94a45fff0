// Package notify publishes filesystem change events to subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/adbfs/metrics"
)

// RootURI is the only address change events are ever scoped to.
const RootURI = "adbfs:/"

type Cause string

const (
	CauseAttach  Cause = "attach"
	CauseDetach  Cause = "detach"
	CauseRefresh Cause = "refresh"
)

// Event signals that the virtual root changed.
type Event struct {
	ID        string `json:"id"`
	URI       string `json:"uri"`
	Cause     Cause  `json:"cause"`
	DeviceID  string `json:"device_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Notifier manages subscribers and publishes events.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan Event
}

func New() *Notifier {
	return &Notifier{
		subscribers: make(map[uuid.UUID]chan Event),
	}
}

// Subscribe adds a new subscriber and returns its event channel together
// with the function removing it again. The channel is closed on unsubscribe.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, 64)

	n.mu.Lock()
	n.subscribers[id] = ch
	n.mu.Unlock()
	metrics.SetSubscribers(n.Count())

	return ch, func() {
		n.mu.Lock()
		if _, ok := n.subscribers[id]; ok {
			delete(n.subscribers, id)
			close(ch)
		}
		n.mu.Unlock()
		metrics.SetSubscribers(n.Count())
	}
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (n *Notifier) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.URI == "" {
		event.URI = RootURI
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subscribers {
		select {
		case ch <- event:
		default:
			metrics.RecordDroppedEvent()
		}
	}
	metrics.RecordChangeEvent(string(event.Cause))
}

// PublishRootChanged fires a change event scoped to the virtual root.
func (n *Notifier) PublishRootChanged(cause Cause, deviceID string) {
	n.Publish(Event{
		URI:      RootURI,
		Cause:    cause,
		DeviceID: deviceID,
	})
}

// Count returns the current number of subscribers.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.subscribers)
}

// Close removes every subscriber and closes their channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	for id, ch := range n.subscribers {
		delete(n.subscribers, id)
		close(ch)
	}
	n.mu.Unlock()
	metrics.SetSubscribers(0)
}
