package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of cluster change an Event describes.
type EventType string

const (
	EventStreamRolledOver          EventType = "stream.rolled_over"
	EventBackingIndexDeleted       EventType = "index.deleted"
	EventForceMergeCompleted       EventType = "index.force_merge_completed"
	EventForceMergeFailed          EventType = "index.force_merge_failed"
	EventMergePolicyUpdated        EventType = "index.merge_policy_updated"
	EventDeploymentRescaled        EventType = "deployment.rescaled"
	EventDeploymentAssignmentAdded EventType = "deployment.assignment_added"
)

// Event is one published cluster change.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker fans published events out to every current subscriber.
// Delivery never blocks: subscribers with a full buffer miss events
// rather than stalling distribution. Publish waits for room in the
// broker's 100-event queue, and returns at once after Stop.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts distribution. Subscriber channels are left open; callers
// must still Unsubscribe to close them.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues event for broadcast to every current subscriber.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
