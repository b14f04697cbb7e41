// Package progress fans scan progress events out to connected observers.
// Delivery is best-effort live telemetry: a slow subscriber loses events
// rather than stalling the scan, and nothing is replayed on reconnect.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage identifies where in its lifecycle a scan currently is
type Stage string

const (
	StageStarted   Stage = "started"
	StageFetching  Stage = "fetching"
	StageAnalyzing Stage = "analyzing"
	StageStored    Stage = "stored"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Event is a single progress update. Events are ephemeral and never
// persisted.
type Event struct {
	Stage          Stage     `json:"stage"`
	ProcessedCount int       `json:"processed_count"`
	TotalCount     int       `json:"total_count"`
	CurrentSender  string    `json:"current_sender,omitempty"`
	Error          string    `json:"error,omitempty"`
	Time           time.Time `json:"time"`
}

// subscriberBuffer is the per-subscriber event buffer size. A subscriber
// that falls further behind than this starts losing events.
const subscriberBuffer = 16

// Broadcaster delivers every published event to all current subscribers
// without ever blocking the publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	closed      bool
}

// NewBroadcaster creates an empty Broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a new observer and returns its id and receive
// channel. The channel is closed on Unsubscribe or Close.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes an observer. Calling it again for the same id is a
// no-op.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(ch)
}

// Publish delivers the event to every subscriber. Subscribers with full
// buffers are skipped; the publisher never waits.
func (b *Broadcaster) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Buffer full, drop for this subscriber
		}
	}
}

// SubscriberCount returns the number of connected observers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close removes and closes all subscribers. Further subscriptions get a
// closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
