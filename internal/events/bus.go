// Package events provides the in-process event bus. Modules publish typed
// events; subscribers react to them (portfolio recomputation, the WebSocket
// stream).
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	QuotesRefreshed  EventType = "QUOTES_REFRESHED"
	PortfolioChanged EventType = "PORTFOLIO_CHANGED"
	SnapshotRecorded EventType = "SNAPSHOT_RECORDED"
	BackupCompleted  EventType = "BACKUP_COMPLETED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Module    string                 `json:"module"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Bus is an in-process pub/sub hub. Typed handlers run on their own
// goroutine per event. Stream subscribers receive every event over a
// buffered channel; a slow consumer drops events rather than blocking
// publishers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]func(Event)
	streams  map[chan Event]struct{}
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]func(Event)),
		streams:  make(map[chan Event]struct{}),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type. Handlers run
// asynchronously; ordering across events is not guaranteed.
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll returns a buffered channel receiving every published event.
// The caller must Unsubscribe when done.
func (b *Bus) SubscribeAll() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 16)
	b.streams[ch] = struct{}{}

	b.log.Debug().Int("stream_subscribers", len(b.streams)).Msg("Stream subscriber added")
	return ch
}

// Unsubscribe detaches and closes a stream channel. Safe to call twice.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.streams[ch]; !ok {
		return
	}
	delete(b.streams, ch)
	close(ch)

	b.log.Debug().Int("stream_subscribers", len(b.streams)).Msg("Stream subscriber removed")
}

// Publish broadcasts an event to typed handlers and stream subscribers.
// Never blocks: a stream subscriber with a full buffer misses the event.
func (b *Bus) Publish(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Int("handlers", len(b.handlers[eventType])).
		Int("stream_subscribers", len(b.streams)).
		Msg("Publishing event")

	for _, handler := range b.handlers[eventType] {
		go handler(event)
	}

	for ch := range b.streams {
		select {
		case ch <- event:
		default:
			b.log.Warn().Str("event_type", string(eventType)).Msg("Stream subscriber full, event dropped")
		}
	}
}
