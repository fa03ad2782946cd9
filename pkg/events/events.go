package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haven-hvn/haven/pkg/log"
)

// EventType represents the type of event
type EventType string

const (
	// Plugin events
	EventSourcesDiscovered EventType = "plugin.sources_discovered"
	EventArchiveStarted    EventType = "plugin.archive_started"
	EventArchiveComplete   EventType = "plugin.archive_complete"

	// Pipeline flow events
	EventVideoIngested     EventType = "pipeline.video_ingested"
	EventAnalysisRequested EventType = "pipeline.analysis_requested"
	EventAnalysisComplete  EventType = "pipeline.analysis_complete"
	EventAnalysisFailed    EventType = "pipeline.analysis_failed"
	EventEncryptRequested  EventType = "pipeline.encrypt_requested"
	EventEncryptComplete   EventType = "pipeline.encrypt_complete"
	EventUploadRequested   EventType = "pipeline.upload_requested"
	EventUploadProgress    EventType = "pipeline.upload_progress"
	EventUploadComplete    EventType = "pipeline.upload_complete"
	EventUploadFailed      EventType = "pipeline.upload_failed"
	EventSyncRequested     EventType = "pipeline.sync_requested"
	EventSyncComplete      EventType = "pipeline.sync_complete"

	// Pipeline lifecycle events
	EventPipelineStarted   EventType = "pipeline.started"
	EventPipelineComplete  EventType = "pipeline.complete"
	EventPipelineFailed    EventType = "pipeline.failed"
	EventPipelineCancelled EventType = "pipeline.cancelled"

	// Step lifecycle events
	EventStepStarted  EventType = "step.started"
	EventStepComplete EventType = "step.complete"
	EventStepFailed   EventType = "step.failed"
	EventStepSkipped  EventType = "step.skipped"

	// System events
	EventHealthCheck  EventType = "system.health_check"
	EventConfigUpdate EventType = "system.config_update"
	EventWorkerStatus EventType = "system.worker_status"
)

// Event is a single bus message. CorrelationID links every event emitted
// while handling one unit of work; it is uuid.Nil for system-scope events.
type Event struct {
	ID            uuid.UUID
	Type          EventType
	CorrelationID uuid.UUID
	Timestamp     time.Time
	Source        string
	Payload       map[string]any
}

// New creates an event with a fresh ID and timestamp
func New(eventType EventType, source string, correlationID uuid.UUID, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Payload:       payload,
	}
}

// Handler receives a published event. Handlers must not retain the event
// past return.
type Handler func(Event)

type subscription struct {
	handler Handler
}

// Bus is an in-process publish/subscribe event bus
type Bus struct {
	mu             sync.RWMutex
	handlers       map[EventType][]*subscription
	globalHandlers []*subscription
	history        []Event
	historyEnabled bool
	maxHistory     int
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]*subscription),
	}
}

// Subscribe registers a handler for a specific event type and returns an
// idempotent unsubscribe function
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	sub := &subscription{handler: handler}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.handlers[eventType] = removeSub(b.handlers[eventType], sub)
		})
	}
}

// SubscribeAll registers a handler for every event type. Useful for logging
// and metrics taps.
func (b *Bus) SubscribeAll(handler Handler) func() {
	sub := &subscription{handler: handler}

	b.mu.Lock()
	b.globalHandlers = append(b.globalHandlers, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.globalHandlers = removeSub(b.globalHandlers, sub)
		})
	}
}

// Publish delivers the event to all global handlers and all type-specific
// handlers. Handlers run concurrently relative to each other; Publish returns
// after every handler has returned, so events from a single producer reach
// each handler in publish order. Publish never fails: a panicking handler is
// recovered and logged without affecting its siblings.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	if b.historyEnabled {
		b.history = append(b.history, event)
		if len(b.history) > b.maxHistory {
			b.history = b.history[len(b.history)-b.maxHistory:]
		}
	}
	subs := make([]*subscription, 0, len(b.globalHandlers)+len(b.handlers[event.Type]))
	subs = append(subs, b.globalHandlers...)
	subs = append(subs, b.handlers[event.Type]...)
	b.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Logger.Error().
						Str("event_type", string(event.Type)).
						Interface("panic", r).
						Msg("Event handler panicked")
				}
			}()
			s.handler(event)
		}(sub)
	}
	wg.Wait()
}

// EnableHistory turns on the bounded event history ring
func (b *Bus) EnableHistory(maxSize int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyEnabled = true
	b.maxHistory = maxSize
}

// DisableHistory turns off history tracking and drops retained events
func (b *Bus) DisableHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyEnabled = false
	b.history = nil
}

// HistoryFilter selects events from the history ring. Zero values match
// everything.
type HistoryFilter struct {
	Type          EventType
	CorrelationID uuid.UUID
	Limit         int
}

// History returns retained events matching the filter, oldest first
func (b *Bus) History(filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.history {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.CorrelationID != uuid.Nil && e.CorrelationID != filter.CorrelationID {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// Clear removes all subscriptions and history
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]*subscription)
	b.globalHandlers = nil
	b.history = nil
}

// SubscriberCount returns the number of registered handlers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := len(b.globalHandlers)
	for _, subs := range b.handlers {
		count += len(subs)
	}
	return count
}

func removeSub(subs []*subscription, target *subscription) []*subscription {
	for i, s := range subs {
		if s == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
