package events

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var received []Event
	bus.Subscribe(EventPipelineStarted, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	correlation := uuid.New()
	bus.Publish(New(EventPipelineStarted, "test", correlation, map[string]any{"path": "/tmp/a.mp4"}))
	bus.Publish(New(EventPipelineComplete, "test", correlation, nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, EventPipelineStarted, received[0].Type)
	assert.Equal(t, correlation, received[0].CorrelationID)
	assert.Equal(t, "/tmp/a.mp4", received[0].Payload["path"])
	assert.NotEqual(t, uuid.Nil, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestPublishOrderPerHandler(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var order []int
	bus.Subscribe(EventStepStarted, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, e.Payload["seq"].(int))
	})

	// Publish joins handler completion, so a single producer's events
	// arrive in publish order
	for i := 0; i < 20; i++ {
		bus.Publish(New(EventStepStarted, "test", uuid.Nil, map[string]any{"seq": i}))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 20)
	for i, seq := range order {
		assert.Equal(t, i, seq)
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	typed := 0
	all := 0
	bus.Subscribe(EventStepComplete, func(Event) {
		mu.Lock()
		typed++
		mu.Unlock()
	})
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		all++
		mu.Unlock()
	})

	bus.Publish(New(EventStepComplete, "test", uuid.Nil, nil))
	bus.Publish(New(EventStepFailed, "test", uuid.Nil, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()

	count := 0
	var mu sync.Mutex
	unsubscribe := bus.Subscribe(EventStepStarted, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(New(EventStepStarted, "test", uuid.Nil, nil))
	unsubscribe()
	unsubscribe() // Second call must be a no-op
	bus.Publish(New(EventStepStarted, "test", uuid.Nil, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestHandlerPanicDoesNotAffectSiblings(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe(EventStepStarted, func(Event) {
		panic("handler blew up")
	})
	bus.Subscribe(EventStepStarted, func(Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	// Publish must not panic and the sibling must still run
	assert.NotPanics(t, func() {
		bus.Publish(New(EventStepStarted, "test", uuid.Nil, nil))
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, delivered)
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	bus := NewBus()
	bus.EnableHistory(3)

	for i := 0; i < 5; i++ {
		bus.Publish(New(EventStepStarted, "test", uuid.Nil, map[string]any{"seq": i}))
	}

	history := bus.History(HistoryFilter{})
	require.Len(t, history, 3)
	assert.Equal(t, 2, history[0].Payload["seq"])
	assert.Equal(t, 4, history[2].Payload["seq"])
}

func TestHistoryFilters(t *testing.T) {
	bus := NewBus()
	bus.EnableHistory(100)

	correlation := uuid.New()
	bus.Publish(New(EventStepStarted, "test", correlation, nil))
	bus.Publish(New(EventStepComplete, "test", correlation, nil))
	bus.Publish(New(EventStepStarted, "test", uuid.New(), nil))

	byType := bus.History(HistoryFilter{Type: EventStepStarted})
	assert.Len(t, byType, 2)

	byCorrelation := bus.History(HistoryFilter{CorrelationID: correlation})
	assert.Len(t, byCorrelation, 2)

	limited := bus.History(HistoryFilter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, EventStepStarted, limited[0].Type)
}

func TestClearRemovesSubscriptionsAndHistory(t *testing.T) {
	bus := NewBus()
	bus.EnableHistory(10)
	bus.Subscribe(EventStepStarted, func(Event) {})
	bus.Publish(New(EventStepStarted, "test", uuid.Nil, nil))

	bus.Clear()

	assert.Equal(t, 0, bus.SubscriberCount())
	assert.Empty(t, bus.History(HistoryFilter{}))
}
