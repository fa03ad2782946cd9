/*
Package events provides the in-process event bus that connects Haven's
components.

Every stage of the archival flow publishes typed events carrying a
correlation ID, so all events for one piece of media can be traced from
discovery through sync:

	bus := events.NewBus()

	unsubscribe := bus.Subscribe(events.EventPipelineComplete, func(e events.Event) {
		fmt.Println("done:", e.CorrelationID)
	})
	defer unsubscribe()

	bus.Publish(events.New(events.EventPipelineComplete, "pipeline", id, nil))

Delivery semantics: handlers for one publish run concurrently with each
other, but Publish joins them before returning, so a single producer's
events arrive at each handler in publish order. Handler panics are recovered
per handler and never affect siblings or the publisher. An optional bounded
history ring (oldest evicted) supports debugging and the admin surface.
*/
package events
