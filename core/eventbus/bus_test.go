package eventbus

import (
	"testing"

	"github.com/koscakluka/ema-ui/core/events"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPublishRunsHandlersInSubscriptionOrder(t *testing.T) {
	bus := New()
	calls := []int{}

	bus.Subscribe(events.KindConnected, func(events.Event) { calls = append(calls, 1) })
	bus.Subscribe(events.KindConnected, func(events.Event) { calls = append(calls, 2) })
	bus.Subscribe(events.KindDisconnected, func(events.Event) { calls = append(calls, 99) })
	bus.Subscribe(events.KindConnected, func(events.Event) { calls = append(calls, 3) })

	bus.Publish(events.NewConnected())

	if len(calls) != 3 || calls[0] != 1 || calls[1] != 2 || calls[2] != 3 {
		t.Fatalf("expected handlers [1 2 3], got %v", calls)
	}
}

func TestPanickingHandlerDoesNotStopLaterHandlers(t *testing.T) {
	recovered := []any{}
	bus := New(WithPanicHandler(func(kind events.Kind, value any) {
		if kind != events.KindError {
			t.Fatalf("expected panic for error kind, got %q", kind)
		}
		recovered = append(recovered, value)
	}))

	laterCalled := false
	bus.Subscribe(events.KindError, func(events.Event) { panic("listener failure") })
	bus.Subscribe(events.KindError, func(events.Event) { laterCalled = true })

	bus.Publish(events.NewError("boom"))

	if !laterCalled {
		t.Fatalf("expected later handler to run after a panicking one")
	}
	if len(recovered) != 1 || recovered[0] != "listener failure" {
		t.Fatalf("expected panic to be reported once, got %v", recovered)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	calls := 0

	subscription := bus.Subscribe(events.KindConnected, func(events.Event) { calls++ })
	bus.Publish(events.NewConnected())
	subscription.Unsubscribe()
	subscription.Unsubscribe()
	bus.Publish(events.NewConnected())

	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if bus.Len(events.KindConnected) != 0 {
		t.Fatalf("expected no remaining handlers, got %d", bus.Len(events.KindConnected))
	}
}

func TestHandlerRemovedDuringPublishIsSkipped(t *testing.T) {
	bus := New()
	var second Subscription
	secondCalled := false

	bus.Subscribe(events.KindConnected, func(events.Event) { second.Unsubscribe() })
	second = bus.Subscribe(events.KindConnected, func(events.Event) { secondCalled = true })

	bus.Publish(events.NewConnected())

	if secondCalled {
		t.Fatalf("expected handler removed mid-publish to be skipped")
	}
}

func TestHandlerAddedDuringPublishWaitsForNextPublish(t *testing.T) {
	bus := New()
	lateCalls := 0

	bus.SubscribeOnce(events.KindConnected, func(events.Event) {
		bus.Subscribe(events.KindConnected, func(events.Event) { lateCalls++ })
	})

	bus.Publish(events.NewConnected())
	if lateCalls != 0 {
		t.Fatalf("expected late handler to skip the current publish, got %d calls", lateCalls)
	}

	bus.Publish(events.NewConnected())
	if lateCalls != 1 {
		t.Fatalf("expected late handler on next publish, got %d calls", lateCalls)
	}
}

func TestSubscribeOnceWithReentrantPublish(t *testing.T) {
	bus := New()
	calls := 0

	bus.SubscribeOnce(events.KindUserAudio, func(events.Event) {
		calls++
		bus.Publish(events.NewUserAudio())
	})

	bus.Publish(events.NewUserAudio())
	bus.Publish(events.NewUserAudio())

	if calls != 1 {
		t.Fatalf("expected once handler to run exactly once, got %d", calls)
	}
}

func TestClearRemovesAllHandlers(t *testing.T) {
	bus := New()
	calls := 0
	bus.Subscribe(events.KindConnected, func(events.Event) { calls++ })
	bus.Subscribe(events.KindDisconnected, func(events.Event) { calls++ })

	bus.Clear()
	bus.Publish(events.NewConnected())
	bus.Publish(events.NewDisconnected())

	if calls != 0 {
		t.Fatalf("expected no calls after clear, got %d", calls)
	}
}

func TestSubscribeOnceDeliversOncePerRegistrationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("each once registration is delivered exactly once", prop.ForAll(
		func(registrations int, publishes int, reentrant int) bool {
			bus := New()
			calls := make([]int, registrations)

			for i := range registrations {
				bus.SubscribeOnce(events.KindAgentStarted, func(events.Event) {
					calls[i]++
					for range reentrant {
						bus.Publish(events.NewAgentStarted())
					}
				})
			}

			for range publishes {
				bus.Publish(events.NewAgentStarted())
			}

			for _, count := range calls {
				if count != 1 {
					return false
				}
			}
			return bus.Len(events.KindAgentStarted) == 0
		},
		gen.IntRange(0, 10),
		gen.IntRange(1, 5),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
