package orchestration

import (
	"github.com/koscakluka/ema-ui/core/eventbus"
	"github.com/koscakluka/ema-ui/core/events"
	"github.com/koscakluka/ema-ui/core/state"
)

var _ state.Observer = (*Orchestrator)(nil)

// On subscribes handler to events of kind.
func (o *Orchestrator) On(kind events.Kind, handler eventbus.Handler) eventbus.Subscription {
	return o.bus.Subscribe(kind, handler)
}

// Once subscribes handler to the next event of kind only.
func (o *Orchestrator) Once(kind events.Kind, handler eventbus.Handler) eventbus.Subscription {
	return o.bus.SubscribeOnce(kind, handler)
}

// Off removes a subscription made with On or Once.
func (o *Orchestrator) Off(subscription eventbus.Subscription) {
	o.bus.Unsubscribe(subscription.Kind, subscription.ID)
}

func (o *Orchestrator) StatusChanged(from, to state.Status) {
	o.bus.Publish(events.NewStatusChanged(from, to))
	o.publishState()
}

func (o *Orchestrator) ConversationStateChanged(from, to state.ConversationState) {
	o.bus.Publish(events.NewConversationStateChanged(from, to))
	o.publishState()
}

func (o *Orchestrator) publishState() {
	o.bus.Publish(events.NewStateChanged(o.State()))
}
