package orchestration

import (
	"github.com/koscakluka/ema-ui/core/events"
	"github.com/koscakluka/ema-ui/core/realtime"
	"github.com/koscakluka/ema-ui/core/state"
)

// Realtime callbacks are bound to the session that registered them and are
// dropped once that session is no longer the active one.

func (o *Orchestrator) handleHistory(sessionID string, items []realtime.Item) {
	if !o.isActive(sessionID) {
		return
	}

	delta := o.reconciler.Reconcile(items)
	for _, message := range delta.Added {
		o.bus.Publish(events.NewMessageAdded(message))
	}
	o.bus.Publish(events.NewHistoryChanged(delta.History))
	o.publishState()
}

// recordRuntimeError stores and publishes an error reported mid-session. The
// status is left unchanged.
func (o *Orchestrator) recordRuntimeError(sessionID string, err error) {
	if !o.isActive(sessionID) {
		if o.config.Debug {
			logger.Debug("dropping error from inactive session", "error", err)
		}
		return
	}

	message := realtime.NormalizeError(err).Error()
	o.machine.RecordError(message)
	if o.config.Debug {
		logger.Debug("realtime session error", "error", message)
	}
	o.bus.Publish(events.NewError(message))
}

func (o *Orchestrator) handleSignal(sessionID string, signal state.Signal, event events.Event) {
	if !o.isActive(sessionID) {
		return
	}

	o.bus.Publish(event)
	o.machine.Apply(signal)
}
