package events

import "github.com/koscakluka/ema-ui/core/uiactions"

// KindActionRequested identifies a UI action requested by the agent.
const KindActionRequested Kind = "ui.action"

// ActionRequested carries the action before it is executed.
type ActionRequested struct {
	Base
	Action uiactions.UIAction
}

// NewActionRequested creates an action requested event.
func NewActionRequested(action uiactions.UIAction) ActionRequested {
	return ActionRequested{Base: NewBase(KindActionRequested), Action: action}
}
