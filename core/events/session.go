package events

import "github.com/koscakluka/ema-ui/core/state"

const (
	KindStatusChanged            Kind = "session.status_changed"
	KindConversationStateChanged Kind = "session.conversation_state_changed"
	KindStateChanged             Kind = "session.state_changed"
	KindError                    Kind = "session.error"
	KindConnected                Kind = "session.connected"
	KindDisconnected             Kind = "session.disconnected"
)

type StatusChanged struct {
	Base
	From state.Status
	To   state.Status
}

func NewStatusChanged(from, to state.Status) StatusChanged {
	return StatusChanged{Base: NewBase(KindStatusChanged), From: from, To: to}
}

type ConversationStateChanged struct {
	Base
	From state.ConversationState
	To   state.ConversationState
}

func NewConversationStateChanged(from, to state.ConversationState) ConversationStateChanged {
	return ConversationStateChanged{Base: NewBase(KindConversationStateChanged), From: from, To: to}
}

type StateChanged struct {
	Base
	State state.SessionState
}

func NewStateChanged(snapshot state.SessionState) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), State: snapshot}
}

type Error struct {
	Base
	Message string
}

func NewError(message string) Error {
	return Error{Base: NewBase(KindError), Message: message}
}

type Connected struct{ Base }

func NewConnected() Connected {
	return Connected{Base: NewBase(KindConnected)}
}

type Disconnected struct{ Base }

func NewDisconnected() Disconnected {
	return Disconnected{Base: NewBase(KindDisconnected)}
}
