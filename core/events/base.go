package events

import "time"

// Kind is the name under which an event is published.
type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

// Kinds lists every kind published to the host.
func Kinds() []Kind {
	return []Kind{
		KindStatusChanged,
		KindConversationStateChanged,
		KindStateChanged,
		KindError,
		KindConnected,
		KindDisconnected,
		KindMessageAdded,
		KindHistoryChanged,
		KindAgentStarted,
		KindAgentEnded,
		KindAudioStarted,
		KindAudioEnded,
		KindUserAudio,
		KindActionRequested,
	}
}
