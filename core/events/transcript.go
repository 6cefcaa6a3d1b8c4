package events

import "github.com/koscakluka/ema-ui/core/transcript"

const (
	KindMessageAdded   Kind = "transcript.message"
	KindHistoryChanged Kind = "transcript.history_changed"
)

type MessageAdded struct {
	Base
	Message transcript.Message
}

func NewMessageAdded(message transcript.Message) MessageAdded {
	return MessageAdded{Base: NewBase(KindMessageAdded), Message: message}
}

type HistoryChanged struct {
	Base
	History []transcript.Message
}

func NewHistoryChanged(history []transcript.Message) HistoryChanged {
	if history == nil {
		history = []transcript.Message{}
	}
	return HistoryChanged{Base: NewBase(KindHistoryChanged), History: history}
}
