package transcript

import (
	"strconv"
	"sync"
	"time"

	"github.com/koscakluka/ema-ui/core/realtime"
)

const localIDPrefix = "local_"

// Delta is the outcome of reconciling one snapshot.
type Delta struct {
	// History is the full rebuilt message list.
	History []Message
	// Added are the messages beyond the previous history length, in order.
	Added []Message
}

// Reconciler rebuilds the message history from full item snapshots and
// reports which messages are new.
//
// New messages are found by comparing lengths: the item list is assumed to
// only ever grow by appending. If the backend truncates, reorders or deletes
// items, messages past the old length are reported as new even if they were
// seen before, and shrinking lists report nothing.
type Reconciler struct {
	mu       sync.Mutex
	messages []Message
	nextID   uint64
	now      func() time.Time
}

func NewReconciler() *Reconciler {
	return &Reconciler{now: time.Now}
}

// Reconcile replaces the history with one rebuilt from items.
func (r *Reconciler) Reconcile(items []realtime.Item) Delta {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.messages
	rebuilt := make([]Message, 0, len(items))
	for _, item := range items {
		if item.Type != realtime.ItemTypeMessage || len(item.Content) == 0 {
			continue
		}

		role, ok := toRole(item.Role)
		if !ok {
			continue
		}

		content, ok := toContent(item.Content[0])
		if !ok {
			continue
		}

		index := len(rebuilt)
		message := Message{
			ID:      r.identify(item, index, previous),
			Role:    role,
			Content: content,
			Raw:     item.Clone(),
		}
		if index < len(previous) && previous[index].ID == message.ID {
			message.CreatedAt = previous[index].CreatedAt
		} else {
			message.CreatedAt = r.now()
		}
		rebuilt = append(rebuilt, message)
	}

	r.messages = rebuilt

	delta := Delta{History: cloneMessages(rebuilt)}
	if len(rebuilt) > len(previous) {
		delta.Added = cloneMessages(rebuilt[len(previous):])
	}
	return delta
}

// History returns a copy of the current message list.
func (r *Reconciler) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneMessages(r.messages)
}

// Reset drops the history. Local identifiers keep increasing across resets.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

func (r *Reconciler) identify(item realtime.Item, index int, previous []Message) string {
	if item.ID != "" {
		return item.ID
	}

	// The same position without a backend id keeps its local id between
	// snapshots.
	if index < len(previous) && previous[index].Raw.ID == "" {
		return previous[index].ID
	}

	r.nextID++
	return localIDPrefix + strconv.FormatUint(r.nextID, 10)
}

func toRole(role string) (Role, bool) {
	switch Role(role) {
	case RoleUser, RoleAssistant:
		return Role(role), true
	default:
		return "", false
	}
}

func toContent(content realtime.ItemContent) (Content, bool) {
	switch content.Type {
	case realtime.ContentTypeText, realtime.ContentTypeInputText, realtime.ContentTypeOutputText:
		text := ""
		if content.Text != nil {
			text = *content.Text
		}
		return TextContent{Text: text}, true
	case realtime.ContentTypeAudio, realtime.ContentTypeInputAudio, realtime.ContentTypeOutputAudio:
		var transcript *string
		if content.Transcript != nil {
			copied := *content.Transcript
			transcript = &copied
		}
		return AudioContent{Transcript: transcript}, true
	default:
		return nil, false
	}
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return []Message{}
	}
	cloned := make([]Message, len(messages))
	copy(cloned, messages)
	return cloned
}
