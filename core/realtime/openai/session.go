package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-ui/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const closeTimeout = time.Second

var _ realtime.Handle = (*session)(nil)

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	options realtime.SessionOptions
	debug   bool

	mu          sync.Mutex
	items       []realtime.Item
	audioActive bool

	closeOnce sync.Once
	closed    atomic.Bool
}

func newSession(conn *websocket.Conn, options realtime.SessionOptions, debug bool) *session {
	return &session{conn: conn, options: options, debug: debug}
}

// Send adds a user text message to the conversation and asks for a response.
func (s *session) Send(ctx context.Context, text string) error {
	if err := s.send(ctx, newUserMessage(text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if err := s.send(ctx, newResponseCreate()); err != nil {
		return fmt.Errorf("failed to request response: %w", err)
	}
	return nil
}

// Interrupt cancels the response in progress, if any.
func (s *session) Interrupt(ctx context.Context) error {
	if err := s.send(ctx, newResponseCancel()); err != nil {
		return fmt.Errorf("failed to cancel response: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

func (s *session) send(ctx context.Context, event clientEvent) error {
	if s.closed.Load() {
		return realtime.ErrSessionClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if s.debug {
		logger.DebugContext(ctx, "sending realtime event", "type", event.Type, "event_id", event.EventID)
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *session) processIncomingMessages() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.options.ErrorCallback(fmt.Errorf("realtime connection lost: %w", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var event serverEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			if s.debug {
				logger.Debug("failed to decode realtime event", "error", err)
			}
			continue
		}
		if s.debug {
			logger.Debug("received realtime event", "type", event.Type)
		}
		s.handle(event)
	}
}

func (s *session) handle(event serverEvent) {
	switch event.Type {
	case eventError:
		var details any
		_ = json.Unmarshal(event.Error, &details)
		s.options.ErrorCallback(realtime.NormalizeError(details))

	case eventItemCreated, eventItemAdded, eventItemDone, eventOutputItemAdded, eventOutputItemDone:
		var item realtime.Item
		if err := json.Unmarshal(event.Item, &item); err != nil {
			s.options.ErrorCallback(fmt.Errorf("failed to decode conversation item: %w", err))
			return
		}
		item.Raw = append(json.RawMessage(nil), event.Item...)
		s.updateHistory(func(items []realtime.Item) []realtime.Item {
			if idx := indexOf(items, item.ID); idx != -1 {
				items[idx] = mergeItem(items[idx], item)
				return items
			}
			return append(items, item)
		})

	case eventItemDeleted:
		s.updateHistory(func(items []realtime.Item) []realtime.Item {
			return slices.DeleteFunc(items, func(item realtime.Item) bool { return item.ID == event.ItemID })
		})

	case eventContentPartAdded:
		var part realtime.ItemContent
		if err := json.Unmarshal(event.Part, &part); err != nil {
			return
		}
		s.updateContent(event.ItemID, event.ContentIndex, func(content *realtime.ItemContent) {
			if part.Type != "" {
				content.Type = part.Type
			}
			if part.Text != nil {
				content.Text = part.Text
			}
			if part.Transcript != nil {
				content.Transcript = part.Transcript
			}
		})

	case eventInputTranscriptionCompleted, eventAudioTranscriptDone, eventOutputAudioTranscriptDone:
		transcript := ""
		if event.Transcript != nil {
			transcript = *event.Transcript
		}
		s.updateContent(event.ItemID, event.ContentIndex, func(content *realtime.ItemContent) {
			content.Transcript = &transcript
		})

	case eventAudioTranscriptDelta, eventOutputAudioTranscriptDelta:
		s.updateContent(event.ItemID, event.ContentIndex, func(content *realtime.ItemContent) {
			content.Transcript = appendDelta(content.Transcript, event.Delta)
		})

	case eventTextDone, eventOutputTextDone:
		text := ""
		if event.Text != nil {
			text = *event.Text
		}
		s.updateContent(event.ItemID, event.ContentIndex, func(content *realtime.ItemContent) {
			content.Text = &text
		})

	case eventTextDelta, eventOutputTextDelta:
		s.updateContent(event.ItemID, event.ContentIndex, func(content *realtime.ItemContent) {
			content.Text = appendDelta(content.Text, event.Delta)
		})

	case eventResponseCreated:
		s.options.AgentStartCallback()

	case eventAudioDelta, eventOutputAudioDelta:
		if s.setAudioActive(true) {
			s.options.AudioStartCallback()
		}

	case eventAudioDone, eventOutputAudioDone:
		if s.setAudioActive(false) {
			s.options.AudioEndCallback()
		}

	case eventResponseDone:
		if s.setAudioActive(false) {
			s.options.AudioEndCallback()
		}
		s.options.AgentEndCallback()

	case eventFunctionCallArgumentsDone:
		go s.callTool(event.CallID, event.Name, event.Arguments)

	case eventSpeechStarted:
		s.options.UserAudioCallback()
	}
}

// setAudioActive reports whether the playback state changed.
func (s *session) setAudioActive(active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioActive == active {
		return false
	}
	s.audioActive = active
	return true
}

func (s *session) updateHistory(update func([]realtime.Item) []realtime.Item) {
	s.mu.Lock()
	s.items = update(s.items)
	snapshot := make([]realtime.Item, len(s.items))
	for i, item := range s.items {
		snapshot[i] = item.Clone()
	}
	s.mu.Unlock()

	s.options.HistoryCallback(snapshot)
}

func (s *session) updateContent(itemID string, contentIndex int, update func(*realtime.ItemContent)) {
	s.updateHistory(func(items []realtime.Item) []realtime.Item {
		idx := indexOf(items, itemID)
		if idx == -1 || contentIndex < 0 {
			return items
		}
		for len(items[idx].Content) <= contentIndex {
			items[idx].Content = append(items[idx].Content, realtime.ItemContent{})
		}
		update(&items[idx].Content[contentIndex])
		return items
	})
}

func (s *session) callTool(callID, name, arguments string) {
	ctx, span := tracer.Start(context.Background(), "call realtime tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	output, err := s.runTool(ctx, name, arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		output = fmt.Sprintf("Error: %v", err)
	}

	if err := s.send(ctx, newFunctionCallOutput(callID, output)); err != nil {
		if !errors.Is(err, realtime.ErrSessionClosed) {
			s.options.ErrorCallback(fmt.Errorf("failed to return tool output: %w", err))
		}
		return
	}
	if err := s.send(ctx, newResponseCreate()); err != nil && !errors.Is(err, realtime.ErrSessionClosed) {
		s.options.ErrorCallback(fmt.Errorf("failed to request response after tool call: %w", err))
	}
}

func (s *session) runTool(ctx context.Context, name, arguments string) (output string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("tool %q panicked: %v", name, recovered)
		}
	}()

	for _, tool := range s.options.Tools {
		if tool.Name == name && tool.Call != nil {
			return tool.Call(ctx, arguments)
		}
	}
	return "", fmt.Errorf("unknown tool %q", name)
}

func indexOf(items []realtime.Item, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(items, func(item realtime.Item) bool { return item.ID == id })
}

// mergeItem applies an updated record on top of an existing one, keeping
// streamed text the update does not carry yet.
func mergeItem(existing, update realtime.Item) realtime.Item {
	merged := update
	for i := range merged.Content {
		if i >= len(existing.Content) {
			break
		}
		if merged.Content[i].Text == nil {
			merged.Content[i].Text = existing.Content[i].Text
		}
		if merged.Content[i].Transcript == nil {
			merged.Content[i].Transcript = existing.Content[i].Transcript
		}
	}
	if len(merged.Content) < len(existing.Content) {
		merged.Content = append(merged.Content, existing.Content[len(merged.Content):]...)
	}
	return merged
}

func appendDelta(current *string, delta string) *string {
	value := delta
	if current != nil {
		value = *current + delta
	}
	return &value
}
