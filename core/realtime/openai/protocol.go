package openai

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-ui/core/realtime"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Server event types handled by the session. Both the beta and the GA names
// are listed where they differ.
const (
	eventError = "error"

	eventItemCreated = "conversation.item.created"
	eventItemAdded   = "conversation.item.added"
	eventItemDone    = "conversation.item.done"
	eventItemDeleted = "conversation.item.deleted"

	eventInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"

	eventOutputItemAdded  = "response.output_item.added"
	eventOutputItemDone   = "response.output_item.done"
	eventContentPartAdded = "response.content_part.added"

	eventAudioTranscriptDelta       = "response.audio_transcript.delta"
	eventAudioTranscriptDone        = "response.audio_transcript.done"
	eventOutputAudioTranscriptDelta = "response.output_audio_transcript.delta"
	eventOutputAudioTranscriptDone  = "response.output_audio_transcript.done"

	eventTextDelta       = "response.text.delta"
	eventTextDone        = "response.text.done"
	eventOutputTextDelta = "response.output_text.delta"
	eventOutputTextDone  = "response.output_text.done"

	eventAudioDelta       = "response.audio.delta"
	eventAudioDone        = "response.audio.done"
	eventOutputAudioDelta = "response.output_audio.delta"
	eventOutputAudioDone  = "response.output_audio.done"

	eventResponseCreated = "response.created"
	eventResponseDone    = "response.done"

	eventFunctionCallArgumentsDone = "response.function_call_arguments.done"

	eventSpeechStarted = "input_audio_buffer.speech_started"
)

type serverEvent struct {
	Type         string          `json:"type"`
	Error        json.RawMessage `json:"error,omitempty"`
	Item         json.RawMessage `json:"item,omitempty"`
	ItemID       string          `json:"item_id,omitempty"`
	ContentIndex int             `json:"content_index,omitempty"`
	Part         json.RawMessage `json:"part,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	Transcript   *string         `json:"transcript,omitempty"`
	Text         *string         `json:"text,omitempty"`
	Response     *struct {
		ID string `json:"id"`
	} `json:"response,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

type clientEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Session *sessionConfig    `json:"session,omitempty"`
	Item    *conversationItem `json:"item,omitempty"`
}

func newClientEvent(eventType string) clientEvent {
	return clientEvent{EventID: newEventID(), Type: eventType}
}

func newEventID() string {
	id, err := nanoid.New()
	if err != nil {
		return "evt_local"
	}
	return "evt_" + id
}

type sessionConfig struct {
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection       `json:"turn_detection,omitempty"`
	Tools                   []tool               `json:"tools,omitempty"`
	ToolChoice              string               `json:"tool_choice,omitempty"`
}

type transcriptionConfig struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type tool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
	Content []itemContent `json:"content,omitempty"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func newSessionUpdate(options realtime.SessionOptions) clientEvent {
	var tools []tool
	if options.Tools != nil {
		copier.Copy(&tools, options.Tools)
		for i := range tools {
			tools[i].Type = "function"
		}
	}

	config := &sessionConfig{
		Modalities:    []string{"text", "audio"},
		Instructions:  options.Instructions,
		Voice:         options.Voice,
		TurnDetection: &turnDetection{Type: "server_vad"},
		Tools:         tools,
	}
	if len(tools) > 0 {
		config.ToolChoice = "auto"
	}
	if options.Transcription.Model != "" {
		config.InputAudioTranscription = &transcriptionConfig{
			Model:    options.Transcription.Model,
			Language: options.Transcription.Language,
		}
	}

	event := newClientEvent("session.update")
	event.Session = config
	return event
}

func newUserMessage(text string) clientEvent {
	event := newClientEvent("conversation.item.create")
	event.Item = &conversationItem{
		Type:    string(realtime.ItemTypeMessage),
		Role:    "user",
		Content: []itemContent{{Type: string(realtime.ContentTypeInputText), Text: text}},
	}
	return event
}

func newFunctionCallOutput(callID, output string) clientEvent {
	event := newClientEvent("conversation.item.create")
	event.Item = &conversationItem{
		Type:   string(realtime.ItemTypeFunctionCallOutput),
		CallID: callID,
		Output: output,
	}
	return event
}

func newResponseCreate() clientEvent {
	return newClientEvent("response.create")
}

func newResponseCancel() clientEvent {
	return newClientEvent("response.cancel")
}
