// Package realtime defines the contract between the orchestrator and a
// continuous bidirectional conversation backend.
//
// A Client opens a session and returns a Handle. Everything the backend
// produces afterwards (transcript snapshots, turn boundaries, errors, tool
// calls) is delivered through the callbacks configured with SessionOption
// values.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ErrSessionClosed is returned by Handle methods used after Close.
var ErrSessionClosed = errors.New("realtime session closed")

type Client interface {
	Open(ctx context.Context, credential string, opts ...SessionOption) (Handle, error)
}

type Handle interface {
	Send(ctx context.Context, text string) error
	Interrupt(ctx context.Context) error
	Close() error
}

// Tool is a host capability the remote agent can invoke by name.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	// Call receives the raw JSON arguments produced by the agent and returns
	// the text handed back to it as the tool output.
	Call func(ctx context.Context, arguments string) (string, error)
}

type ItemType string

const (
	ItemTypeMessage            ItemType = "message"
	ItemTypeFunctionCall       ItemType = "function_call"
	ItemTypeFunctionCallOutput ItemType = "function_call_output"
)

type ContentType string

const (
	ContentTypeText        ContentType = "text"
	ContentTypeInputText   ContentType = "input_text"
	ContentTypeOutputText  ContentType = "output_text"
	ContentTypeAudio       ContentType = "audio"
	ContentTypeInputAudio  ContentType = "input_audio"
	ContentTypeOutputAudio ContentType = "output_audio"
)

// Item is one raw conversation record as reported by the backend.
type Item struct {
	ID      string        `json:"id,omitempty"`
	Type    ItemType      `json:"type"`
	Role    string        `json:"role,omitempty"`
	Status  string        `json:"status,omitempty"`
	Content []ItemContent `json:"content,omitempty"`

	// Raw is the backend's original encoding of the item, if it had one.
	Raw json.RawMessage `json:"-"`
}

type ItemContent struct {
	Type       ContentType `json:"type"`
	Text       *string     `json:"text,omitempty"`
	Transcript *string     `json:"transcript,omitempty"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	clone := i
	if i.Content != nil {
		clone.Content = make([]ItemContent, len(i.Content))
		for idx, content := range i.Content {
			clone.Content[idx] = ItemContent{
				Type:       content.Type,
				Text:       clonePtr(content.Text),
				Transcript: clonePtr(content.Transcript),
			}
		}
	}
	if i.Raw != nil {
		clone.Raw = append(json.RawMessage(nil), i.Raw...)
	}
	return clone
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}

// NormalizeError turns whatever a backend reports as an error into a Go error
// with a readable message.
func NormalizeError(v any) error {
	switch typed := v.(type) {
	case nil:
		return errors.New("unknown realtime error")
	case error:
		return typed
	case string:
		return errors.New(typed)
	case fmt.Stringer:
		return errors.New(typed.String())
	case map[string]any:
		if message, ok := typed["message"].(string); ok && message != "" {
			return errors.New(message)
		}
		if nested, ok := typed["error"]; ok {
			return NormalizeError(nested)
		}
	}

	if encoded, err := json.Marshal(v); err == nil {
		return errors.New(string(encoded))
	}
	return fmt.Errorf("%v", v)
}
