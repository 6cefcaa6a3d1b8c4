// Package transcript turns the backend's periodically replaced item list into
// a stable, append-only message history.
package transcript

import (
	"time"

	"github.com/koscakluka/ema-ui/core/realtime"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content is either TextContent or AudioContent.
type Content interface {
	isContent()
}

type TextContent struct {
	Text string
}

type AudioContent struct {
	// Transcript is nil while the backend has not transcribed the audio yet.
	Transcript *string
}

func (TextContent) isContent()  {}
func (AudioContent) isContent() {}

type Message struct {
	ID        string
	Role      Role
	Content   Content
	CreatedAt time.Time

	// Raw is the backend record the message was built from.
	Raw realtime.Item
}

// Text returns the readable text of the message: the literal text, the audio
// transcript, or an empty string for audio not yet transcribed.
func (m Message) Text() string {
	switch content := m.Content.(type) {
	case TextContent:
		return content.Text
	case AudioContent:
		if content.Transcript == nil {
			return ""
		}
		return *content.Transcript
	default:
		return ""
	}
}

// IsAudio reports whether the message carries audio content.
func (m Message) IsAudio() bool {
	_, ok := m.Content.(AudioContent)
	return ok
}
