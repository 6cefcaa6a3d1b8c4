// Package state tracks the connection lifecycle and the conversation turn
// derived from it.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-ui/core/transcript"
)

var ErrInvalidTransition = errors.New("invalid state transition")

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
)

type ConversationState string

const (
	ConversationIdle         ConversationState = "idle"
	ConversationAISpeaking   ConversationState = "ai_speaking"
	ConversationUserTurn     ConversationState = "user_turn"
	ConversationUserSpeaking ConversationState = "user_speaking"
)

// Signal is a turn boundary reported by the realtime session.
type Signal string

const (
	SignalAgentStart Signal = "agent_start"
	SignalAgentEnd   Signal = "agent_end"
	SignalAudioStart Signal = "audio_start"
	SignalAudioEnd   Signal = "audio_end"
	SignalUserAudio  Signal = "user_audio"
)

// Policy decides which speaking boundaries drive the conversation state.
type Policy int

const (
	// PolicyAgentBoundaries follows the coarse agent start/end signals.
	PolicyAgentBoundaries Policy = iota
	// PolicyAudioPlayback follows the audio playback start/stop signals.
	PolicyAudioPlayback
)

// SessionState is a point-in-time view of the whole session.
type SessionState struct {
	Status            Status
	ConversationState ConversationState
	Error             string
	History           []transcript.Message
}

// Observer is notified after every change, outside the machine's lock.
type Observer interface {
	StatusChanged(from, to Status)
	ConversationStateChanged(from, to ConversationState)
}

type change struct {
	statusFrom, statusTo             Status
	conversationFrom, conversationTo ConversationState
}

type Machine struct {
	mu           sync.Mutex
	status       Status
	conversation ConversationState
	err          string

	policy   Policy
	observer Observer
}

func NewMachine(policy Policy, observer Observer) *Machine {
	return &Machine{
		status:       StatusIdle,
		conversation: ConversationIdle,
		policy:       policy,
		observer:     observer,
	}
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) ConversationState() ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversation
}

func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// BeginConnect moves idle or error to connecting and clears the stored error.
func (m *Machine) BeginConnect() error {
	m.mu.Lock()
	if m.status != StatusIdle && m.status != StatusError {
		status := m.status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot connect while %s", ErrInvalidTransition, status)
	}
	m.err = ""
	c := m.transition(StatusConnecting)
	m.mu.Unlock()

	m.notify(c)
	return nil
}

// Connected completes a connection attempt.
func (m *Machine) Connected() error {
	m.mu.Lock()
	if m.status != StatusConnecting {
		status := m.status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot complete connection while %s", ErrInvalidTransition, status)
	}
	c := m.transition(StatusConnected)
	m.mu.Unlock()

	m.notify(c)
	return nil
}

// Fail records reason and moves to the error status.
func (m *Machine) Fail(reason string) {
	m.mu.Lock()
	m.err = reason
	c := m.transition(StatusError)
	m.mu.Unlock()

	m.notify(c)
}

// RecordError stores reason without changing the status.
func (m *Machine) RecordError(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = reason
}

// Reset moves to idle. It reports whether anything changed.
func (m *Machine) Reset() bool {
	m.mu.Lock()
	c := m.transition(StatusIdle)
	m.mu.Unlock()

	m.notify(c)
	return c.statusFrom != c.statusTo || c.conversationFrom != c.conversationTo
}

// Apply feeds a turn signal into the machine. Signals are ignored unless the
// session is connected or the active policy does not follow them. It reports
// whether the conversation state changed.
func (m *Machine) Apply(signal Signal) bool {
	m.mu.Lock()
	if m.status != StatusConnected {
		m.mu.Unlock()
		return false
	}

	next, ok := m.next(signal)
	if !ok || next == m.conversation {
		m.mu.Unlock()
		return false
	}

	c := change{statusFrom: m.status, statusTo: m.status, conversationFrom: m.conversation, conversationTo: next}
	m.conversation = next
	m.mu.Unlock()

	m.notify(c)
	return true
}

func (m *Machine) next(signal Signal) (ConversationState, bool) {
	start, end := SignalAgentStart, SignalAgentEnd
	if m.policy == PolicyAudioPlayback {
		start, end = SignalAudioStart, SignalAudioEnd
	}

	switch signal {
	case start:
		return ConversationAISpeaking, true
	case end:
		// A user who took the floor mid-response keeps it.
		if m.conversation == ConversationUserSpeaking {
			return m.conversation, false
		}
		return ConversationUserTurn, true
	case SignalUserAudio:
		return ConversationUserSpeaking, true
	default:
		return m.conversation, false
	}
}

// transition must be called with mu held.
func (m *Machine) transition(to Status) change {
	c := change{statusFrom: m.status, statusTo: to, conversationFrom: m.conversation, conversationTo: m.conversation}
	m.status = to
	if to != StatusConnected {
		c.conversationTo = ConversationIdle
		m.conversation = ConversationIdle
	}
	return c
}

func (m *Machine) notify(c change) {
	if m.observer == nil {
		return
	}
	if c.statusFrom != c.statusTo {
		m.observer.StatusChanged(c.statusFrom, c.statusTo)
	}
	if c.conversationFrom != c.conversationTo {
		m.observer.ConversationStateChanged(c.conversationFrom, c.conversationTo)
	}
}
