package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-ui/core/events"
	"github.com/koscakluka/ema-ui/core/realtime"
	"github.com/koscakluka/ema-ui/core/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Connect opens a realtime session. Once connected it captures the surface,
// starts the auto-update worker and sends the greeting, in that order, as
// configured. Calling Connect while connected is a no-op.
//
// No retry is attempted; a failed Connect leaves the orchestrator in the
// error status until the caller connects again.
func (o *Orchestrator) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "connect")
	defer span.End()

	sessionID, err := o.beginSession()
	if err != nil {
		if errors.Is(err, errAlreadyConnected) {
			return nil
		}
		return err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	handle, err := o.client.Open(ctx, o.config.APIKey, o.sessionOptions(sessionID)...)
	if err != nil {
		err = fmt.Errorf("failed to open realtime session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if o.endSession(sessionID) {
			o.machine.Fail(err.Error())
			o.bus.Publish(events.NewError(err.Error()))
		}
		return err
	}

	if !o.attachHandle(sessionID, handle) {
		_ = handle.Close()
		return fmt.Errorf("connect aborted by disconnect: %w", ErrNotConnected)
	}

	if err := o.machine.Connected(); err != nil {
		// A disconnect ran between BeginConnect and Open.
		o.endSession(sessionID)
		_ = handle.Close()
		return fmt.Errorf("connect aborted: %w", err)
	}
	o.bus.Publish(events.NewConnected())

	// Subscribers may disconnect from inside the connected event.
	if !o.isActive(sessionID) {
		return fmt.Errorf("connect aborted by disconnect: %w", ErrNotConnected)
	}

	if o.config.UI.Enabled {
		if o.cache.HasSurface() {
			if _, err := o.cache.Refresh(ctx); err != nil && o.config.Debug {
				logger.DebugContext(ctx, "initial surface capture failed", "error", err)
			}
		}
		if !o.isActive(sessionID) {
			return fmt.Errorf("connect aborted by disconnect: %w", ErrNotConnected)
		}
		if o.config.UI.AutoUpdate {
			o.cache.StartAutoUpdate(o.config.UI.UpdateInterval)
			// Disconnect may have stopped the cache just before the start.
			if !o.isActive(sessionID) {
				o.cache.StopAutoUpdate()
				return fmt.Errorf("connect aborted by disconnect: %w", ErrNotConnected)
			}
		}
	}

	if o.config.AutoGreet {
		if !o.isActive(sessionID) {
			return fmt.Errorf("connect aborted by disconnect: %w", ErrNotConnected)
		}
		if err := handle.Send(ctx, o.config.GreetingMessage(o.cache.Current())); err != nil {
			o.recordRuntimeError(sessionID, fmt.Errorf("failed to send greeting: %w", err))
		}
	}

	return nil
}

var errAlreadyConnected = errors.New("already connected")

func (o *Orchestrator) beginSession() (string, error) {
	o.mu.Lock()
	destroyed := o.destroyed
	o.mu.Unlock()
	if destroyed {
		return "", ErrDestroyed
	}

	if err := o.machine.BeginConnect(); err != nil {
		switch o.machine.Status() {
		case state.StatusConnected:
			return "", errAlreadyConnected
		case state.StatusConnecting:
			return "", ErrAlreadyConnecting
		}
		return "", fmt.Errorf("failed to begin connect: %w", err)
	}

	sessionID := uuid.NewString()
	o.mu.Lock()
	o.sessionID = sessionID
	o.mu.Unlock()
	return sessionID, nil
}

// Disconnect closes the session and clears the history. It is safe to call
// at any time and does nothing when already idle.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	_, span := tracer.Start(ctx, "disconnect")
	defer span.End()

	o.mu.Lock()
	handle := o.handle
	o.handle = nil
	o.sessionID = ""
	o.mu.Unlock()

	o.cache.StopAutoUpdate()

	var closeErr error
	if handle != nil {
		if err := handle.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close realtime session: %w", err)
			span.RecordError(closeErr)
			if o.config.Debug {
				logger.DebugContext(ctx, "closing realtime session failed", "error", err)
			}
		}
	}

	o.reconciler.Reset()
	if o.machine.Reset() || handle != nil {
		o.bus.Publish(events.NewDisconnected())
		o.bus.Publish(events.NewHistoryChanged(nil))
	}
	return closeErr
}

// Interrupt cancels the agent's current response.
func (o *Orchestrator) Interrupt(ctx context.Context) error {
	handle, err := o.activeHandle()
	if err != nil {
		return err
	}
	if err := handle.Interrupt(ctx); err != nil {
		return fmt.Errorf("failed to interrupt: %w", err)
	}
	return nil
}

// SendMessage sends text to the agent as a user message.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) error {
	handle, err := o.activeHandle()
	if err != nil {
		return err
	}
	if err := handle.Send(ctx, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Toggle disconnects when connected or connecting, and connects otherwise.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	switch o.machine.Status() {
	case state.StatusConnected, state.StatusConnecting:
		return o.Disconnect(ctx)
	default:
		return o.Connect(ctx)
	}
}

// Destroy disconnects and drops every subscription. The orchestrator cannot
// connect again afterwards.
func (o *Orchestrator) Destroy(ctx context.Context) error {
	err := o.Disconnect(ctx)

	o.mu.Lock()
	o.destroyed = true
	o.mu.Unlock()

	o.bus.Clear()
	return err
}

func (o *Orchestrator) sessionOptions(sessionID string) []realtime.SessionOption {
	return []realtime.SessionOption{
		realtime.WithModel(o.config.Model),
		realtime.WithVoice(o.config.Voice),
		realtime.WithInstructions(o.config.Instructions()),
		realtime.WithTranscription(realtime.TranscriptionOptions{
			Model:    o.config.TranscriptionModel,
			Language: o.config.TranscriptionLanguage(),
		}),
		realtime.WithTools(o.sessionTools(sessionID)...),
		realtime.WithHistoryCallback(func(items []realtime.Item) { o.handleHistory(sessionID, items) }),
		realtime.WithErrorCallback(func(err error) { o.recordRuntimeError(sessionID, err) }),
		realtime.WithAgentStartCallback(func() { o.handleSignal(sessionID, state.SignalAgentStart, events.NewAgentStarted()) }),
		realtime.WithAgentEndCallback(func() { o.handleSignal(sessionID, state.SignalAgentEnd, events.NewAgentEnded()) }),
		realtime.WithAudioStartCallback(func() { o.handleSignal(sessionID, state.SignalAudioStart, events.NewAudioStarted()) }),
		realtime.WithAudioEndCallback(func() { o.handleSignal(sessionID, state.SignalAudioEnd, events.NewAudioEnded()) }),
		realtime.WithUserAudioCallback(func() { o.handleSignal(sessionID, state.SignalUserAudio, events.NewUserAudio()) }),
	}
}

// sessionTools binds the agent's tools to sessionID. Calls that arrive after
// the session ended do nothing.
func (o *Orchestrator) sessionTools(sessionID string) []realtime.Tool {
	tools := o.pipeline.Tools()
	for i := range tools {
		call := tools[i].Call
		tools[i].Call = func(ctx context.Context, arguments string) (string, error) {
			if !o.isActive(sessionID) {
				return "", fmt.Errorf("tool call for ended session: %w", ErrNotConnected)
			}
			return call(ctx, arguments)
		}
	}
	return tools
}
