// Package orchestration connects a realtime voice agent to an interactive
// surface.
//
// An Orchestrator owns one realtime session at a time. It tracks the
// connection and the conversation turn, rebuilds the transcript from the
// snapshots the backend sends, keeps a compact snapshot of the surface for the
// agent and runs the UI actions the agent asks for. Everything observable is
// published as typed events; see On and Once.
package orchestration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-ui/core/config"
	"github.com/koscakluka/ema-ui/core/eventbus"
	"github.com/koscakluka/ema-ui/core/events"
	"github.com/koscakluka/ema-ui/core/realtime"
	"github.com/koscakluka/ema-ui/core/snapshot"
	"github.com/koscakluka/ema-ui/core/snapshot/htmlcompress"
	"github.com/koscakluka/ema-ui/core/state"
	"github.com/koscakluka/ema-ui/core/transcript"
	"github.com/koscakluka/ema-ui/core/uiactions"
)

var (
	ErrMissingClient     = errors.New("realtime client is required")
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnecting = errors.New("connection already in progress")
	ErrDestroyed         = errors.New("orchestrator destroyed")
)

type Orchestrator struct {
	config config.Effective
	client realtime.Client

	bus        *eventbus.Bus
	machine    *state.Machine
	reconciler *transcript.Reconciler
	cache      *snapshot.Cache
	pipeline   *uiactions.Pipeline

	mu        sync.Mutex
	handle    realtime.Handle
	sessionID string
	destroyed bool

	options orchestratorOptions
}

// New validates cfg and builds an orchestrator around client. It fails when
// the credential or the agent persona is missing.
func New(cfg config.Config, client realtime.Client, opts ...Option) (*Orchestrator, error) {
	effective, err := config.Normalize(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if client == nil {
		return nil, ErrMissingClient
	}

	options := orchestratorOptions{
		policy:     policyFor(effective.Profile),
		compressor: htmlcompress.New(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	o := &Orchestrator{
		config:     effective,
		client:     client,
		reconciler: transcript.NewReconciler(),
		options:    options,
	}

	busOptions := append([]eventbus.Option{eventbus.WithDebug(effective.Debug)}, options.busOptions...)
	o.bus = eventbus.New(busOptions...)
	o.machine = state.NewMachine(options.policy, o)

	cacheOptions := []snapshot.Option{
		snapshot.WithCompressor(options.compressor),
		snapshot.WithCompressOptions(snapshot.CompressOptions{
			TokenBudget:       effective.UI.Compression.TokenBudget,
			MaxIterations:     effective.UI.Compression.MaxIterations,
			AssignIdentifiers: effective.UI.Compression.AssignIdentifiers,
			Debug:             effective.Debug,
		}),
	}
	if effective.UI.Surface != nil {
		cacheOptions = append(cacheOptions, snapshot.WithSurface(effective.UI.Surface))
	}
	o.cache = snapshot.NewCache(cacheOptions...)

	o.pipeline = uiactions.NewPipeline(effective, o.cache, func(action uiactions.UIAction) {
		o.bus.Publish(events.NewActionRequested(action))
	}, options.actionOptions...)

	return o, nil
}

func policyFor(profile config.Profile) state.Policy {
	if profile == config.ProfileInspect {
		return state.PolicyAudioPlayback
	}
	return state.PolicyAgentBoundaries
}

// Config returns the effective configuration. The returned value is a copy.
func (o *Orchestrator) Config() config.Effective { return o.config }

// State returns the current status, turn, error and history.
func (o *Orchestrator) State() state.SessionState {
	return state.SessionState{
		Status:            o.machine.Status(),
		ConversationState: o.machine.ConversationState(),
		Error:             o.machine.Err(),
		History:           o.reconciler.History(),
	}
}

func (o *Orchestrator) Status() state.Status { return o.machine.Status() }

func (o *Orchestrator) ConversationState() state.ConversationState {
	return o.machine.ConversationState()
}

// Err returns the last stored error text, or an empty string.
func (o *Orchestrator) Err() string { return o.machine.Err() }

func (o *Orchestrator) History() []transcript.Message { return o.reconciler.History() }

func (o *Orchestrator) IsConnected() bool { return o.machine.Status() == state.StatusConnected }

func (o *Orchestrator) IsConnecting() bool { return o.machine.Status() == state.StatusConnecting }

// Snapshot returns the current surface snapshot.
func (o *Orchestrator) Snapshot() string { return o.cache.Current() }

// Tools returns the tools exposed to the agent on connect.
func (o *Orchestrator) Tools() []realtime.Tool { return o.pipeline.Tools() }
