package orchestration

import (
	"github.com/koscakluka/ema-ui/core/eventbus"
	"github.com/koscakluka/ema-ui/core/snapshot"
	"github.com/koscakluka/ema-ui/core/state"
	"github.com/koscakluka/ema-ui/core/uiactions"
)

type orchestratorOptions struct {
	policy        state.Policy
	compressor    snapshot.Compressor
	busOptions    []eventbus.Option
	actionOptions []uiactions.Option
}

type Option func(*orchestratorOptions)

// WithTurnPolicy overrides which speaking boundaries drive the conversation
// state. By default the direct profile follows agent boundaries and the
// inspect profile follows audio playback.
func WithTurnPolicy(policy state.Policy) Option {
	return func(o *orchestratorOptions) {
		o.policy = policy
	}
}

// WithCompressor replaces the default HTML compressor used for surface
// snapshots.
func WithCompressor(compressor snapshot.Compressor) Option {
	return func(o *orchestratorOptions) {
		o.compressor = compressor
	}
}

func WithEventBusOptions(opts ...eventbus.Option) Option {
	return func(o *orchestratorOptions) {
		o.busOptions = append(o.busOptions, opts...)
	}
}

func WithActionOptions(opts ...uiactions.Option) Option {
	return func(o *orchestratorOptions) {
		o.actionOptions = append(o.actionOptions, opts...)
	}
}
