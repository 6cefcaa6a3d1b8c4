package uiactions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-ui/core/config"
	"github.com/koscakluka/ema-ui/core/realtime"
	"github.com/koscakluka/ema-ui/core/surface"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	ActionToolName   = "perform_action"
	DescribeToolName = "describe_surface"

	defaultExecutionTimeout = 10 * time.Second
)

// Capturer is the snapshot source used to show the agent the surface.
type Capturer interface {
	Refresh(ctx context.Context) (string, error)
	Current() string
}

type Pipeline struct {
	config   config.Effective
	capturer Capturer
	surface  surface.Surface
	onAction func(UIAction)

	executionTimeout time.Duration
	now              func() time.Time
	lastID           atomic.Int64

	executed metric.Int64Counter
	failed   metric.Int64Counter
}

type Option func(*Pipeline)

// WithExecutionTimeout bounds how long a single action may run. Zero or a
// negative value disables the bound.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) { p.executionTimeout = timeout }
}

// WithSurface overrides the surface actions run against. By default the
// configured UI surface is used.
func WithSurface(s surface.Surface) Option {
	return func(p *Pipeline) { p.surface = s }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline. onAction is called for every action the
// agent requests, before it is executed.
func NewPipeline(cfg config.Effective, capturer Capturer, onAction func(UIAction), opts ...Option) *Pipeline {
	p := &Pipeline{
		config:           cfg,
		capturer:         capturer,
		surface:          cfg.UI.Surface,
		onAction:         onAction,
		executionTimeout: defaultExecutionTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if counter, err := meter.Int64Counter("ema_ui.actions.executed",
		metric.WithDescription("UI actions executed against the surface")); err == nil {
		p.executed = counter
	}
	if counter, err := meter.Int64Counter("ema_ui.actions.failed",
		metric.WithDescription("UI actions whose execution failed")); err == nil {
		p.failed = counter
	}
	return p
}

type actionParameters struct {
	OutputText        string `json:"outputText" jsonschema:"required,description=What you say to the user about the action"`
	OutputCode        string `json:"outputCode,omitempty" jsonschema:"description=JavaScript run in the page with document and window in scope. The value of a return statement is reported back"`
	ActionDescription string `json:"actionDescription,omitempty" jsonschema:"description=Short human readable summary of the action"`
	TargetElement     string `json:"targetElement,omitempty" jsonschema:"description=Identifier of the element acted on such as e12"`
	ActionType        Kind   `json:"actionType,omitempty" jsonschema:"enum=click,enum=type,enum=scroll,enum=focus,enum=hover,enum=select,enum=navigate,enum=read,enum=other"`
}

type describeParameters struct{}

// Tools returns the tools exposed to the agent. It is empty when the UI is
// disabled.
func (p *Pipeline) Tools() []realtime.Tool {
	if !p.config.UI.Enabled {
		return nil
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	tools := []realtime.Tool{}
	if p.config.Profile == config.ProfileInspect {
		tools = append(tools, realtime.Tool{
			Name:        DescribeToolName,
			Description: "Capture the current state of the user's screen. Call it before acting.",
			Parameters:  reflector.Reflect(&describeParameters{}),
			Call:        p.describe,
		})
	}
	tools = append(tools, realtime.Tool{
		Name:        ActionToolName,
		Description: "Explain an action to the user and optionally perform it on their screen.",
		Parameters:  reflector.Reflect(&actionParameters{}),
		Call:        p.perform,
	})
	return tools
}

func (p *Pipeline) describe(ctx context.Context, _ string) (string, error) {
	snapshot, err := p.capturer.Refresh(ctx)
	if err != nil && p.config.Debug {
		logger.DebugContext(ctx, "surface capture for describe failed", "error", err)
	}
	if snapshot == "" {
		return "The screen is empty or could not be captured.", nil
	}
	return snapshot, nil
}

func (p *Pipeline) perform(ctx context.Context, arguments string) (string, error) {
	var params actionParameters
	if err := json.Unmarshal([]byte(arguments), &params); err != nil {
		return "", fmt.Errorf("failed to parse action arguments: %w", err)
	}

	inspect := p.config.Profile == config.ProfileInspect
	if inspect {
		p.refresh(ctx)
	}

	action := p.newAction(params)
	if p.onAction != nil {
		p.onAction(action)
	}

	if !p.config.AutoExecuteActions || action.Code == "" {
		return action.Text, nil
	}

	result := p.Execute(ctx, action)
	if !result.Success {
		return fmt.Sprintf("%s\n\n(The action failed: %s)", action.Text, result.Error), nil
	}
	if !inspect {
		return action.Text, nil
	}

	snapshot := p.refresh(ctx)
	if snapshot == "" {
		return action.Text, nil
	}
	return action.Text + "\n\n" + config.ReferenceContext(snapshot), nil
}

func (p *Pipeline) refresh(ctx context.Context) string {
	snapshot, err := p.capturer.Refresh(ctx)
	if err != nil && p.config.Debug {
		logger.DebugContext(ctx, "surface capture failed", "error", err)
	}
	return snapshot
}

// newAction builds an action with a fresh identity. Unknown kinds are
// recorded as KindOther.
func (p *Pipeline) newAction(params actionParameters) UIAction {
	kind := params.ActionType
	if kind != "" && !kind.Valid() {
		kind = KindOther
	}

	return UIAction{
		ID:          fmt.Sprintf("action_%d", p.lastID.Add(1)),
		Text:        params.OutputText,
		Code:        params.OutputCode,
		Description: params.ActionDescription,
		Target:      params.TargetElement,
		Kind:        kind,
		CreatedAt:   p.now(),
	}
}

func actionAttributes(action UIAction) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("action.id", action.ID),
		attribute.String("action.kind", string(action.Kind)),
		attribute.String("action.target", action.Target),
	}
}
