package uiactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-ui/core/surface"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Execute runs the action's script against the surface. An action without a
// script succeeds with no value. Failures, panics included, are reported in
// the Result and never returned or propagated.
func (p *Pipeline) Execute(ctx context.Context, action UIAction) Result {
	if action.Code == "" {
		return Result{Success: true}
	}

	ctx, span := tracer.Start(ctx, "execute ui action", trace.WithAttributes(actionAttributes(action)...))
	defer span.End()

	if p.surface == nil {
		return p.fail(ctx, span, action, surface.ErrNoSurface)
	}

	if p.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.executionTimeout)
		defer cancel()
	}

	var value any
	run := panicSafeNamedWorker("action "+action.ID, func(ctx context.Context) error {
		var err error
		value, err = p.surface.Evaluate(ctx, action.Code)
		return err
	})
	if err := run(ctx); err != nil {
		return p.fail(ctx, span, action, err)
	}

	if p.executed != nil {
		p.executed.Add(ctx, 1)
	}
	if p.config.Debug {
		logger.DebugContext(ctx, "ui action executed", "id", action.ID, "kind", action.Kind, "value", value)
	}
	return Result{Success: true, Value: value}
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, action UIAction, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if p.failed != nil {
		p.failed.Add(ctx, 1)
	}
	if p.config.Debug {
		logger.DebugContext(ctx, "ui action failed", "id", action.ID, "error", err)
	}

	return Result{Success: false, Error: failureReason(err)}
}

// failureReason prefers the message raised inside the surface over the
// wrapping added on the way out.
func failureReason(err error) string {
	var evalErr *surface.EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the action timed out"
	}
	return err.Error()
}

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}

		return nil
	}
}
