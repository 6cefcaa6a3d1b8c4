package orchestration

import (
	"context"

	"github.com/koscakluka/ema-ui/core/surface"
	"github.com/koscakluka/ema-ui/core/uiactions"
)

// UpdateSurfaceText replaces the snapshot with text, verbatim.
func (o *Orchestrator) UpdateSurfaceText(text string) string {
	return o.cache.Store(text)
}

// UpdateSurface captures s once and stores the compressed result as the
// snapshot. The configured surface used by RefreshSurface is unchanged.
func (o *Orchestrator) UpdateSurface(ctx context.Context, s surface.Surface) (string, error) {
	return o.cache.Capture(ctx, s)
}

// RefreshSurface captures the configured surface.
func (o *Orchestrator) RefreshSurface(ctx context.Context) (string, error) {
	return o.cache.Refresh(ctx)
}

// StartAutoUpdate refreshes the snapshot at the configured interval. It
// reports false if auto-update was already running.
func (o *Orchestrator) StartAutoUpdate() bool {
	return o.cache.StartAutoUpdate(o.config.UI.UpdateInterval)
}

func (o *Orchestrator) StopAutoUpdate() bool {
	return o.cache.StopAutoUpdate()
}

// ExecuteAction runs an action against the surface. Hosts that disable
// auto-execution call it after inspecting the published action.
func (o *Orchestrator) ExecuteAction(ctx context.Context, action uiactions.UIAction) uiactions.Result {
	return o.pipeline.Execute(ctx, action)
}
