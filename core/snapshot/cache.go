// Package snapshot holds the last captured state of the interactive surface.
//
// Only the latest capture is kept. Captures may come from a host call, a tool
// call or the auto-update worker; whichever finishes last wins.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-ui/core/surface"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const defaultUpdateInterval = 5 * time.Second

type Cache struct {
	mu      sync.RWMutex
	current string

	surface    surface.Surface
	compressor Compressor
	options    CompressOptions

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}

	fallbacks metric.Int64Counter
}

type Option func(*Cache)

func WithSurface(s surface.Surface) Option {
	return func(c *Cache) { c.surface = s }
}

func WithCompressor(compressor Compressor) Option {
	return func(c *Cache) { c.compressor = compressor }
}

func WithCompressOptions(opts CompressOptions) Option {
	return func(c *Cache) { c.options = opts }
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}

	counter, err := meter.Int64Counter("ema_ui.surface.capture_fallbacks",
		metric.WithDescription("Surface captures that fell back to uncompressed text"))
	if err == nil {
		c.fallbacks = counter
	}
	return c
}

// Current returns the last captured snapshot, or an empty string.
func (c *Cache) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Store replaces the snapshot with text, verbatim.
func (c *Cache) Store(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = text
	return text
}

// HasSurface reports whether a live surface is configured for Refresh.
func (c *Cache) HasSurface() bool {
	return c.surface != nil
}

// Refresh captures the configured surface.
func (c *Cache) Refresh(ctx context.Context) (string, error) {
	if c.surface == nil {
		return c.Current(), surface.ErrNoSurface
	}
	return c.Capture(ctx, c.surface)
}

// Capture compresses the current content of s and stores the result. If the
// compressor is missing or fails, the uncompressed text of s is stored
// instead. The previous snapshot is kept only if both captures fail.
func (c *Cache) Capture(ctx context.Context, s surface.Surface) (string, error) {
	ctx, span := tracer.Start(ctx, "capture surface")
	defer span.End()

	text, err := c.compress(ctx, s)
	if err != nil {
		if c.options.Debug {
			logger.DebugContext(ctx, "surface compression failed, falling back to raw text", "error", err)
		}
		if c.fallbacks != nil {
			c.fallbacks.Add(ctx, 1)
		}

		text, err = s.Text(ctx)
		if err != nil {
			err = fmt.Errorf("failed to capture surface: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return c.Current(), err
		}
	}

	return c.Store(text), nil
}

func (c *Cache) compress(ctx context.Context, s surface.Surface) (string, error) {
	if c.compressor == nil {
		return "", fmt.Errorf("no compressor configured")
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read surface markup: %w", err)
	}

	result, err := c.compressor.Compress(ctx, html, c.options)
	if err != nil {
		return "", fmt.Errorf("failed to compress surface: %w", err)
	}
	return result.Text, nil
}

// StartAutoUpdate refreshes the snapshot every interval until
// StopAutoUpdate is called. It reports false if the worker was already
// running.
func (c *Cache) StartAutoUpdate(interval time.Duration) bool {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()

	if c.autoCancel != nil {
		return false
	}
	if interval <= 0 {
		interval = defaultUpdateInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.autoCancel = cancel
	c.autoDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Refresh(ctx); err != nil && c.options.Debug {
					logger.DebugContext(ctx, "auto update capture failed", "error", err)
				}
			}
		}
	}()
	return true
}

// StopAutoUpdate stops the worker and waits for it to exit. It reports false
// if the worker was not running.
func (c *Cache) StopAutoUpdate() bool {
	c.autoMu.Lock()
	cancel, done := c.autoCancel, c.autoDone
	c.autoCancel, c.autoDone = nil, nil
	c.autoMu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (c *Cache) AutoUpdating() bool {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	return c.autoCancel != nil
}
