package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-ui/core/surface"
)

type surfaceStub struct {
	mu       sync.Mutex
	html     string
	text     string
	htmlErr  error
	textErr  error
	captures atomic.Int32
}

func (s *surfaceStub) HTML(context.Context) (string, error) {
	s.captures.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, s.htmlErr
}

func (s *surfaceStub) Text(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.textErr
}

func (s *surfaceStub) Evaluate(context.Context, string) (any, error) { return nil, nil }

func prefixCompressor(received *CompressOptions) Compressor {
	return CompressorFunc(func(_ context.Context, content string, opts CompressOptions) (Result, error) {
		if received != nil {
			*received = opts
		}
		return Result{Text: "compressed:" + content}, nil
	})
}

func TestStoreKeepsTextVerbatim(t *testing.T) {
	cache := NewCache(WithCompressor(prefixCompressor(nil)))

	cache.Store("  <b>raw</b>  ")
	if got := cache.Current(); got != "  <b>raw</b>  " {
		t.Fatalf("expected verbatim text, got %q", got)
	}
}

func TestCaptureUsesCompressorWithOptions(t *testing.T) {
	received := CompressOptions{}
	options := CompressOptions{TokenBudget: 300, MaxIterations: 2, AssignIdentifiers: true}
	page := &surfaceStub{html: "<p>hi</p>", text: "hi"}
	cache := NewCache(WithSurface(page), WithCompressor(prefixCompressor(&received)), WithCompressOptions(options))

	got, err := cache.Refresh(context.Background())
	if err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}
	if got != "compressed:<p>hi</p>" || cache.Current() != got {
		t.Fatalf("expected compressed snapshot, got %q", got)
	}
	if received != options {
		t.Fatalf("expected compressor options %+v, got %+v", options, received)
	}
}

func TestCaptureFallsBackToRawText(t *testing.T) {
	failing := CompressorFunc(func(context.Context, string, CompressOptions) (Result, error) {
		return Result{}, errors.New("compressor unavailable")
	})
	page := &surfaceStub{html: "<p>hi</p>", text: "hi"}
	cache := NewCache(WithSurface(page), WithCompressor(failing))

	got, err := cache.Refresh(context.Background())
	if err != nil {
		t.Fatalf("expected fallback capture to succeed, got %v", err)
	}
	if got != "hi" {
		t.Fatalf("expected raw text fallback, got %q", got)
	}
}

func TestCaptureWithoutCompressorUsesRawText(t *testing.T) {
	page := &surfaceStub{html: "<p>hi</p>", text: "hi"}
	cache := NewCache(WithSurface(page))

	if got, _ := cache.Refresh(context.Background()); got != "hi" {
		t.Fatalf("expected raw text, got %q", got)
	}
}

func TestCaptureKeepsPreviousSnapshotWhenEverythingFails(t *testing.T) {
	page := &surfaceStub{htmlErr: errors.New("detached"), textErr: errors.New("detached")}
	cache := NewCache(WithSurface(page), WithCompressor(prefixCompressor(nil)))
	cache.Store("previous")

	got, err := cache.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected capture error")
	}
	if got != "previous" || cache.Current() != "previous" {
		t.Fatalf("expected previous snapshot to be kept, got %q", got)
	}
}

func TestRefreshWithoutSurface(t *testing.T) {
	cache := NewCache()

	if _, err := cache.Refresh(context.Background()); !errors.Is(err, surface.ErrNoSurface) {
		t.Fatalf("expected ErrNoSurface, got %v", err)
	}
}

func TestAutoUpdateIsIdempotent(t *testing.T) {
	page := &surfaceStub{html: "<p>tick</p>"}
	cache := NewCache(WithSurface(page), WithCompressor(prefixCompressor(nil)))

	if !cache.StartAutoUpdate(5 * time.Millisecond) {
		t.Fatalf("expected first start to arm the worker")
	}
	if cache.StartAutoUpdate(5 * time.Millisecond) {
		t.Fatalf("expected second start to be a no-op")
	}

	deadline := time.After(2 * time.Second)
	for page.captures.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for auto update captures")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !cache.StopAutoUpdate() {
		t.Fatalf("expected stop to disarm the worker")
	}
	if cache.StopAutoUpdate() {
		t.Fatalf("expected second stop to be a no-op")
	}

	captures := page.captures.Load()
	time.Sleep(30 * time.Millisecond)
	if got := page.captures.Load(); got != captures {
		t.Fatalf("expected no captures after stop, got %d more", got-captures)
	}
	if cache.Current() != "compressed:<p>tick</p>" {
		t.Fatalf("expected auto update to store snapshot, got %q", cache.Current())
	}
}
