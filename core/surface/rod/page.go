// Package rod adapts a go-rod browser page into an interactive surface.
package rod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/koscakluka/ema-ui/core/surface"
)

var _ surface.Surface = (*Page)(nil)

// evaluateWrapper runs the agent's instructions as the body of an async
// function bound to the document. Exceptions are caught inside the page and
// returned as data so that a failing script never leaves a pending promise or
// an unhandled rejection behind.
const evaluateWrapper = `async (code) => {
	try {
		const AsyncFunction = Object.getPrototypeOf(async function () {}).constructor;
		const run = new AsyncFunction("document", "window", code);
		const value = await run.call(document, document, window);
		return { ok: true, value: value === undefined ? null : value };
	} catch (err) {
		return { ok: false, error: String((err && err.message) || err) };
	}
}`

// stampScript gives every interactive element without an identifier the next
// free one, so that identifiers in a snapshot resolve in the live page.
const stampScript = `(selector, attribute) => {
	const used = new Set();
	document.querySelectorAll("[" + attribute + "]").forEach((el) => used.add(el.getAttribute(attribute)));
	let next = 0;
	let stamped = 0;
	document.querySelectorAll(selector).forEach((el) => {
		if (el.hasAttribute(attribute)) return;
		let id;
		do { next++; id = "e" + next; } while (used.has(id));
		used.add(id);
		el.setAttribute(attribute, id);
		stamped++;
	});
	return stamped;
}`

const textScript = `() => document.body ? document.body.innerText : document.documentElement.innerText`

type Page struct {
	page *rod.Page

	// WaitStable is how long the DOM must be quiet before a capture. Zero
	// skips the wait.
	WaitStable time.Duration
	// StampIdentifiers writes identifiers into the live page before every
	// HTML capture.
	StampIdentifiers bool
}

func NewPage(page *rod.Page) *Page {
	return &Page{page: page, WaitStable: 300 * time.Millisecond, StampIdentifiers: true}
}

// Launch starts a headless browser and opens url in a new page.
func Launch(ctx context.Context, url string) (*Page, func(), error) {
	path, _ := launcher.LookPath()
	controlURL, err := launcher.New().Bin(path).Headless(true).Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("failed waiting for load: %w", err)
	}

	return NewPage(page), func() { _ = browser.Close() }, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	page := p.page.Context(ctx)
	p.waitStable(page)

	if p.StampIdentifiers {
		if _, err := page.Eval(stampScript, surface.InteractiveSelector, surface.IdentifierAttribute); err != nil {
			return "", fmt.Errorf("failed to stamp identifiers: %w", err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (p *Page) Text(ctx context.Context) (string, error) {
	result, err := p.page.Context(ctx).Eval(textScript)
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return result.Value.Str(), nil
}

func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	result, err := p.page.Context(ctx).Eval(evaluateWrapper, script)
	if err != nil {
		var evalErr *rod.EvalError
		if errors.As(err, &evalErr) {
			return nil, &surface.EvaluationError{Message: evalErr.Error()}
		}
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}

	outcome := result.Value
	if !outcome.Get("ok").Bool() {
		return nil, &surface.EvaluationError{Message: outcome.Get("error").Str()}
	}
	return outcome.Get("value").Val(), nil
}

// Locate returns the element tagged with the given snapshot identifier.
func (p *Page) Locate(ctx context.Context, id string) (*rod.Element, error) {
	element, err := p.page.Context(ctx).Element(fmt.Sprintf("[%s=%q]", surface.IdentifierAttribute, id))
	if err != nil {
		return nil, fmt.Errorf("failed to locate element %q: %w", id, err)
	}
	return element, nil
}

func (p *Page) waitStable(page *rod.Page) {
	if p.WaitStable <= 0 {
		return
	}
	// A page that never settles is still captured as-is.
	_ = page.WaitDOMStable(p.WaitStable, 0.1)
}
