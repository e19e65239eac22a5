// Package fakedriver is an in-memory driver.Page over a static HTML
// fixture. It models just enough browser behaviour for the locator,
// executor and dispatch tests: visibility from the hidden attribute and
// display:none, geometry from data-rect="x,y,w,h" and widget behaviour
// through click and key hooks registered per CSS selector.
package fakedriver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/formpilot/internal/driver"
)

// DefaultViewport matches the default browser window used by the CLI
var DefaultViewport = driver.Size{Width: 1280, Height: 720}

// Hook reacts to an interaction. target is the element (or nearest
// ancestor) matching the hook's selector.
type Hook func(target *goquery.Selection)

type hook struct {
	selector string
	key      string
	fn       Hook
}

// Page is a fake browser page backed by a goquery document
type Page struct {
	mu       sync.Mutex
	doc      *goquery.Document
	viewport driver.Size
	scrollX  float64
	scrollY  float64
	closed   bool

	clickHooks []hook
	keyHooks   []hook
	focus      *goquery.Selection

	clicks      []string
	keys        []string
	scrolls     int
	idleWaits   int
	idleErr     error
	initScripts []string
	eval        func(js string, args []any) ([]byte, error)
}

// New parses html into a fake page
func New(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &Page{doc: doc, viewport: DefaultViewport}, nil
}

// MustNew is New for fixtures known to parse
func MustNew(html string) *Page {
	p, err := New(html)
	if err != nil {
		panic(err)
	}
	return p
}

// SetViewport overrides the viewport size
func (p *Page) SetViewport(s driver.Size) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = s
}

// OnClick registers fn to run when an element matching selector, or one of
// its descendants, is clicked
func (p *Page) OnClick(selector string, fn Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clickHooks = append(p.clickHooks, hook{selector: selector, fn: fn})
}

// OnKey registers fn to run when key is pressed while an element matching
// selector has focus
func (p *Page) OnKey(selector, key string, fn Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keyHooks = append(p.keyHooks, hook{selector: selector, key: key, fn: fn})
}

// OnEval installs the handler for EvalJSON
func (p *Page) OnEval(fn func(js string, args []any) ([]byte, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eval = fn
}

// FailNetworkIdle makes WaitNetworkIdle return err
func (p *Page) FailNetworkIdle(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleErr = err
}

// Close marks the page closed; every later call fails with driver.ErrPageClosed
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Show removes hidden markers from every element matching selector
func (p *Page) Show(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("hidden")
		if style, ok := s.Attr("style"); ok && isDisplayNone(style) {
			s.RemoveAttr("style")
		}
	})
}

// Hide marks every element matching selector hidden
func (p *Page) Hide(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).SetAttr("hidden", "")
}

// SetText replaces the text of every element matching selector
func (p *Page) SetText(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).SetText(text)
}

// Find runs a CSS query against the document without going through the
// driver surface, for assertions
func (p *Page) Find(selector string) *goquery.Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(selector)
}

// ValueOf returns the current value of the first control matching selector
func (p *Page) ValueOf(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return controlValue(p.doc.Find(selector).First())
}

// Clicks returns the id (or tag name) of every clicked element, in order
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Keys returns every key pressed, in order
func (p *Page) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// ScrollCalls counts ScrollIntoView, ScrollBy and ScrollToBottom calls
func (p *Page) ScrollCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// IdleWaits counts WaitNetworkIdle calls
func (p *Page) IdleWaits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idleWaits
}

// InitScripts returns the scripts registered with AddInitScript
func (p *Page) InitScripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.initScripts...)
}

// ScrollOffset returns the current document scroll position
func (p *Page) ScrollOffset() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollX, p.scrollY
}

func (p *Page) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return fmt.Errorf("fake page: %w", driver.ErrPageClosed)
	}
	return nil
}

// Query implements driver.Scope over the whole document
func (p *Page) Query(ctx context.Context, q driver.Query) ([]driver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	return p.wrap(query(p.doc.Selection, p.doc.Selection, q)), nil
}

// Viewport returns the configured viewport size
func (p *Page) Viewport(ctx context.Context) (driver.Size, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return driver.Size{}, err
	}
	return p.viewport, nil
}

// ScrollBy moves the document scroll position
func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.scrolls++
	p.scrollX = max(0, p.scrollX+dx)
	p.scrollY = max(0, p.scrollY+dy)
	return nil
}

// ScrollToBottom scrolls so the lowest element touches the viewport bottom
func (p *Page) ScrollToBottom(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.scrolls++
	var bottom float64
	p.doc.Find("[data-rect]").Each(func(_ int, s *goquery.Selection) {
		r := rectOf(s)
		bottom = max(bottom, r.Y+r.Height)
	})
	p.scrollY = max(0, bottom-p.viewport.Height)
	return nil
}

// WaitNetworkIdle returns immediately, or the error set by FailNetworkIdle
func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.idleWaits++
	return p.idleErr
}

// Press sends key to the focused element
func (p *Page) Press(ctx context.Context, key string) error {
	p.mu.Lock()
	if err := p.check(ctx); err != nil {
		p.mu.Unlock()
		return err
	}
	focus := p.focus
	p.mu.Unlock()
	p.pressOn(focus, key)
	return nil
}

// AddInitScript records js
func (p *Page) AddInitScript(ctx context.Context, js string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.initScripts = append(p.initScripts, js)
	return nil
}

// Screenshot returns a blank PNG of the viewport size
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(p.viewport.Width), int(p.viewport.Height)))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EvalJSON delegates to the OnEval handler
func (p *Page) EvalJSON(ctx context.Context, js string, args ...any) ([]byte, error) {
	p.mu.Lock()
	if err := p.check(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	eval := p.eval
	p.mu.Unlock()
	if eval == nil {
		return nil, fmt.Errorf("fake page: no eval handler")
	}
	return eval(js, args)
}

// Closed reports whether Close has been called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) wrap(sels []*goquery.Selection) []driver.Element {
	out := make([]driver.Element, 0, len(sels))
	for _, s := range sels {
		out = append(out, &Element{page: p, sel: s})
	}
	return out
}

// fire runs every hook in hooks whose selector matches target or one of
// its ancestors. Must be called without p.mu held.
func (p *Page) fire(hooks []hook, target *goquery.Selection, key string) {
	for _, h := range hooks {
		if h.key != key {
			continue
		}
		p.mu.Lock()
		match := target.Closest(h.selector)
		p.mu.Unlock()
		if match.Length() > 0 {
			h.fn(match)
		}
	}
}

func (p *Page) pressOn(focus *goquery.Selection, key string) {
	p.mu.Lock()
	p.keys = append(p.keys, key)
	hooks := append([]hook(nil), p.keyHooks...)
	p.mu.Unlock()
	if focus != nil {
		p.fire(hooks, focus, key)
	}
}
