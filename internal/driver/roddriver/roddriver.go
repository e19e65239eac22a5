// Package roddriver implements driver.Page on top of go-rod
package roddriver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/formpilot/internal/driver"
)

var (
	_ driver.Page    = (*Page)(nil)
	_ driver.Element = (*Element)(nil)
)

// keys maps DOM key names to rod keys
var keys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageDown":   input.PageDown,
	"Space":      input.Space,
}

func toKey(name string) (input.Key, error) {
	if k, ok := keys[name]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unknown key: %s", name)
}

// Page adapts a rod page
type Page struct {
	page   *rod.Page
	closed atomic.Bool
}

// New wraps page
func New(page *rod.Page) *Page {
	return &Page{page: page}
}

// Rod returns the underlying rod page
func (p *Page) Rod() *rod.Page {
	return p.page
}

// wrap tags session-level failures with driver.ErrPageClosed
func (p *Page) wrap(err error) error {
	if err == nil {
		return nil
	}
	if driver.IsClosed(err) {
		p.closed.Store(true)
		return fmt.Errorf("%w: %v", driver.ErrPageClosed, err)
	}
	return err
}

func (p *Page) elements(els rod.Elements) []driver.Element {
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{p: p, el: el})
	}
	return out
}

// Query runs driver.QueryJS against the whole document
func (p *Page) Query(ctx context.Context, q driver.Query) ([]driver.Element, error) {
	if p.closed.Load() {
		return nil, driver.ErrPageClosed
	}
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(driver.QueryJS, q))
	if err != nil {
		return nil, p.wrap(fmt.Errorf("query %s: %w", q, err))
	}
	return p.elements(els), nil
}

func (p *Page) Viewport(ctx context.Context) (driver.Size, error) {
	res, err := p.page.Context(ctx).Eval(driver.ViewportJS)
	if err != nil {
		return driver.Size{}, p.wrap(err)
	}
	return driver.Size{
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
	}, nil
}

func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	_, err := p.page.Context(ctx).Eval(driver.ScrollByJS, dx, dy)
	return p.wrap(err)
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(driver.ScrollToBottomJS)
	return p.wrap(err)
}

// WaitNetworkIdle waits until no request has been in flight for 500ms, or
// until timeout
func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if p.closed.Load() {
		return driver.ErrPageClosed
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Use timeout to avoid hanging on persistent connections (WebSockets, polling, etc.)
	p.page.Context(waitCtx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	if err := waitCtx.Err(); err != nil {
		return fmt.Errorf("network idle: %w", err)
	}
	return nil
}

// Press sends key to the focused element
func (p *Page) Press(ctx context.Context, key string) error {
	k, err := toKey(key)
	if err != nil {
		return err
	}
	return p.wrap(p.page.Context(ctx).Keyboard.Press(k))
}

func (p *Page) AddInitScript(ctx context.Context, js string) error {
	_, err := p.page.Context(ctx).EvalOnNewDocument(js)
	return p.wrap(err)
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(false, nil)
	return data, p.wrap(err)
}

// EvalJSON evaluates js and returns the JSON encoding of its result
func (p *Page) EvalJSON(ctx context.Context, js string, args ...any) ([]byte, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, p.wrap(err)
	}
	return []byte(res.Value.JSON("", "")), nil
}

// Closed reports whether the target is gone
func (p *Page) Closed() bool {
	if p.closed.Load() {
		return true
	}
	if _, err := p.page.Info(); err != nil && driver.IsClosed(err) {
		p.closed.Store(true)
	}
	return p.closed.Load()
}

// Element adapts a rod element
type Element struct {
	p  *Page
	el *rod.Element
}

func (e *Element) Query(ctx context.Context, q driver.Query) ([]driver.Element, error) {
	els, err := e.el.Context(ctx).ElementsByJS(rod.Eval(driver.QueryJS, q))
	if err != nil {
		return nil, e.p.wrap(fmt.Errorf("query %s: %w", q, err))
	}
	return e.p.elements(els), nil
}

func (e *Element) Click(ctx context.Context) error {
	return e.p.wrap(e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

// Fill selects the current content and replaces it with value
func (e *Element) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		if _, err := el.Eval(driver.ClearJS); err != nil {
			return e.p.wrap(err)
		}
	}
	return e.p.wrap(el.Input(value))
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(driver.ClearJS)
	return e.p.wrap(err)
}

// TypeText inserts text at the caret
func (e *Element) TypeText(ctx context.Context, text string) error {
	return e.p.wrap(e.el.Context(ctx).Input(text))
}

func (e *Element) Press(ctx context.Context, key string) error {
	k, err := toKey(key)
	if err != nil {
		return err
	}
	return e.p.wrap(e.el.Context(ctx).Type(k))
}

// SelectOption picks a native option by visible text or by value
func (e *Element) SelectOption(ctx context.Context, by driver.SelectBy, value string) error {
	el := e.el.Context(ctx)
	if by == driver.SelectByLabel {
		return e.p.wrap(el.Select([]string{value}, true, rod.SelectorTypeText))
	}
	res, err := el.Eval(driver.SelectByValueJS, value)
	if err != nil {
		return e.p.wrap(err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("no option with value %q: %w", value, driver.ErrNotFound)
	}
	return nil
}

// ScrollIntoView smoothly centres the element, falling back to CDP scrolling
func (e *Element) ScrollIntoView(ctx context.Context) error {
	el := e.el.Context(ctx)
	if _, err := el.Eval(driver.ScrollIntoViewJS); err != nil {
		if driver.IsClosed(err) {
			return e.p.wrap(err)
		}
		return e.p.wrap(el.ScrollIntoView())
	}
	// let the smooth scroll settle
	_ = el.Timeout(time.Second).WaitStableRAF()
	return nil
}

func (e *Element) BoundingBox(ctx context.Context) (driver.Rect, error) {
	res, err := e.el.Context(ctx).Eval(driver.RectJS)
	if err != nil {
		return driver.Rect{}, e.p.wrap(err)
	}
	v := res.Value
	return driver.Rect{
		X:      v.Get("x").Num(),
		Y:      v.Get("y").Num(),
		Width:  v.Get("width").Num(),
		Height: v.Get("height").Num(),
	}, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	ok, err := e.el.Context(ctx).Visible()
	return ok, e.p.wrap(err)
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	disabled, err := e.el.Context(ctx).Disabled()
	return !disabled, e.p.wrap(err)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	s, err := e.el.Context(ctx).Text()
	return s, e.p.wrap(err)
}

func (e *Element) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", e.p.wrap(err)
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *Element) SelectedLabel(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(driver.SelectedLabelJS)
	if err != nil {
		return "", e.p.wrap(err)
	}
	return res.Value.Str(), nil
}

func (e *Element) Parent(ctx context.Context) (driver.Element, error) {
	parent, err := e.el.Context(ctx).Parent()
	if err != nil {
		return nil, e.p.wrap(err)
	}
	return &Element{p: e.p, el: parent}, nil
}

func (e *Element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return e.p.wrap(e.el.Context(ctx).Timeout(timeout).WaitVisible())
}
