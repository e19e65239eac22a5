// Package pwdriver implements driver.Page on top of playwright-go.
// Playwright calls are not context aware, so every call checks the
// context first and converts its deadline into a Playwright timeout.
package pwdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/v0xg/formpilot/internal/driver"
)

var (
	_ driver.Page    = (*Page)(nil)
	_ driver.Element = (*Element)(nil)
)

// defaultTimeout applies when the context carries no deadline
const defaultTimeout = 5 * time.Second

// timeoutMs converts the context deadline into Playwright's millisecond timeout
func timeoutMs(ctx context.Context) *float64 {
	d := defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		d = time.Until(dl)
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// callOn adapts a `this`-bound function expression to Playwright's
// (element, arg) calling convention
func callOn(fn string) string {
	return "(el, args) => (" + fn + ").apply(el, args || [])"
}

func queryArg(q driver.Query) map[string]any {
	return map[string]any{
		"kind":     int(q.Kind),
		"selector": q.Selector,
		"role":     q.Role,
		"text":     q.Text,
		"exact":    q.Exact,
	}
}

// Page adapts a playwright page
type Page struct {
	page playwright.Page
}

// New wraps page
func New(page playwright.Page) *Page {
	return &Page{page: page}
}

// Playwright returns the underlying playwright page
func (p *Page) Playwright() playwright.Page {
	return p.page
}

func (p *Page) wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	// If the Go context was cancelled during the call, prefer the context error.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, playwright.ErrTargetClosed) || driver.IsClosed(err) || p.page.IsClosed() {
		return fmt.Errorf("%w: %v", driver.ErrPageClosed, err)
	}
	return err
}

func (p *Page) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.page.IsClosed() {
		return driver.ErrPageClosed
	}
	return nil
}

// collect turns a JS array handle into element handles in index order
func (p *Page) collect(ctx context.Context, handle playwright.JSHandle) ([]driver.Element, error) {
	defer handle.Dispose()
	props, err := handle.GetProperties()
	if err != nil {
		return nil, p.wrap(ctx, err)
	}
	type indexed struct {
		i  int
		el playwright.ElementHandle
	}
	var items []indexed
	for key, h := range props {
		i, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if el := h.AsElement(); el != nil {
			items = append(items, indexed{i, el})
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].i < items[b].i })
	out := make([]driver.Element, 0, len(items))
	for _, it := range items {
		out = append(out, &Element{p: p, el: it.el})
	}
	return out, nil
}

func (p *Page) Query(ctx context.Context, q driver.Query) ([]driver.Element, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	handle, err := p.page.EvaluateHandle("(q) => ("+driver.QueryJS+").call(document, q)", queryArg(q))
	if err != nil {
		return nil, p.wrap(ctx, fmt.Errorf("query %s: %w", q, err))
	}
	return p.collect(ctx, handle)
}

func (p *Page) Viewport(ctx context.Context) (driver.Size, error) {
	if err := p.check(ctx); err != nil {
		return driver.Size{}, err
	}
	if vp := p.page.ViewportSize(); vp != nil {
		return driver.Size{Width: float64(vp.Width), Height: float64(vp.Height)}, nil
	}
	var size driver.Size
	raw, err := p.EvalJSON(ctx, driver.ViewportJS)
	if err != nil {
		return size, err
	}
	return size, json.Unmarshal(raw, &size)
}

func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	_, err := p.EvalJSON(ctx, driver.ScrollByJS, dx, dy)
	return err
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	_, err := p.EvalJSON(ctx, driver.ScrollToBottomJS)
	return err
}

func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return p.wrap(ctx, err)
}

func (p *Page) Press(ctx context.Context, key string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.wrap(ctx, p.page.Keyboard().Press(key))
}

func (p *Page) AddInitScript(ctx context.Context, js string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.wrap(ctx, p.page.AddInitScript(playwright.Script{Content: playwright.String(js)}))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeoutMs(ctx)})
	return data, p.wrap(ctx, err)
}

// EvalJSON evaluates a function expression. Several arguments are spread
// from a single array since Playwright passes one argument.
func (p *Page) EvalJSON(ctx context.Context, js string, args ...any) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	var (
		result any
		err    error
	)
	switch len(args) {
	case 0:
		result, err = p.page.Evaluate(js)
	case 1:
		result, err = p.page.Evaluate(js, args[0])
	default:
		result, err = p.page.Evaluate("(args) => ("+js+")(...args)", args)
	}
	if err != nil {
		return nil, p.wrap(ctx, err)
	}
	if result == nil {
		return []byte("null"), nil
	}
	return json.Marshal(result)
}

func (p *Page) Closed() bool {
	return p.page.IsClosed()
}

// Element adapts a playwright element handle
type Element struct {
	p  *Page
	el playwright.ElementHandle
}

func (e *Element) eval(ctx context.Context, fn string, args ...any) (any, error) {
	if err := e.p.check(ctx); err != nil {
		return nil, err
	}
	if args == nil {
		args = []any{}
	}
	v, err := e.el.Evaluate(callOn(fn), args)
	return v, e.p.wrap(ctx, err)
}

func (e *Element) Query(ctx context.Context, q driver.Query) ([]driver.Element, error) {
	if err := e.p.check(ctx); err != nil {
		return nil, err
	}
	handle, err := e.el.EvaluateHandle(callOn(driver.QueryJS), []any{queryArg(q)})
	if err != nil {
		return nil, e.p.wrap(ctx, fmt.Errorf("query %s: %w", q, err))
	}
	return e.p.collect(ctx, handle)
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.p.check(ctx); err != nil {
		return err
	}
	return e.p.wrap(ctx, e.el.Click(playwright.ElementHandleClickOptions{Timeout: timeoutMs(ctx)}))
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := e.p.check(ctx); err != nil {
		return err
	}
	return e.p.wrap(ctx, e.el.Fill(value, playwright.ElementHandleFillOptions{Timeout: timeoutMs(ctx)}))
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.eval(ctx, driver.ClearJS)
	return err
}

// TypeText inserts text at the caret in one chunk
func (e *Element) TypeText(ctx context.Context, text string) error {
	if err := e.p.check(ctx); err != nil {
		return err
	}
	if err := e.el.Focus(); err != nil {
		return e.p.wrap(ctx, err)
	}
	return e.p.wrap(ctx, e.p.page.Keyboard().InsertText(text))
}

func (e *Element) Press(ctx context.Context, key string) error {
	if err := e.p.check(ctx); err != nil {
		return err
	}
	return e.p.wrap(ctx, e.el.Press(key, playwright.ElementHandlePressOptions{Timeout: timeoutMs(ctx)}))
}

func (e *Element) SelectOption(ctx context.Context, by driver.SelectBy, value string) error {
	if err := e.p.check(ctx); err != nil {
		return err
	}
	values := playwright.SelectOptionValues{Labels: &[]string{value}}
	if by == driver.SelectByValue {
		values = playwright.SelectOptionValues{Values: &[]string{value}}
	}
	picked, err := e.el.SelectOption(values, playwright.ElementHandleSelectOptionOptions{Timeout: timeoutMs(ctx)})
	if err != nil {
		return e.p.wrap(ctx, err)
	}
	if len(picked) == 0 {
		return fmt.Errorf("no option %q: %w", value, driver.ErrNotFound)
	}
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if _, err := e.eval(ctx, driver.ScrollIntoViewJS); err != nil {
		if errors.Is(err, driver.ErrPageClosed) || ctx.Err() != nil {
			return err
		}
		return e.p.wrap(ctx, e.el.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{Timeout: timeoutMs(ctx)}))
	}
	return nil
}

func (e *Element) BoundingBox(ctx context.Context) (driver.Rect, error) {
	if err := e.p.check(ctx); err != nil {
		return driver.Rect{}, err
	}
	box, err := e.el.BoundingBox()
	if err != nil {
		return driver.Rect{}, e.p.wrap(ctx, err)
	}
	if box == nil {
		// not rendered
		return driver.Rect{}, nil
	}
	return driver.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := e.p.check(ctx); err != nil {
		return false, err
	}
	ok, err := e.el.IsVisible()
	return ok, e.p.wrap(ctx, err)
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	if err := e.p.check(ctx); err != nil {
		return false, err
	}
	ok, err := e.el.IsEnabled()
	return ok, e.p.wrap(ctx, err)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.p.check(ctx); err != nil {
		return "", err
	}
	s, err := e.el.InnerText()
	return s, e.p.wrap(ctx, err)
}

func (e *Element) Value(ctx context.Context) (string, error) {
	v, err := e.eval(ctx, `function () { return 'value' in this ? String(this.value) : (this.textContent || ''); }`)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *Element) SelectedLabel(ctx context.Context) (string, error) {
	v, err := e.eval(ctx, driver.SelectedLabelJS)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *Element) Parent(ctx context.Context) (driver.Element, error) {
	if err := e.p.check(ctx); err != nil {
		return nil, err
	}
	h, err := e.el.EvaluateHandle("(el) => el.parentElement")
	if err != nil {
		return nil, e.p.wrap(ctx, err)
	}
	parent := h.AsElement()
	if parent == nil {
		return nil, driver.ErrNotFound
	}
	return &Element{p: e.p, el: parent}, nil
}

// WaitVisible polls visibility until timeout
func (e *Element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		ok, err := e.Visible(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait visible: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
