package fakedriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/formpilot/internal/driver"
)

var (
	errNotVisible  = errors.New("element is not visible")
	errDisabled    = errors.New("element is disabled")
	errNotFillable = errors.New("element is not an editable control")
)

// Element is one node of a fake page
type Element struct {
	page *Page
	sel  *goquery.Selection
}

// Selection exposes the underlying node for assertions
func (e *Element) Selection() *goquery.Selection { return e.sel }

// ID returns the id attribute, or the tag name when there is none
func (e *Element) ID() string {
	if id, ok := e.sel.Attr("id"); ok && id != "" {
		return id
	}
	return goquery.NodeName(e.sel)
}

func (e *Element) lock(ctx context.Context) error {
	e.page.mu.Lock()
	if err := e.page.check(ctx); err != nil {
		e.page.mu.Unlock()
		return err
	}
	return nil
}

// actionable checks the conditions a real driver waits for before acting
func (e *Element) actionable() error {
	if !visible(e.sel) {
		return fmt.Errorf("%s: %w", e.ID(), errNotVisible)
	}
	if !enabled(e.sel) {
		return fmt.Errorf("%s: %w", e.ID(), errDisabled)
	}
	return nil
}

// Query searches below the element
func (e *Element) Query(ctx context.Context, q driver.Query) ([]driver.Element, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.page.mu.Unlock()
	return e.page.wrap(query(e.page.doc.Selection, e.sel, q)), nil
}

// Click records the click, applies label and checkbox defaults, then
// fires matching click hooks
func (e *Element) Click(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	if err := e.actionable(); err != nil {
		e.page.mu.Unlock()
		return err
	}
	e.page.clicks = append(e.page.clicks, e.ID())
	e.page.focus = e.sel

	// label activation
	target := e.sel
	if goquery.NodeName(e.sel) == "label" {
		if id, ok := e.sel.Attr("for"); ok {
			if t := byID(e.page.doc.Selection, id); t.Length() > 0 {
				target = t
			}
		} else if c := e.sel.Find("input").First(); c.Length() > 0 {
			target = c
		}
	}
	if goquery.NodeName(target) == "input" {
		switch inputType(target) {
		case "radio":
			if name, ok := target.Attr("name"); ok {
				e.page.doc.Find("input[type=radio]").FilterFunction(func(_ int, s *goquery.Selection) bool {
					n, _ := s.Attr("name")
					return n == name
				}).RemoveAttr("checked")
			}
			target.SetAttr("checked", "")
		case "checkbox":
			if _, ok := target.Attr("checked"); ok {
				target.RemoveAttr("checked")
			} else {
				target.SetAttr("checked", "")
			}
		}
	}
	hooks := append([]hook(nil), e.page.clickHooks...)
	e.page.mu.Unlock()

	e.page.fire(hooks, e.sel, "")
	return nil
}

func (e *Element) edit(ctx context.Context, fn func(current string) string) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if err := e.actionable(); err != nil {
		return err
	}
	if !fillable(e.sel) {
		return fmt.Errorf("%s: %w", e.ID(), errNotFillable)
	}
	e.page.focus = e.sel
	setControlValue(e.sel, fn(controlValue(e.sel)))
	return nil
}

// Fill replaces the value
func (e *Element) Fill(ctx context.Context, value string) error {
	return e.edit(ctx, func(string) string { return value })
}

// Clear empties the value
func (e *Element) Clear(ctx context.Context) error {
	return e.edit(ctx, func(string) string { return "" })
}

// TypeText appends text to the value
func (e *Element) TypeText(ctx context.Context, text string) error {
	return e.edit(ctx, func(cur string) string { return cur + text })
}

// Press sends key while the element has focus
func (e *Element) Press(ctx context.Context, key string) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	e.page.focus = e.sel
	e.page.mu.Unlock()
	e.page.pressOn(e.sel, key)
	return nil
}

// SelectOption marks the matching option of a native select as selected
func (e *Element) SelectOption(ctx context.Context, by driver.SelectBy, value string) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if goquery.NodeName(e.sel) != "select" {
		return fmt.Errorf("%s: not a select element", e.ID())
	}
	if err := e.actionable(); err != nil {
		return err
	}
	var match *goquery.Selection
	e.sel.Find("option").EachWithBreak(func(_ int, o *goquery.Selection) bool {
		var ok bool
		if by == driver.SelectByValue {
			v, has := o.Attr("value")
			ok = has && v == value
		} else {
			ok = normalize(text(o)) == normalize(value)
		}
		if ok {
			match = o
		}
		return !ok
	})
	if match == nil {
		return fmt.Errorf("%s: no option %q: %w", e.ID(), value, driver.ErrNotFound)
	}
	e.sel.Find("option").RemoveAttr("selected")
	match.SetAttr("selected", "")
	return nil
}

// ScrollIntoView centres the element in the viewport
func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	p := e.page
	p.scrolls++
	r := rectOf(e.sel)
	p.scrollX = max(0, r.X+r.Width/2-p.viewport.Width/2)
	p.scrollY = max(0, r.Y+r.Height/2-p.viewport.Height/2)
	return nil
}

// BoundingBox returns the data-rect geometry relative to the viewport.
// Hidden elements report an empty box.
func (e *Element) BoundingBox(ctx context.Context) (driver.Rect, error) {
	if err := e.lock(ctx); err != nil {
		return driver.Rect{}, err
	}
	defer e.page.mu.Unlock()
	if !visible(e.sel) {
		return driver.Rect{}, nil
	}
	r := rectOf(e.sel)
	r.X -= e.page.scrollX
	r.Y -= e.page.scrollY
	return r, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := e.lock(ctx); err != nil {
		return false, err
	}
	defer e.page.mu.Unlock()
	return visible(e.sel), nil
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	if err := e.lock(ctx); err != nil {
		return false, err
	}
	defer e.page.mu.Unlock()
	return enabled(e.sel), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	return text(e.sel), nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	return controlValue(e.sel), nil
}

// SelectedLabel returns the text of the selected option of a select
func (e *Element) SelectedLabel(ctx context.Context) (string, error) {
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	if goquery.NodeName(e.sel) != "select" {
		return "", fmt.Errorf("%s: not a select element", e.ID())
	}
	return text(selectedOption(e.sel)), nil
}

func (e *Element) Parent(ctx context.Context) (driver.Element, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.page.mu.Unlock()
	parent := e.sel.Parent()
	if parent.Length() == 0 || goquery.NodeName(parent) == "#document" {
		return nil, driver.ErrNotFound
	}
	return &Element{page: e.page, sel: parent}, nil
}

// WaitVisible checks visibility once; fixtures do not change on their own
func (e *Element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	ok, err := e.Visible(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", e.ID(), errNotVisible)
	}
	return nil
}
