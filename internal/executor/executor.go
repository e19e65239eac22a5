// Package executor holds the action primitives that act on one located
// candidate: click, type, native select and scroll-into-view. Primitives
// return errors instead of panicking; the dispatcher decides whether an
// error means "try the next tactic" or "abandon the action".
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/locator"
)

// Options configures execution behavior
type Options struct {
	// AutoWaitVisible bounds how long a primitive waits for its element to
	// become visible before acting. Zero skips the wait.
	AutoWaitVisible time.Duration
	// Observer, when set, is told where each click and type landed.
	Observer Observer
	Logger   *zap.Logger
}

// Observer receives the primitive name and the element box after a
// successful click or type
type Observer func(action string, box driver.Rect)

// Executor runs primitives with the session's pacing
type Executor struct {
	human    *Humanizer
	autoWait time.Duration
	observe  Observer
	log      *zap.Logger
}

// New creates an Executor. A nil humanizer disables pacing.
func New(human *Humanizer, opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{human: human, autoWait: opts.AutoWaitVisible, observe: opts.Observer, log: log}
}

// notify reports a finished primitive to the observer, best effort
func (x *Executor) notify(ctx context.Context, action string, el driver.Element) {
	if x.observe == nil {
		return
	}
	box, err := el.BoundingBox(ctx)
	if err != nil {
		return
	}
	x.observe(action, box)
}

// Humanizer returns the pacing model
func (x *Executor) Humanizer() *Humanizer { return x.human }

func (x *Executor) ready(ctx context.Context, el driver.Element) error {
	if x.autoWait <= 0 {
		return nil
	}
	if err := el.WaitVisible(ctx, x.autoWait); err != nil {
		return fmt.Errorf("element not visible: %w", err)
	}
	return nil
}

// Click taps the candidate after the humanized pre-tap pause
func (x *Executor) Click(ctx context.Context, c locator.Candidate) error {
	if err := x.ready(ctx, c.Element); err != nil {
		return err
	}
	if err := x.human.BeforeTap(ctx); err != nil {
		return err
	}
	if err := c.Element.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", c.Source, err)
	}
	x.notify(ctx, "click", c.Element)
	return nil
}

// Type clears the field and enters value. With pacing enabled the value is
// typed one character at a time; otherwise it is filled in one step. Calling
// Type twice with the same value leaves exactly that value in the field.
func (x *Executor) Type(ctx context.Context, c locator.Candidate, value string) error {
	el := c.Element
	if err := x.ready(ctx, el); err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", c.Source, err)
	}
	if !x.human.Enabled() {
		if err := el.Fill(ctx, value); err != nil {
			return fmt.Errorf("fill %s: %w", c.Source, err)
		}
		x.notify(ctx, "type", el)
		return nil
	}

	for i, r := range value {
		if i > 0 {
			if err := x.human.BetweenKeys(ctx); err != nil {
				return err
			}
		}
		if err := el.TypeText(ctx, string(r)); err != nil {
			return fmt.Errorf("type %s: %w", c.Source, err)
		}
	}

	// Input masks and IMEs can swallow keystrokes; repair with one fill
	got, err := el.Value(ctx)
	if err == nil && got != value {
		x.log.Debug("typed value differs, filling",
			zap.String("tactic", c.Source), zap.String("got", got))
		if err := el.Fill(ctx, value); err != nil {
			return fmt.Errorf("fill %s: %w", c.Source, err)
		}
	}
	x.notify(ctx, "type", el)
	return nil
}

// SetNativeSelect picks option on a native <select>, by visible label
// first and raw value second. It returns which matcher succeeded.
func (x *Executor) SetNativeSelect(ctx context.Context, c locator.Candidate, option string) (driver.SelectBy, error) {
	if err := x.ready(ctx, c.Element); err != nil {
		return 0, err
	}
	labelErr := c.Element.SelectOption(ctx, driver.SelectByLabel, option)
	if labelErr == nil {
		return driver.SelectByLabel, nil
	}
	if driver.IsClosed(labelErr) {
		return 0, labelErr
	}
	if err := c.Element.SelectOption(ctx, driver.SelectByValue, option); err != nil {
		return 0, fmt.Errorf("select %q by label (%v) and by value: %w", option, labelErr, err)
	}
	return driver.SelectByValue, nil
}

// ScrollIntoView centres the candidate unless it already lies entirely
// inside the viewport, in which case nothing is scrolled. It reports
// whether a scroll was issued.
func (x *Executor) ScrollIntoView(ctx context.Context, page driver.Page, c locator.Candidate) (bool, error) {
	vp, err := page.Viewport(ctx)
	if err != nil {
		return false, fmt.Errorf("viewport: %w", err)
	}
	box, err := c.Element.BoundingBox(ctx)
	if err != nil {
		return false, fmt.Errorf("bounding box: %w", err)
	}
	if box.Width > 0 && box.Height > 0 && box.Within(vp) {
		return false, nil
	}

	err = c.Element.ScrollIntoView(ctx)
	if err == nil {
		return true, nil
	}
	if driver.IsClosed(err) {
		return false, err
	}
	x.log.Debug("scrollIntoView failed, scrolling window", zap.Error(err))

	// Fallback: move the window so the box centre lands mid-viewport
	_, cy := box.Center()
	if err := page.ScrollBy(ctx, 0, cy-vp.Height/2); err != nil {
		return false, fmt.Errorf("scroll window: %w", err)
	}
	return true, nil
}

// ScrollToBottom scrolls the document to its end
func (x *Executor) ScrollToBottom(ctx context.Context, page driver.Page) error {
	if err := page.ScrollToBottom(ctx); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// SearchSelect types option into a widget's filter input and confirms with Enter
func (x *Executor) SearchSelect(ctx context.Context, c locator.Candidate, option string) error {
	if err := x.Click(ctx, c); err != nil {
		return err
	}
	if err := x.Type(ctx, c, option); err != nil {
		return err
	}
	if err := c.Element.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}

// Act performs a primitive appropriate for kind on c. Select is handled by
// the dispatcher's pipeline and is not accepted here.
func (x *Executor) Act(ctx context.Context, page driver.Page, kind intent.Kind, c locator.Candidate, value string) error {
	switch kind {
	case intent.KindTap:
		return x.Click(ctx, c)
	case intent.KindInput:
		return x.Type(ctx, c, value)
	case intent.KindScroll:
		_, err := x.ScrollIntoView(ctx, page, c)
		return err
	}
	return fmt.Errorf("no primitive for %s", kind)
}
