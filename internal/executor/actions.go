package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/locator"
)

// Action is one low-level step produced by the semantic resolver's
// composite mode
type Action struct {
	Type     string `json:"action"`             // click, type, select, press, scroll, wait
	Selector string `json:"selector,omitempty"` // CSS selector for the target element
	Text     string `json:"text,omitempty"`     // Text to type, option to pick or key to press
	Duration int    `json:"wait,omitempty"`     // Wait duration in ms after action
}

func (a Action) String() string {
	if a.Selector == "" {
		return a.Type
	}
	return a.Type + " " + a.Selector
}

// ErrNoActionSucceeded is returned by Run when every action failed
var ErrNoActionSucceeded = errors.New("no action succeeded")

// Run executes actions in order, logging and skipping the ones that fail.
// It stops early only when the page closes or ctx ends, and fails when no
// action succeeded at all. It returns how many actions succeeded.
func (x *Executor) Run(ctx context.Context, page driver.Page, actions []Action) (int, error) {
	done := 0
	var lastErr error

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		log := x.log.With(zap.Int("step", i+1), zap.Int("of", len(actions)), zap.Stringer("action", action))

		err := x.runAction(ctx, page, action)
		if err != nil {
			log.Debug("action failed", zap.Error(err))
			if driver.IsClosed(err) {
				return done, err
			}
			lastErr = err
			continue
		}
		log.Debug("action done")
		done++

		// Post-action wait
		if action.Duration > 0 {
			if err := SleepWithContext(ctx, time.Duration(action.Duration)*time.Millisecond); err != nil {
				return done, err
			}
		}
	}

	if done == 0 && len(actions) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrNoActionSucceeded, lastErr)
	}
	return done, nil
}

// runAction executes a single action
func (x *Executor) runAction(ctx context.Context, page driver.Page, action Action) error {
	switch action.Type {
	case "wait":
		return nil
	case "press":
		return page.Press(ctx, action.Text)
	case "scroll":
		if action.Selector == "" {
			return x.ScrollToBottom(ctx, page)
		}
	}

	c, err := x.Resolve(ctx, page, action.Selector)
	if err != nil {
		return err
	}
	switch action.Type {
	case "click":
		return x.Click(ctx, c)
	case "type":
		return x.Type(ctx, c, action.Text)
	case "select":
		_, err := x.SetNativeSelect(ctx, c, action.Text)
		return err
	case "scroll":
		_, err := x.ScrollIntoView(ctx, page, c)
		return err
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// Resolve returns the first visible, enabled element matching selector
func (x *Executor) Resolve(ctx context.Context, page driver.Page, selector string) (locator.Candidate, error) {
	if selector == "" {
		return locator.Candidate{}, fmt.Errorf("missing selector: %w", driver.ErrNotFound)
	}
	els, err := page.Query(ctx, driver.CSS(selector))
	if err != nil {
		return locator.Candidate{}, err
	}
	for _, el := range els {
		vis, err := el.Visible(ctx)
		if err != nil {
			if driver.IsClosed(err) {
				return locator.Candidate{}, err
			}
			continue
		}
		if !vis {
			continue
		}
		if en, err := el.Enabled(ctx); err != nil || !en {
			continue
		}
		return locator.Candidate{Element: el, Visible: true, Enabled: true, Source: "selector", Match: selector}, nil
	}
	return locator.Candidate{}, fmt.Errorf("element not found: %s: %w", selector, driver.ErrNotFound)
}
