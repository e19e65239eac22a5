package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/locator"
	"github.com/v0xg/formpilot/internal/verify"
)

var errNoOption = errors.New("no option requested")

// selectOption runs the select pipeline: native select, then trigger and
// option pairs for custom widgets, then the widget's search box. Every
// attempt is verified by reading back the displayed selection; a mismatch
// moves on to the next tactic.
func (d *Dispatcher) selectOption(ctx context.Context, r *run) (Outcome, error) {
	in := r.in
	sem, stop := d.semantic(ctx, r, false, func(ctx context.Context, _ intent.ResolveOptions) error {
		return d.resolver.Select(ctx, in.Description, in.Value)
	})
	if stop != nil {
		return r.abandon(stop)
	}
	if sem.ok() {
		return r.done(sem.step, "", NotApplicable)
	}
	if strings.TrimSpace(in.Value) == "" {
		r.fail("select", errNoOption)
		return r.noop()
	}

	// Native <select>
	c, found, err := d.find(ctx, r, locator.NativeSelect)
	if err != nil {
		return r.abandon(err)
	}
	if found {
		ok, err := d.tryNative(ctx, r, c)
		if err != nil {
			return r.abandon(err)
		}
		if ok {
			return r.done(locator.NativeSelect.Name, in.Value, Passed)
		}
	}

	// Custom widgets
	container, err := d.displayContainer(ctx, in)
	if err != nil {
		return r.abandon(err)
	}
	var lastTrigger driver.Element
	for _, trig := range locator.Triggers {
		if stop := d.abort(ctx, nil); stop != nil {
			return r.abandon(stop)
		}
		tc, found, err := d.find(ctx, r, trig)
		if err != nil {
			return r.abandon(err)
		}
		if !found {
			continue
		}
		lastTrigger = tc.Element
		strategy, ok, err := d.tryOptions(ctx, r, trig.Name, tc, container)
		if err != nil {
			return r.abandon(err)
		}
		if ok {
			return r.done(strategy, tc.Match, Passed)
		}
	}

	// Type into the widget's filter and confirm
	sc, found, err := d.find(ctx, r, locator.Search)
	if err != nil {
		return r.abandon(err)
	}
	if found {
		human := d.exec.Humanizer()
		tctx, cancel := context.WithTimeout(ctx, d.actTimeout(human.TapBudget()+human.TypingBudget(in.Value)))
		err := d.exec.SearchSelect(tctx, sc, in.Value)
		cancel()
		if err != nil {
			if stop := d.abort(ctx, err); stop != nil {
				return r.abandon(stop)
			}
			r.fail(locator.Search.Name, err)
			return r.noop()
		}
		ok, err := d.verified(ctx, r, locator.Search.Name, verify.Target{Trigger: lastTrigger, Container: container})
		if err != nil {
			return r.abandon(err)
		}
		if ok {
			return r.done(locator.Search.Name, in.Value, Passed)
		}
	}
	return r.noop()
}

// tryNative sets the option on a native select and verifies it
func (d *Dispatcher) tryNative(ctx context.Context, r *run, c locator.Candidate) (bool, error) {
	name := locator.NativeSelect.Name
	tctx, cancel := context.WithTimeout(ctx, d.tacticTimeout)
	by, err := d.exec.SetNativeSelect(tctx, c, r.in.Value)
	cancel()
	if err != nil {
		if stop := d.abort(ctx, err); stop != nil {
			return false, stop
		}
		r.fail(name, err)
		return false, nil
	}
	if by == driver.SelectByValue {
		r.log.Debug("native option matched by value", zap.String("value", r.in.Value))
	}
	return d.verified(ctx, r, name, verify.Target{Native: c.Element})
}

// tryOptions opens the widget with trigger and walks the option tactics.
// After a clicked option fails verification the widget is reopened before
// the next tactic runs.
func (d *Dispatcher) tryOptions(ctx context.Context, r *run, trigger string, tc locator.Candidate, container driver.Element) (string, bool, error) {
	tapTimeout := d.actTimeout(d.exec.Humanizer().TapBudget())
	open := func() (bool, error) {
		tctx, cancel := context.WithTimeout(ctx, tapTimeout)
		err := d.exec.Click(tctx, tc)
		cancel()
		if err != nil {
			if stop := d.abort(ctx, err); stop != nil {
				return false, stop
			}
			r.fail(trigger, err)
			return false, nil
		}
		return true, nil
	}

	if ok, err := open(); !ok || err != nil {
		return "", false, err
	}
	reopen := false
	target := verify.Target{Trigger: tc.Element, Container: container}

	for _, opt := range locator.Options {
		if stop := d.abort(ctx, nil); stop != nil {
			return "", false, stop
		}
		if reopen {
			if ok, err := open(); !ok || err != nil {
				return "", false, err
			}
			reopen = false
		}
		oc, found, err := d.find(ctx, r, opt)
		if err != nil {
			return "", false, err
		}
		if !found {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, tapTimeout)
		err = d.exec.Click(tctx, oc)
		cancel()
		if err != nil {
			if stop := d.abort(ctx, err); stop != nil {
				return "", false, stop
			}
			r.fail(opt.Name, err)
			continue
		}
		reopen = true

		strategy := trigger + "+" + opt.Name
		ok, err := d.verified(ctx, r, strategy, target)
		if err != nil || ok {
			return strategy, ok, err
		}
	}
	return "", false, nil
}

// verified polls the displayed selection and records a mismatch
func (d *Dispatcher) verified(ctx context.Context, r *run, tactic string, t verify.Target) (bool, error) {
	res, err := d.verifier.Selection(ctx, d.page, t, r.in.Value)
	if err != nil {
		if stop := d.abort(ctx, err); stop != nil {
			return false, stop
		}
		r.fail(tactic, err)
		return false, nil
	}
	if !res.Matched {
		r.verified = Failed
		r.fail(tactic, fmt.Errorf("%w: want %q, saw %q", ErrNotVerified, r.in.Value, res.Observed))
		return false, nil
	}
	return true, nil
}

// displayContainer finds the question container that shows the current
// selection, if the target text anchors one
func (d *Dispatcher) displayContainer(ctx context.Context, in intent.Intent) (driver.Element, error) {
	css := locator.VendorCSS(func(v locator.Vendor) string { return v.Selected })
	container, _, err := locator.Container(ctx, d.page, in.Target, css)
	if err != nil {
		if stop := d.abort(ctx, err); stop != nil {
			return nil, stop
		}
		return nil, nil
	}
	return container, nil
}
