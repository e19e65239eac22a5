// Package dispatch is the fallback orchestrator. For each action kind it
// asks the semantic resolver first, optionally retries it in deep-think
// mode, then walks the locator tactic table until one tactic acts on a
// usable candidate. Failures along the way are recorded and logged; only a
// closed page, a cancelled context or an exhausted Input surface as errors.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/executor"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/locator"
	"github.com/v0xg/formpilot/internal/verify"
)

// Resolver is the external semantic action resolver. Each call either
// performs the action or returns an error.
type Resolver interface {
	Tap(ctx context.Context, description string, opts intent.ResolveOptions) error
	Input(ctx context.Context, description, value string, opts intent.ResolveOptions) error
	Select(ctx context.Context, description, option string) error
	WaitFor(ctx context.Context, description string, opts intent.ResolveOptions) error
	Scroll(ctx context.Context, opts intent.ScrollOptions, description string) error
}

// Actor is implemented by resolvers that can follow a free-form
// instruction. It is used for the last Input attempt.
type Actor interface {
	Act(ctx context.Context, instruction string) error
}

// Step names that are not locator tactics
const (
	stepSemantic  = "semantic"
	stepDeep      = "semantic.deep"
	stepComposite = "semantic.composite"
	stepIdle      = "network-idle"
	stepBottom    = "scroll.bottom"
)

const (
	DefaultTacticTimeout      = 3 * time.Second
	DefaultSemanticTimeout    = 30 * time.Second
	DefaultNetworkIdleTimeout = 5 * time.Second
)

// Options wires a Dispatcher. Zero values get defaults; a nil Resolver
// skips the semantic steps.
type Options struct {
	Resolver Resolver
	Executor *executor.Executor
	Verifier *verify.Verifier

	TacticTimeout      time.Duration
	SemanticTimeout    time.Duration
	NetworkIdleTimeout time.Duration
	// DeepThink enables the second semantic attempt for Tap and Input.
	DeepThink bool

	Logger *zap.Logger
}

// Dispatcher resolves intents against one page. It is not safe for
// concurrent use; one page is driven by one caller.
type Dispatcher struct {
	page     driver.Page
	resolver Resolver
	exec     *executor.Executor
	verifier *verify.Verifier

	tacticTimeout   time.Duration
	semanticTimeout time.Duration
	idleTimeout     time.Duration
	deepThink       bool

	log *zap.Logger
}

// New creates a Dispatcher for page
func New(page driver.Page, opts Options) *Dispatcher {
	d := &Dispatcher{
		page:            page,
		resolver:        opts.Resolver,
		exec:            opts.Executor,
		verifier:        opts.Verifier,
		tacticTimeout:   opts.TacticTimeout,
		semanticTimeout: opts.SemanticTimeout,
		idleTimeout:     opts.NetworkIdleTimeout,
		deepThink:       opts.DeepThink,
		log:             opts.Logger,
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.exec == nil {
		d.exec = executor.New(nil, executor.Options{Logger: d.log})
	}
	if d.verifier == nil {
		d.verifier = verify.New(verify.Options{Logger: d.log})
	}
	if d.tacticTimeout <= 0 {
		d.tacticTimeout = DefaultTacticTimeout
	}
	if d.semanticTimeout <= 0 {
		d.semanticTimeout = DefaultSemanticTimeout
	}
	if d.idleTimeout <= 0 {
		d.idleTimeout = DefaultNetworkIdleTimeout
	}
	return d
}

// Page returns the page the dispatcher drives
func (d *Dispatcher) Page() driver.Page { return d.page }

// Tap clicks the element described by description
func (d *Dispatcher) Tap(ctx context.Context, description string) (Outcome, error) {
	return d.Dispatch(ctx, intent.New(intent.KindTap, description))
}

// Input enters value into the field described by description. It is the
// only kind that fails when every tactic is exhausted.
func (d *Dispatcher) Input(ctx context.Context, description, value string) (Outcome, error) {
	return d.Dispatch(ctx, intent.New(intent.KindInput, description, intent.WithValue(value)))
}

// Select picks option in the dropdown described by description
func (d *Dispatcher) Select(ctx context.Context, description, option string) (Outcome, error) {
	return d.Dispatch(ctx, intent.New(intent.KindSelect, description, intent.WithValue(option)))
}

// WaitFor waits for the condition in description, falling back to network idle
func (d *Dispatcher) WaitFor(ctx context.Context, description string, timeout time.Duration) (Outcome, error) {
	return d.Dispatch(ctx, intent.New(intent.KindWaitFor, description, intent.WithTimeout(timeout)))
}

// Scroll brings the described element into view, or scrolls to the bottom
// in ScrollToBottom mode
func (d *Dispatcher) Scroll(ctx context.Context, description string, mode intent.ScrollMode) (Outcome, error) {
	return d.Dispatch(ctx, intent.New(intent.KindScroll, description, intent.WithMode(mode)))
}

// Dispatch runs the fallback chain for in
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent) (Outcome, error) {
	r := d.begin(in)
	if err := d.abort(ctx, nil); err != nil {
		return r.abandon(err)
	}

	switch in.Kind {
	case intent.KindTap:
		return d.tap(ctx, r)
	case intent.KindInput:
		return d.input(ctx, r)
	case intent.KindSelect:
		return d.selectOption(ctx, r)
	case intent.KindWaitFor:
		return d.waitFor(ctx, r)
	case intent.KindScroll:
		return d.scroll(ctx, r)
	}
	return r.abandon(fmt.Errorf("unsupported kind %s", in.Kind))
}

// run tracks one dispatch
type run struct {
	in       intent.Intent
	start    time.Time
	attempts []Attempt
	verified Verified
	log      *zap.Logger
}

func (d *Dispatcher) begin(in intent.Intent) *run {
	return &run{
		in:    in,
		start: time.Now(),
		log: d.log.With(
			zap.Stringer("kind", in.Kind),
			zap.String("description", in.Description),
		),
	}
}

// fail records a failed step
func (r *run) fail(tactic string, err error) {
	r.attempts = append(r.attempts, Attempt{Tactic: tactic, Err: err})
	r.log.Debug("tactic failed", zap.String("tactic", tactic), zap.Error(err))
}

func (r *run) outcome() Outcome {
	return Outcome{
		Kind:        r.in.Kind,
		Description: r.in.Description,
		Verified:    r.verified,
		Elapsed:     time.Since(r.start),
		Attempts:    r.attempts,
	}
}

// done reports success through tactic
func (r *run) done(tactic, match string, verified Verified) (Outcome, error) {
	r.verified = verified
	o := r.outcome()
	o.Succeeded = true
	o.Strategy = tactic
	o.Match = match
	r.log.Info("action succeeded",
		zap.String("tactic", tactic),
		zap.Stringer("verified", verified),
		zap.Duration("elapsed", o.Elapsed),
	)
	return o, nil
}

// noop ends the action without effect
func (r *run) noop() (Outcome, error) {
	o := r.outcome()
	r.log.Warn("all tactics exhausted, skipping action",
		zap.Int("attempts", len(o.Attempts)),
		zap.Duration("elapsed", o.Elapsed),
	)
	return o, nil
}

// abandon stops the action with err
func (r *run) abandon(err error) (Outcome, error) {
	r.log.Warn("action abandoned", zap.Error(err))
	o := r.outcome()
	o.Abandoned = true
	return o, err
}

// abort returns a non-nil error when the action must stop: the page is
// gone or the caller's ctx is done
func (d *Dispatcher) abort(ctx context.Context, err error) error {
	if driver.IsClosed(err) {
		if errors.Is(err, driver.ErrPageClosed) {
			return err
		}
		return fmt.Errorf("%w: %v", driver.ErrPageClosed, err)
	}
	if d.page.Closed() {
		return driver.ErrPageClosed
	}
	return ctx.Err()
}

// semanticResult is what the semantic steps produced: the step that
// succeeded, or the first resolver error
type semanticResult struct {
	step  string
	cause error
}

func (s semanticResult) ok() bool { return s.step != "" }

type semanticStep struct {
	name string
	opts intent.ResolveOptions
}

// semantic asks the resolver, then once more in deep-think mode when deep
// is set. The returned error is non-nil only when the action must stop.
func (d *Dispatcher) semantic(ctx context.Context, r *run, deep bool, call func(ctx context.Context, opts intent.ResolveOptions) error) (semanticResult, error) {
	if d.resolver == nil {
		r.log.Debug("no semantic resolver, using tactics")
		return semanticResult{}, nil
	}

	steps := []semanticStep{{stepSemantic, intent.ResolveOptions{Timeout: d.semanticTimeout}}}
	if deep && d.deepThink {
		steps = append(steps, semanticStep{stepDeep, intent.ResolveOptions{DeepThink: true, Timeout: d.semanticTimeout}})
	}

	var res semanticResult
	for _, step := range steps {
		sctx, cancel := context.WithTimeout(ctx, d.semanticTimeout)
		err := call(sctx, step.opts)
		cancel()
		if err == nil {
			res.step = step.name
			return res, nil
		}
		if stop := d.abort(ctx, err); stop != nil {
			return res, stop
		}
		if res.cause == nil {
			res.cause = err
		}
		r.fail(step.name, err)
	}
	return res, nil
}

// act performs the primitive for a located candidate
type act func(ctx context.Context, c locator.Candidate) error

// actTimeout bounds one primitive. Humanized pauses and keystrokes get
// their worst-case duration on top of the tactic timeout, so long values are
// never cut off part-way.
func (d *Dispatcher) actTimeout(pacing time.Duration) time.Duration {
	return d.tacticTimeout + pacing
}

// walk tries tactics in order and acts on the first usable candidate. It
// returns the winning tactic and match, or ok=false when all failed.
func (d *Dispatcher) walk(ctx context.Context, r *run, tactics []locator.Tactic, pacing time.Duration, do act) (name, match string, ok bool, err error) {
	for _, t := range tactics {
		if stop := d.abort(ctx, nil); stop != nil {
			return "", "", false, stop
		}
		c, found, err := d.find(ctx, r, t)
		if err != nil {
			return "", "", false, err
		}
		if !found {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, d.actTimeout(pacing))
		err = do(tctx, c)
		cancel()
		if err != nil {
			if stop := d.abort(ctx, err); stop != nil {
				return "", "", false, stop
			}
			r.fail(t.Name, err)
			continue
		}
		return t.Name, c.Match, true, nil
	}
	return "", "", false, nil
}

// find runs one tactic under the per-tactic timeout. A miss or a
// tactic-local timeout is recorded and reported as not found.
func (d *Dispatcher) find(ctx context.Context, r *run, t locator.Tactic) (locator.Candidate, bool, error) {
	tctx, cancel := context.WithTimeout(ctx, d.tacticTimeout)
	defer cancel()

	res, err := t.Find(tctx, d.page, r.in)
	if err != nil {
		if stop := d.abort(ctx, err); stop != nil {
			return locator.Candidate{}, false, stop
		}
		r.fail(t.Name, err)
		return locator.Candidate{}, false, nil
	}
	best, ok := res.Best()
	if !ok {
		r.fail(t.Name, driver.ErrNotFound)
		return locator.Candidate{}, false, nil
	}
	return best, true, nil
}

func (d *Dispatcher) tap(ctx context.Context, r *run) (Outcome, error) {
	in := r.in
	sem, stop := d.semantic(ctx, r, true, func(ctx context.Context, opts intent.ResolveOptions) error {
		return d.resolver.Tap(ctx, in.Description, opts)
	})
	if stop != nil {
		return r.abandon(stop)
	}
	if sem.ok() {
		return r.done(sem.step, "", NotApplicable)
	}

	if !in.Searchable() {
		r.fail("tap", ErrNothingToSearch)
		return r.noop()
	}
	name, match, ok, err := d.walk(ctx, r, locator.Tactics(intent.KindTap), d.exec.Humanizer().TapBudget(), d.exec.Click)
	if err != nil {
		return r.abandon(err)
	}
	if ok {
		return r.done(name, match, NotApplicable)
	}
	return r.noop()
}

func (d *Dispatcher) input(ctx context.Context, r *run) (Outcome, error) {
	in := r.in
	sem, stop := d.semantic(ctx, r, true, func(ctx context.Context, opts intent.ResolveOptions) error {
		return d.resolver.Input(ctx, in.Description, in.Value, opts)
	})
	if stop != nil {
		return r.abandon(stop)
	}
	if sem.ok() {
		return r.done(sem.step, "", NotApplicable)
	}

	name, match, ok, err := d.walk(ctx, r, locator.Tactics(intent.KindInput), d.exec.Humanizer().TypingBudget(in.Value), func(ctx context.Context, c locator.Candidate) error {
		return d.exec.Type(ctx, c, in.Value)
	})
	if err != nil {
		return r.abandon(err)
	}
	if ok {
		return r.done(name, match, NotApplicable)
	}

	// One composite instruction through the resolver, then give up
	if d.resolver != nil {
		instruction := fmt.Sprintf("在 %s 输入 %s", in.Description, in.Value)
		cctx, cancel := context.WithTimeout(ctx, d.semanticTimeout)
		if actor, isActor := d.resolver.(Actor); isActor {
			err = actor.Act(cctx, instruction)
		} else {
			err = d.resolver.Input(cctx, instruction, in.Value, intent.ResolveOptions{DeepThink: true, Timeout: d.semanticTimeout})
		}
		cancel()
		if err == nil {
			return r.done(stepComposite, "", NotApplicable)
		}
		if stop := d.abort(ctx, err); stop != nil {
			return r.abandon(stop)
		}
		r.fail(stepComposite, err)
	}

	cause := sem.cause
	if cause == nil {
		cause = lastErr(r.attempts)
	}
	o := r.outcome()
	exh := &ExhaustedError{
		Kind:        in.Kind,
		Description: in.Description,
		Value:       in.Value,
		Attempts:    r.attempts,
		Cause:       cause,
	}
	r.log.Error("input exhausted", zap.Error(exh))
	return o, exh
}

func lastErr(attempts []Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	return attempts[len(attempts)-1].Err
}

func (d *Dispatcher) waitFor(ctx context.Context, r *run) (Outcome, error) {
	in := r.in
	sem, stop := d.semantic(ctx, r, false, func(ctx context.Context, opts intent.ResolveOptions) error {
		if in.Timeout > 0 {
			opts.Timeout = in.Timeout
		}
		return d.resolver.WaitFor(ctx, in.Description, opts)
	})
	if stop != nil {
		return r.abandon(stop)
	}
	if sem.ok() {
		return r.done(sem.step, "", NotApplicable)
	}

	// No DOM search: wait for the network to settle
	timeout := d.idleTimeout
	if in.Timeout > 0 {
		timeout = in.Timeout
	}
	err := d.page.WaitNetworkIdle(ctx, timeout)
	if err == nil {
		return r.done(stepIdle, "", NotApplicable)
	}
	if stop := d.abort(ctx, err); stop != nil {
		return r.abandon(stop)
	}
	r.fail(stepIdle, err)
	return r.noop()
}

func (d *Dispatcher) scroll(ctx context.Context, r *run) (Outcome, error) {
	in := r.in
	sem, stop := d.semantic(ctx, r, false, func(ctx context.Context, _ intent.ResolveOptions) error {
		return d.resolver.Scroll(ctx, intent.ScrollOptions{Mode: in.Mode}, in.Description)
	})
	if stop != nil {
		return r.abandon(stop)
	}
	if sem.ok() {
		return r.done(sem.step, "", NotApplicable)
	}

	if in.Mode == intent.ScrollToBottom {
		tctx, cancel := context.WithTimeout(ctx, d.tacticTimeout)
		err := d.exec.ScrollToBottom(tctx, d.page)
		cancel()
		if err == nil {
			return r.done(stepBottom, "", NotApplicable)
		}
		if stop := d.abort(ctx, err); stop != nil {
			return r.abandon(stop)
		}
		r.fail(stepBottom, err)
		return r.noop()
	}

	// Never scroll blindly: no target, no scroll
	name, match, ok, err := d.walk(ctx, r, locator.Tactics(intent.KindScroll), 0, func(ctx context.Context, c locator.Candidate) error {
		_, err := d.exec.ScrollIntoView(ctx, d.page, c)
		return err
	})
	if err != nil {
		return r.abandon(err)
	}
	if ok {
		return r.done(name, match, NotApplicable)
	}
	return r.noop()
}
