package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/crawler"
	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/executor"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/locator"
)

var (
	// ErrNoMatch means the model found no element for the task
	ErrNoMatch = errors.New("model found no matching element")
	// ErrNotSatisfied means a wait condition never held before the timeout
	ErrNotSatisfied = errors.New("condition not satisfied")
)

const (
	DefaultMaxTokens    = 1024
	DefaultWaitTimeout  = 10 * time.Second
	DefaultWaitInterval = time.Second
)

// Options configures a Resolver
type Options struct {
	Executor     *executor.Executor
	MaxTokens    int
	WaitTimeout  time.Duration
	WaitInterval time.Duration
	Logger       *zap.Logger
}

// Resolver answers semantic actions on one page with a model
type Resolver struct {
	provider     Provider
	page         driver.Page
	exec         *executor.Executor
	maxTokens    int
	waitTimeout  time.Duration
	waitInterval time.Duration
	log          *zap.Logger
}

// NewResolver creates a Resolver driving page
func NewResolver(provider Provider, page driver.Page, opts Options) *Resolver {
	r := &Resolver{
		provider:     provider,
		page:         page,
		exec:         opts.Executor,
		maxTokens:    opts.MaxTokens,
		waitTimeout:  opts.WaitTimeout,
		waitInterval: opts.WaitInterval,
		log:          opts.Logger,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.exec == nil {
		r.exec = executor.New(nil, executor.Options{Logger: r.log})
	}
	if r.maxTokens <= 0 {
		r.maxTokens = DefaultMaxTokens
	}
	if r.waitTimeout <= 0 {
		r.waitTimeout = DefaultWaitTimeout
	}
	if r.waitInterval <= 0 {
		r.waitInterval = DefaultWaitInterval
	}
	return r
}

// ask sends task with a fresh page map. Deep requests get the stricter
// prompt, a larger budget and a screenshot when one can be taken.
func (r *Resolver) ask(ctx context.Context, system, task string, deep bool) (string, *crawler.PageMap, error) {
	m, err := crawler.Snapshot(ctx, r.page)
	if err != nil {
		return "", nil, err
	}
	pageMapJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal page map: %w", err)
	}

	req := Request{
		System:    system,
		Prompt:    buildUserPrompt(string(pageMapJSON), task),
		MaxTokens: r.maxTokens,
	}
	if deep {
		req.System += deepSuffix
		req.Deep = true
		req.MaxTokens *= 2
		img, err := screenshot(ctx, r.page, maxShotWidth)
		switch {
		case err == nil:
			req.Image = img
		case driver.IsClosed(err):
			return "", nil, err
		default:
			r.log.Debug("deep think without screenshot", zap.Error(err))
		}
	}

	text, err := r.provider.Complete(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return text, m, nil
}

// locate asks the model for the element task describes and resolves it
func (r *Resolver) locate(ctx context.Context, task string, deep bool) (locator.Candidate, crawler.Element, error) {
	text, m, err := r.ask(ctx, locatePrompt, task, deep)
	if err != nil {
		return locator.Candidate{}, crawler.Element{}, err
	}
	var ans locateAnswer
	if err := parseJSON(text, '{', '}', &ans); err != nil {
		return locator.Candidate{}, crawler.Element{}, fmt.Errorf("failed to parse model answer: %w", err)
	}
	if ans.Selector == "" {
		return locator.Candidate{}, crawler.Element{}, fmt.Errorf("%w: %s", ErrNoMatch, ans.Reason)
	}

	var entry crawler.Element
	for _, el := range m.Elements {
		if el.Selector == ans.Selector {
			entry = el
			break
		}
	}
	if entry.Selector == "" {
		r.log.Debug("model selector not in page map", zap.String("selector", ans.Selector))
	}

	c, err := r.exec.Resolve(ctx, r.page, ans.Selector)
	if err != nil {
		return locator.Candidate{}, crawler.Element{}, err
	}
	c.Source = "semantic"
	r.log.Debug("model located element",
		zap.String("selector", ans.Selector),
		zap.String("reason", ans.Reason),
		zap.Bool("deep", deep),
	)
	return c, entry, nil
}

// Tap clicks the element described by description
func (r *Resolver) Tap(ctx context.Context, description string, opts intent.ResolveOptions) error {
	c, _, err := r.locate(ctx, tapTask(description), opts.DeepThink)
	if err != nil {
		return err
	}
	return r.exec.Click(ctx, c)
}

// Input types value into the field described by description
func (r *Resolver) Input(ctx context.Context, description, value string, opts intent.ResolveOptions) error {
	c, _, err := r.locate(ctx, inputTask(description, value), opts.DeepThink)
	if err != nil {
		return err
	}
	return r.exec.Type(ctx, c, value)
}

// Select chooses option in the dropdown described by description. Native
// selects are set directly; custom widgets are opened and the option is
// located on the refreshed page.
func (r *Resolver) Select(ctx context.Context, description, option string) error {
	c, entry, err := r.locate(ctx, selectTask(description, option), false)
	if err != nil {
		return err
	}
	if entry.Type == "select" {
		_, err := r.exec.SetNativeSelect(ctx, c, option)
		return err
	}
	if err := r.exec.Click(ctx, c); err != nil {
		return err
	}
	oc, _, err := r.locate(ctx, optionTask(option), false)
	if err != nil {
		return fmt.Errorf("option %q: %w", option, err)
	}
	return r.exec.Click(ctx, oc)
}

// WaitFor polls the model until the condition in description holds
func (r *Resolver) WaitFor(ctx context.Context, description string, opts intent.ResolveOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.waitTimeout
	}
	wait, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(r.waitInterval)
	defer ticker.Stop()

	for {
		text, _, err := r.ask(wait, assertPrompt, "Condition: "+description, opts.DeepThink)
		if err != nil && (driver.IsClosed(err) || ctx.Err() != nil) {
			return err
		}
		if err == nil {
			var ans assertAnswer
			if perr := parseJSON(text, '{', '}', &ans); perr == nil && ans.Satisfied {
				return nil
			}
		}
		select {
		case <-wait.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w within %s: %s", ErrNotSatisfied, timeout, description)
		case <-ticker.C:
		}
	}
}

// Scroll scrolls to the page end or brings the described element into view
func (r *Resolver) Scroll(ctx context.Context, opts intent.ScrollOptions, description string) error {
	if opts.Mode == intent.ScrollToBottom {
		return r.exec.ScrollToBottom(ctx, r.page)
	}
	c, _, err := r.locate(ctx, scrollTask(description), false)
	if err != nil {
		return err
	}
	_, err = r.exec.ScrollIntoView(ctx, r.page, c)
	return err
}

// Act asks for a short action list for instruction and runs it
func (r *Resolver) Act(ctx context.Context, instruction string) error {
	text, _, err := r.ask(ctx, actPrompt, "Instruction: "+instruction, false)
	if err != nil {
		return err
	}
	actions, err := parseActionsJSON(text)
	if err != nil {
		return fmt.Errorf("failed to parse model actions: %w", err)
	}
	if len(actions) == 0 {
		return fmt.Errorf("%w: no actions for %q", ErrNoMatch, instruction)
	}
	_, err = r.exec.Run(ctx, r.page, actions)
	return err
}
