// Package locator holds the element lookup tactics tried after the
// semantic resolver fails. Tactics are stateless records in fixed,
// per-kind tables; the dispatcher walks a table in order and acts on the
// first usable candidate.
package locator

import (
	"context"
	"errors"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
)

const (
	// maxCandidates bounds how many matches of one query are inspected
	maxCandidates = 20
	// maxClimb bounds how far a container search walks up from its anchor
	maxClimb = 4
	// maxAnchors bounds how many text anchors a container search tries
	maxAnchors = 5
)

// Candidate is a located element that has not been acted on yet. It is
// only valid for the action that produced it.
type Candidate struct {
	Element driver.Element
	Visible bool
	Enabled bool
	// Source is the name of the tactic that produced the candidate.
	Source string
	// Match is the text or signature that matched.
	Match string
}

// Usable reports whether the candidate can be acted on
func (c Candidate) Usable() bool {
	return c.Visible && c.Enabled
}

// Result is the outcome of one tactic. A Result without a usable
// candidate means NotFound.
type Result struct {
	Candidates []Candidate
}

// NotFound is the empty result
var NotFound = Result{}

// Best returns the first usable candidate in document order
func (r Result) Best() (Candidate, bool) {
	for _, c := range r.Candidates {
		if c.Usable() {
			return c, true
		}
	}
	return Candidate{}, false
}

// Found reports whether the result holds a usable candidate
func (r Result) Found() bool {
	_, ok := r.Best()
	return ok
}

// Finder looks up candidates for an intent. It returns NotFound rather
// than an error when nothing matches; errors are reserved for driver
// failures such as a closed page.
type Finder func(ctx context.Context, page driver.Page, in intent.Intent) (Result, error)

// Tactic is a named lookup
type Tactic struct {
	Name string
	Find Finder
}

// Tactics returns the ordered tactic table for kind. Select uses the
// staged tables below and WaitFor has no DOM tactics.
func Tactics(kind intent.Kind) []Tactic {
	switch kind {
	case intent.KindTap:
		return tapTactics
	case intent.KindInput:
		return inputTactics
	case intent.KindScroll:
		return scrollTactics
	}
	return nil
}

// fatal reports errors that must stop a lookup instead of being skipped
func fatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || driver.IsClosed(err)
}

// candidates inspects els and tags them with source and match
func candidates(ctx context.Context, els []driver.Element, source, match string) ([]Candidate, error) {
	if len(els) > maxCandidates {
		els = els[:maxCandidates]
	}
	out := make([]Candidate, 0, len(els))
	for _, el := range els {
		c := Candidate{Element: el, Source: source, Match: match}
		vis, err := el.Visible(ctx)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			// detached or otherwise unusable
			out = append(out, c)
			continue
		}
		c.Visible = vis
		if vis {
			en, err := el.Enabled(ctx)
			if err != nil && fatal(err) {
				return nil, err
			}
			c.Enabled = err == nil && en
		}
		out = append(out, c)
	}
	return out, nil
}

// lookup runs q against scope and returns the candidates. Non-fatal query
// errors count as no match.
func lookup(ctx context.Context, scope driver.Scope, q driver.Query, source, match string) (Result, error) {
	els, err := scope.Query(ctx, q)
	if err != nil {
		if fatal(err) {
			return NotFound, err
		}
		return NotFound, nil
	}
	cands, err := candidates(ctx, els, source, match)
	if err != nil {
		return NotFound, err
	}
	return Result{Candidates: cands}, nil
}

// first returns the first result of queries that holds a usable candidate
func first(ctx context.Context, scope driver.Scope, source, match string, queries ...driver.Query) (Result, error) {
	for _, q := range queries {
		res, err := lookup(ctx, scope, q, source, match)
		if err != nil {
			return NotFound, err
		}
		if res.Found() {
			return res, nil
		}
	}
	return NotFound, nil
}

// Container finds the smallest element around visible text that holds a
// match for css. It starts at each text anchor (innermost element whose
// text contains text) and climbs at most maxClimb parents. It returns the
// container and the matches inside it, or nil when none qualifies.
func Container(ctx context.Context, page driver.Page, text, css string) (driver.Element, []driver.Element, error) {
	if text == "" {
		return nil, nil, nil
	}
	anchors, err := page.Query(ctx, driver.Text(text, false))
	if err != nil {
		if fatal(err) {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	if len(anchors) > maxAnchors {
		anchors = anchors[:maxAnchors]
	}
	for _, anchor := range anchors {
		if vis, err := anchor.Visible(ctx); err != nil || !vis {
			if err != nil && fatal(err) {
				return nil, nil, err
			}
			continue
		}
		cur := anchor
		for level := 0; level <= maxClimb; level++ {
			els, err := cur.Query(ctx, driver.CSS(css))
			if err != nil && fatal(err) {
				return nil, nil, err
			}
			if len(els) > 0 {
				return cur, els, nil
			}
			parent, err := cur.Parent(ctx)
			if err != nil {
				if fatal(err) {
					return nil, nil, err
				}
				break
			}
			cur = parent
		}
	}
	return nil, nil, nil
}

// inContainer wraps Container as a tactic body
func inContainer(ctx context.Context, page driver.Page, text, css, source string) (Result, error) {
	_, els, err := Container(ctx, page, text, css)
	if err != nil || len(els) == 0 {
		return NotFound, err
	}
	cands, err := candidates(ctx, els, source, text)
	if err != nil {
		return NotFound, err
	}
	return Result{Candidates: cands}, nil
}

var scrollTactics = []Tactic{
	{Name: "scroll.text", Find: findScrollTarget},
}

// findScrollTarget locates the first visible element containing the target text
func findScrollTarget(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	if in.Target == "" {
		return NotFound, nil
	}
	var queries []driver.Query
	for _, v := range intent.WidthVariants(in.Target) {
		queries = append(queries, driver.Text(v, false))
	}
	return first(ctx, page, "scroll.text", in.Target, queries...)
}
