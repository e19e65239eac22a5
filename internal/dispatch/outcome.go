package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/v0xg/formpilot/internal/intent"
)

var (
	// ErrExhausted means every tactic, semantic and heuristic, failed
	ErrExhausted = errors.New("all tactics exhausted")
	// ErrNotVerified marks a select attempt whose read-back did not match
	ErrNotVerified = errors.New("selection not verified")
	// ErrNothingToSearch marks an intent with no literal and no category
	ErrNothingToSearch = errors.New("nothing to search for")
)

// Verified is the tri-state verification result of an action
type Verified int

const (
	// NotApplicable means no read-back was performed
	NotApplicable Verified = iota
	Passed
	Failed
)

func (v Verified) String() string {
	switch v {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	}
	return "n/a"
}

// Attempt records one failed step of a dispatch
type Attempt struct {
	Tactic string
	Err    error
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s: %v", a.Tactic, a.Err)
}

// Outcome is the result of one dispatched action. An Outcome with
// Succeeded false and a nil error is an observable no-op.
type Outcome struct {
	Kind        intent.Kind
	Description string
	Succeeded   bool
	// Strategy is the tactic (or semantic step) that succeeded.
	Strategy string
	// Match is the text or signature the winning tactic matched.
	Match    string
	Verified Verified
	Elapsed  time.Duration
	// Attempts lists the failed steps in the order they were tried.
	Attempts []Attempt
	// Abandoned is set when the action stopped early on a closed page or
	// a cancelled context.
	Abandoned bool
}

// Exhausted reports whether every step ran and none succeeded. Abandoned
// actions are not exhausted.
func (o Outcome) Exhausted() bool {
	return !o.Succeeded && !o.Abandoned
}

// ExhaustedError is returned when an Input action cannot be completed. It
// unwraps to ErrExhausted and to the semantic resolver's original error.
type ExhaustedError struct {
	Kind        intent.Kind
	Description string
	Value       string
	Attempts    []Attempt
	Cause       error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q: %v", e.Kind, e.Description, ErrExhausted)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if len(e.Attempts) > 0 {
		fmt.Fprintf(&b, " (%d attempts)", len(e.Attempts))
	}
	return b.String()
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrExhausted}
	}
	return []error{ErrExhausted, e.Cause}
}
