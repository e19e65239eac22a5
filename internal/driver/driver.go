// Package driver defines the narrow capability surface the executor needs
// from a browser automation backend. Concrete backends live in the
// roddriver and pwdriver subpackages; fakedriver serves tests.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrPageClosed is returned (wrapped) once the page or its browser is gone
	ErrPageClosed = errors.New("page closed")
	// ErrNotFound is returned when an element lookup yields nothing usable
	ErrNotFound = errors.New("element not found")
)

// QueryKind selects how a Query is matched
type QueryKind int

const (
	ByCSS QueryKind = iota
	ByRole
	ByText
	ByLabel
	ByPlaceholder
)

func (k QueryKind) String() string {
	switch k {
	case ByCSS:
		return "css"
	case ByRole:
		return "role"
	case ByText:
		return "text"
	case ByLabel:
		return "label"
	case ByPlaceholder:
		return "placeholder"
	}
	return fmt.Sprintf("query(%d)", int(k))
}

// Query describes one element lookup. Text comparisons are case- and
// whitespace-insensitive; Exact switches from substring to equality.
type Query struct {
	Kind     QueryKind `json:"kind"`
	Selector string    `json:"selector,omitempty"`
	Role     string    `json:"role,omitempty"`
	Text     string    `json:"text,omitempty"`
	Exact    bool      `json:"exact,omitempty"`
}

// CSS builds a selector query
func CSS(selector string) Query { return Query{Kind: ByCSS, Selector: selector} }

// Role builds an ARIA role query; an empty name matches any element with the role
func Role(role, name string, exact bool) Query {
	return Query{Kind: ByRole, Role: role, Text: name, Exact: exact}
}

// Text builds a visible-text query. Matches are the innermost elements
// whose text satisfies the comparison.
func Text(text string, exact bool) Query { return Query{Kind: ByText, Text: text, Exact: exact} }

// Label builds a query for form controls labelled by text
func Label(text string, exact bool) Query { return Query{Kind: ByLabel, Text: text, Exact: exact} }

// Placeholder builds a placeholder attribute query
func Placeholder(text string, exact bool) Query {
	return Query{Kind: ByPlaceholder, Text: text, Exact: exact}
}

func (q Query) String() string {
	switch q.Kind {
	case ByCSS:
		return "css=" + q.Selector
	case ByRole:
		return fmt.Sprintf("role=%s[name=%q exact=%t]", q.Role, q.Text, q.Exact)
	default:
		return fmt.Sprintf("%s=%q exact=%t", q.Kind, q.Text, q.Exact)
	}
}

// Rect is a bounding box in CSS pixels relative to the viewport
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is a viewport size in CSS pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Within reports whether r lies entirely inside a viewport of size s
func (r Rect) Within(s Size) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= s.Width && r.Y+r.Height <= s.Height
}

// Center returns the midpoint of r
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// SelectBy chooses how a native select option is matched
type SelectBy int

const (
	SelectByLabel SelectBy = iota
	SelectByValue
)

// Scope is anything elements can be queried beneath
type Scope interface {
	Query(ctx context.Context, q Query) ([]Element, error)
}

// Element is a handle to one node on the live page. Handles are only
// valid for the action that produced them.
type Element interface {
	Scope

	Click(ctx context.Context) error
	// Fill replaces the control value in one step.
	Fill(ctx context.Context, value string) error
	Clear(ctx context.Context) error
	// TypeText inserts text at the caret without clearing.
	TypeText(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	SelectOption(ctx context.Context, by SelectBy, value string) error
	// ScrollIntoView smoothly centres the element in the viewport.
	ScrollIntoView(ctx context.Context) error
	BoundingBox(ctx context.Context) (Rect, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	// SelectedLabel is the label of the chosen option of a native select.
	SelectedLabel(ctx context.Context) (string, error)
	Parent(ctx context.Context) (Element, error)
	WaitVisible(ctx context.Context, timeout time.Duration) error
}

// Page is the page-level capability surface
type Page interface {
	Scope

	Viewport(ctx context.Context) (Size, error)
	ScrollBy(ctx context.Context, dx, dy float64) error
	ScrollToBottom(ctx context.Context) error
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	// Press sends a key to whatever currently has focus.
	Press(ctx context.Context, key string) error
	// AddInitScript registers js to run before any page script on every
	// new document.
	AddInitScript(ctx context.Context, js string) error
	Screenshot(ctx context.Context) ([]byte, error)
	// EvalJSON evaluates a function expression and returns its JSON result.
	EvalJSON(ctx context.Context, js string, args ...any) ([]byte, error)
	Closed() bool
}

// IsClosed reports whether err means the page is gone
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPageClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Target closed") ||
		strings.Contains(msg, "Session closed") ||
		strings.Contains(msg, "Session with given id not found") ||
		strings.Contains(msg, "has been closed") ||
		strings.Contains(msg, "-32001")
}

// First returns the first element of els, or ErrNotFound
func First(els []Element) (Element, error) {
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}
