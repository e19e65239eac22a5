package intent

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the action family an intent belongs to
type Kind int

const (
	KindTap Kind = iota
	KindInput
	KindSelect
	KindWaitFor
	KindScroll
)

var kindNames = map[Kind]string{
	KindTap:     "tap",
	KindInput:   "input",
	KindSelect:  "select",
	KindWaitFor: "waitfor",
	KindScroll:  "scroll",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps step-file action names onto a Kind
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tap", "click":
		return KindTap, nil
	case "input", "type", "fill":
		return KindInput, nil
	case "select", "dropdown":
		return KindSelect, nil
	case "wait", "waitfor", "wait_for":
		return KindWaitFor, nil
	case "scroll":
		return KindScroll, nil
	default:
		return 0, fmt.Errorf("unknown action kind: %q", name)
	}
}

// ScrollMode selects between locating a target and scrolling to the page end
type ScrollMode int

const (
	ScrollToTarget ScrollMode = iota
	ScrollToBottom
)

func (m ScrollMode) String() string {
	if m == ScrollToBottom {
		return "bottom"
	}
	return "target"
}

// ResolveOptions are passed through to the semantic resolver
type ResolveOptions struct {
	DeepThink bool
	Timeout   time.Duration
}

// ScrollOptions are passed to the semantic resolver for scroll intents
type ScrollOptions struct {
	Mode ScrollMode
}

// Intent is the parsed form of one natural-language action request.
// It is a value type; nothing mutates it after New returns.
type Intent struct {
	Kind        Kind
	Description string
	// Literal is the quoted span of Description found by ExtractLiteral.
	Literal    string
	HasLiteral bool
	// Target is Literal when present, otherwise Description with filler
	// words for the kind removed.
	Target   string
	Category Category
	// Value is the text to enter (Input) or the option to pick (Select).
	Value   string
	Mode    ScrollMode
	Timeout time.Duration
}

// Option customises an Intent at construction time
type Option func(*Intent)

// WithValue sets the input value or select option
func WithValue(v string) Option {
	return func(in *Intent) { in.Value = v }
}

// WithMode sets the scroll mode
func WithMode(m ScrollMode) Option {
	return func(in *Intent) { in.Mode = m }
}

// WithTimeout overrides the per-call timeout (WaitFor)
func WithTimeout(d time.Duration) Option {
	return func(in *Intent) { in.Timeout = d }
}

// New classifies description for the given kind. It never fails: an
// unrecognised description yields an Intent with CategoryNone and, when
// there is no quoted literal, a Target derived from the stripped text.
func New(kind Kind, description string, opts ...Option) Intent {
	in := Intent{
		Kind:        kind,
		Description: description,
	}
	in.Literal, in.HasLiteral = ExtractLiteral(description)
	if in.HasLiteral {
		in.Target = strings.TrimSpace(in.Literal)
	} else {
		in.Target = stripFiller(kind, description)
	}
	in.Category = categorize(description, in.Target)
	for _, opt := range opts {
		opt(&in)
	}
	return in
}

// Searchable reports whether the intent has anything to look for on the page
func (in Intent) Searchable() bool {
	return in.HasLiteral || in.Category != CategoryNone
}

func (in Intent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", in.Kind, in.Description)
	if in.HasLiteral {
		fmt.Fprintf(&b, " literal=%q", in.Literal)
	}
	fmt.Fprintf(&b, " target=%q category=%s", in.Target, in.Category)
	if in.Value != "" {
		fmt.Fprintf(&b, " value=%q", in.Value)
	}
	if in.Kind == KindScroll {
		fmt.Fprintf(&b, " mode=%s", in.Mode)
	}
	return b.String()
}
