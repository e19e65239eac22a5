// Package verify confirms that a select action took effect by reading back
// the displayed selection and comparing it with the requested option.
package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/locator"
)

const (
	DefaultTimeout  = 1500 * time.Millisecond
	DefaultInterval = 150 * time.Millisecond
)

// Options configures polling
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Logger   *zap.Logger
}

// Verifier polls the displayed selection of a question
type Verifier struct {
	timeout  time.Duration
	interval time.Duration
	log      *zap.Logger
}

// New creates a Verifier, filling unset options with defaults
func New(opts Options) *Verifier {
	v := &Verifier{timeout: opts.Timeout, interval: opts.Interval, log: opts.Logger}
	if v.timeout <= 0 {
		v.timeout = DefaultTimeout
	}
	if v.interval <= 0 {
		v.interval = DefaultInterval
	}
	if v.log == nil {
		v.log = zap.NewNop()
	}
	return v
}

// Target names the elements that display a question's current selection.
// Native is set for a native <select>; Trigger and Container describe a
// custom widget. Any of them may be nil.
type Target struct {
	Native    driver.Element
	Trigger   driver.Element
	Container driver.Element
}

// Result is the outcome of one verification
type Result struct {
	Matched bool
	// Observed holds the last texts read back, for logging.
	Observed []string
}

// Selection polls until one of the displayed texts equals want (case- and
// space-insensitive) or the timeout passes. A mismatch is not an error;
// errors are returned only for a closed page or a cancelled ctx.
func (v *Verifier) Selection(ctx context.Context, page driver.Page, t Target, want string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	var res Result
	for {
		observed, err := v.read(ctx, page, t)
		if err != nil {
			if driver.IsClosed(err) || errors.Is(err, context.Canceled) {
				return res, err
			}
		}
		res.Observed = observed
		for _, text := range observed {
			if intent.Equal(text, want) {
				res.Matched = true
				return res, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				v.log.Debug("selection not confirmed",
					zap.String("want", want), zap.Strings("observed", res.Observed))
				return res, nil
			}
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

// read collects the displayed texts in priority order. When the question
// container is known only displays inside it count: a trigger found
// elsewhere on the page may belong to another question. The page-global
// vendor display is consulted only when there is neither container nor a
// readable trigger.
func (v *Verifier) read(ctx context.Context, page driver.Page, t Target) ([]string, error) {
	var out []string
	addAll := func(scope driver.Scope, q driver.Query) error {
		els, err := scope.Query(ctx, q)
		if err != nil {
			return err
		}
		for _, el := range els {
			s, err := display(ctx, el)
			if err != nil {
				return err
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return nil
	}

	if t.Native != nil {
		label, err := t.Native.SelectedLabel(ctx)
		if err != nil {
			return out, err
		}
		if strings.TrimSpace(label) != "" {
			out = append(out, label)
		}
		return out, nil
	}

	selectedCSS := driver.CSS(locator.VendorCSS(func(v locator.Vendor) string { return v.Selected }))

	if t.Container != nil {
		triggerCSS := driver.CSS(`[role="combobox"], ` + locator.VendorCSS(func(v locator.Vendor) string { return v.Trigger }))
		for _, q := range []driver.Query{selectedCSS, triggerCSS} {
			if err := addAll(t.Container, q); err != nil {
				return out, err
			}
			if len(out) > 0 {
				break
			}
		}
		return out, nil
	}

	if t.Trigger != nil {
		if err := addAll(t.Trigger, selectedCSS); err != nil {
			return out, err
		}
		s, err := display(ctx, t.Trigger)
		if err != nil {
			return out, err
		}
		if s != "" {
			out = append(out, s)
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	err := addAll(page, selectedCSS)
	return out, err
}

// display returns the element's text, or its value when the text is empty
func display(ctx context.Context, el driver.Element) (string, error) {
	s, err := el.Text(ctx)
	if err != nil {
		if driver.IsClosed(err) {
			return "", err
		}
		return "", nil
	}
	if strings.TrimSpace(s) != "" {
		return s, nil
	}
	val, err := el.Value(ctx)
	if err != nil {
		if driver.IsClosed(err) {
			return "", err
		}
		return "", nil
	}
	return val, nil
}
