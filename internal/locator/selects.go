package locator

import (
	"context"
	"fmt"
	"strings"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
)

// Select lookups run as a pipeline: a native select, else a trigger that
// opens a custom widget, an option inside it, and finally typing into the
// widget's search box.

// NativeSelect finds a native <select> in the question container, falling
// back to the first one on the page
var NativeSelect = Tactic{Name: "select.native", Find: findNativeSelect}

// Triggers open custom select widgets: page-global lookups first, the
// container-scoped one last
var Triggers = []Tactic{
	{Name: "select.trigger.combobox", Find: findComboboxTrigger},
	{Name: "select.trigger.haspopup", Find: findHaspopupTrigger},
	{Name: "select.trigger.vendor", Find: findVendorTrigger},
	{Name: "select.trigger.container", Find: findContainerTrigger},
}

// Options locate the requested entry of an open widget. They match
// Intent.Value.
var Options = []Tactic{
	{Name: "select.option.role", Find: needsValue(findRoleOption)},
	{Name: "select.option.listbox", Find: needsValue(findListboxOption)},
	{Name: "select.option.panel", Find: needsValue(findPanelOption)},
	{Name: "select.option.global", Find: needsValue(findGlobalOption)},
	{Name: "select.option.text", Find: needsValue(findAnyTextOption)},
}

// needsValue turns option lookups without a requested value into NotFound
func needsValue(find Finder) Finder {
	return func(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
		if strings.TrimSpace(in.Value) == "" {
			return NotFound, nil
		}
		return find(ctx, page, in)
	}
}

// Search finds a visible combobox filter input
var Search = Tactic{Name: "select.search", Find: findSearchInput}

const (
	haspopupCSS     = `[aria-haspopup="listbox"]`
	globalOptionCSS = `li, div[role="option"], [role="menuitem"]`
)

func findNativeSelect(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	res, err := inContainer(ctx, page, in.Target, "select", "select.native")
	if err != nil || res.Found() {
		return res, err
	}
	return lookup(ctx, page, driver.CSS("select"), "select.native", "select")
}

func findComboboxTrigger(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	if in.Target == "" {
		return NotFound, nil
	}
	return lookup(ctx, page, driver.Role("combobox", in.Target, false), "select.trigger.combobox", in.Target)
}

// findHaspopupTrigger prefers a popup trigger named after the target or
// sitting in the target's question, then takes the first one on the page
func findHaspopupTrigger(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	if in.Target != "" && !strings.ContainsAny(in.Target, `"\`) {
		named := fmt.Sprintf(`%s[aria-label*="%s"]`, haspopupCSS, in.Target)
		res, err := lookup(ctx, page, driver.CSS(named), "select.trigger.haspopup", in.Target)
		if err != nil || res.Found() {
			return res, err
		}
		res, err = inContainer(ctx, page, in.Target, haspopupCSS, "select.trigger.haspopup")
		if err != nil || res.Found() {
			return res, err
		}
	}
	return lookup(ctx, page, driver.CSS(haspopupCSS), "select.trigger.haspopup", haspopupCSS)
}

func findVendorTrigger(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	for _, v := range Vendors {
		res, err := lookup(ctx, page, driver.CSS(v.Trigger), "select.trigger.vendor", v.Name)
		if err != nil || res.Found() {
			return res, err
		}
	}
	return NotFound, nil
}

func findContainerTrigger(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	css := strings.Join([]string{haspopupCSS, `[role="combobox"]`, VendorCSS(func(v Vendor) string { return v.Trigger })}, ", ")
	return inContainer(ctx, page, in.Target, css, "select.trigger.container")
}

func findRoleOption(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return lookup(ctx, page, driver.Role("option", in.Value, true), "select.option.role", in.Value)
}

// findListboxOption searches each visible listbox for the option text
func findListboxOption(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	boxes, err := lookup(ctx, page, driver.Role("listbox", "", false), "select.option.listbox", in.Value)
	if err != nil {
		return NotFound, err
	}
	for _, box := range boxes.Candidates {
		if !box.Visible {
			continue
		}
		res, err := lookup(ctx, box.Element, driver.Text(in.Value, true), "select.option.listbox", in.Value)
		if err != nil || res.Found() {
			return res, err
		}
	}
	return NotFound, nil
}

// findPanelOption searches the open popup of each known vendor
func findPanelOption(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	for _, v := range Vendors {
		panels, err := lookup(ctx, page, driver.CSS(v.Panel), "select.option.panel", v.Name)
		if err != nil {
			return NotFound, err
		}
		for _, panel := range panels.Candidates {
			if !panel.Visible {
				continue
			}
			res, err := lookup(ctx, panel.Element, driver.Text(in.Value, true), "select.option.panel", v.Name)
			if err != nil || res.Found() {
				return res, err
			}
		}
	}
	return NotFound, nil
}

// findGlobalOption matches list items and menu entries by exact text
func findGlobalOption(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	els, err := page.Query(ctx, driver.CSS(globalOptionCSS))
	if err != nil {
		if fatal(err) {
			return NotFound, err
		}
		return NotFound, nil
	}
	var matched []driver.Element
	for _, el := range els {
		txt, err := el.Text(ctx)
		if err != nil {
			if fatal(err) {
				return NotFound, err
			}
			continue
		}
		if intent.Equal(txt, in.Value) {
			matched = append(matched, el)
			if len(matched) >= maxCandidates {
				break
			}
		}
	}
	cands, err := candidates(ctx, matched, "select.option.global", in.Value)
	if err != nil {
		return NotFound, err
	}
	return Result{Candidates: cands}, nil
}

func findAnyTextOption(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return first(ctx, page, "select.option.text", in.Value, driver.Text(in.Value, true), driver.Text(in.Value, false))
}

func findSearchInput(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	css := strings.Join([]string{
		VendorCSS(func(v Vendor) string { return v.Search }),
		`input[role="combobox"]`,
		`[role="combobox"] input`,
		`input[aria-autocomplete]`,
	}, ", ")
	return lookup(ctx, page, driver.CSS(css), "select.search", "search")
}
