package locator

import (
	"context"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
)

// fieldCSS matches controls that accept typed text
const fieldCSS = `input:not([type]), input[type="text"], input[type="email"], input[type="tel"], ` +
	`input[type="number"], input[type="search"], input[type="url"], input[type="password"], ` +
	`textarea, [contenteditable="true"]`

var inputTactics = []Tactic{
	{Name: "input.aria-textbox", Find: findTextbox},
	{Name: "input.label", Find: findLabelled},
	{Name: "input.container", Find: findInContainer},
	{Name: "input.textarea", Find: findTextarea},
	{Name: "input.any-field", Find: findAnyField},
}

// forSynonyms runs fn for each synonym of the target until one yields a
// usable candidate
func forSynonyms(in intent.Intent, fn func(syn string) (Result, error)) (Result, error) {
	for _, syn := range intent.Synonyms(in.Target) {
		if syn == "" {
			continue
		}
		res, err := fn(syn)
		if err != nil || res.Found() {
			return res, err
		}
	}
	return NotFound, nil
}

func findTextbox(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return forSynonyms(in, func(syn string) (Result, error) {
		return lookup(ctx, page, driver.Role("textbox", syn, false), "input.aria-textbox", syn)
	})
}

func findLabelled(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return forSynonyms(in, func(syn string) (Result, error) {
		return first(ctx, page, "input.label", syn, driver.Label(syn, false), driver.Placeholder(syn, false))
	})
}

func findInContainer(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return forSynonyms(in, func(syn string) (Result, error) {
		return inContainer(ctx, page, syn, fieldCSS, "input.container")
	})
}

func findTextarea(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return lookup(ctx, page, driver.CSS("textarea"), "input.textarea", "textarea")
}

func findAnyField(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	return lookup(ctx, page, driver.CSS(fieldCSS), "input.any-field", "field")
}
