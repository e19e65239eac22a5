package locator

import (
	"context"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/intent"
)

var tapTactics = []Tactic{
	{Name: "tap.category", Find: findCategory},
	{Name: "tap.literal", Find: findLiteral},
}

// categoryTexts are the usual captions for button-like categories
var categoryTexts = map[intent.Category][]string{
	intent.CategoryStart:  {"开始", "立即开始", "开始答题", "开始作答", "开始填写", "Start"},
	intent.CategoryNext:   {"下一题", "下一页", "下一步", "继续", "Next"},
	intent.CategorySubmit: {"提交", "提交问卷", "交卷", "提交答案", "Submit"},
	intent.CategoryYes:    {"是"},
	intent.CategoryNo:     {"否"},
}

var buttonCategories = map[intent.Category]bool{
	intent.CategoryStart:  true,
	intent.CategoryNext:   true,
	intent.CategorySubmit: true,
}

// tapTexts lists the target in both widths followed by the category defaults
func tapTexts(in intent.Intent) []string {
	var texts []string
	if in.Target != "" {
		texts = append(texts, intent.WidthVariants(in.Target)...)
	}
	texts = append(texts, categoryTexts[in.Category]...)
	seen := make(map[string]bool, len(texts))
	out := texts[:0]
	for _, t := range texts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// findCategory matches well-known captions exactly. Buttons are searched
// by role first; option-like categories (yes/no, gender, frequency,
// currency) by exact text, so the first visible match in document order
// wins.
func findCategory(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	if in.Category == intent.CategoryNone {
		return NotFound, nil
	}
	texts := tapTexts(in)
	if buttonCategories[in.Category] {
		for _, t := range texts {
			res, err := lookup(ctx, page, driver.Role("button", t, true), "tap.category", t)
			if err != nil || res.Found() {
				return res, err
			}
		}
	}
	for _, t := range texts {
		res, err := lookup(ctx, page, driver.Text(t, true), "tap.category", t)
		if err != nil || res.Found() {
			return res, err
		}
	}
	return NotFound, nil
}

// findLiteral searches the quoted literal (or, for categorised intents,
// the target) anywhere on the page: exact text first, then containment
func findLiteral(ctx context.Context, page driver.Page, in intent.Intent) (Result, error) {
	text := in.Literal
	if !in.HasLiteral {
		if in.Category == intent.CategoryNone {
			return NotFound, nil
		}
		text = in.Target
	}
	if text == "" {
		return NotFound, nil
	}
	variants := intent.WidthVariants(text)
	var queries []driver.Query
	for _, v := range variants {
		queries = append(queries, driver.Text(v, true))
	}
	for _, v := range variants {
		queries = append(queries, driver.Text(v, false))
	}
	return first(ctx, page, "tap.literal", text, queries...)
}
