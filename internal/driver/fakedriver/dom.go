package fakedriver

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/formpilot/internal/driver"
)

var defaultRect = driver.Rect{Width: 100, Height: 20}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func textMatches(have, want string, exact bool) bool {
	have, want = normalize(have), normalize(want)
	if exact {
		return have == want
	}
	return strings.Contains(have, want)
}

func isDisplayNone(style string) bool {
	return strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none")
}

var invisibleTags = map[string]bool{"head": true, "script": true, "style": true, "title": true, "meta": true, "template": true}

// visible is false when s or an ancestor is hidden
func visible(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return false
	}
	if goquery.NodeName(s) == "input" {
		if t, _ := s.Attr("type"); strings.EqualFold(t, "hidden") {
			return false
		}
	}
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		if invisibleTags[goquery.NodeName(cur)] {
			return false
		}
		if _, ok := cur.Attr("hidden"); ok {
			return false
		}
		if style, ok := cur.Attr("style"); ok && isDisplayNone(style) {
			return false
		}
	}
	return true
}

func enabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return false
	}
	if v, _ := s.Attr("aria-disabled"); v == "true" {
		return false
	}
	return true
}

// rectOf parses data-rect on s or its nearest ancestor
func rectOf(s *goquery.Selection) driver.Rect {
	holder := s.Closest("[data-rect]")
	if holder.Length() == 0 {
		return defaultRect
	}
	raw, _ := holder.Attr("data-rect")
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return defaultRect
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultRect
		}
		v[i] = f
	}
	return driver.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func inputType(s *goquery.Selection) string {
	t, _ := s.Attr("type")
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "text"
	}
	return t
}

var textInputTypes = map[string]bool{
	"text": true, "email": true, "tel": true, "url": true, "search": true,
	"password": true, "number": true, "date": true,
}

func fillable(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "textarea":
		return true
	case "input":
		return textInputTypes[inputType(s)]
	}
	v, ok := s.Attr("contenteditable")
	return ok && v != "false"
}

// role returns the explicit or implicit ARIA role of s
func role(s *goquery.Selection) string {
	if r, ok := s.Attr("role"); ok && strings.TrimSpace(r) != "" {
		return strings.Fields(r)[0]
	}
	switch goquery.NodeName(s) {
	case "button":
		return "button"
	case "a":
		if _, ok := s.Attr("href"); ok {
			return "link"
		}
	case "textarea":
		return "textbox"
	case "select":
		if _, ok := s.Attr("multiple"); ok {
			return "listbox"
		}
		return "combobox"
	case "option":
		return "option"
	case "input":
		switch t := inputType(s); t {
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox", "radio":
			return t
		case "number":
			return "spinbutton"
		case "hidden":
			return ""
		default:
			if textInputTypes[t] {
				return "textbox"
			}
		}
	}
	return ""
}

// accessibleName approximates the accessible name. Text controls are
// named only by aria-label here; label association goes through ByLabel.
func accessibleName(doc, s *goquery.Selection, r string) string {
	if v, ok := s.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if ids, ok := s.Attr("aria-labelledby"); ok {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if el := byID(doc, id); el.Length() > 0 {
				parts = append(parts, text(el))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	switch r {
	case "textbox", "combobox", "listbox", "spinbutton":
		return ""
	}
	if goquery.NodeName(s) == "input" {
		v, _ := s.Attr("value")
		return v
	}
	return text(s)
}

func byID(doc *goquery.Selection, id string) *goquery.Selection {
	return doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
}

// query evaluates q below scope. doc is the document root used to resolve
// id references.
func query(doc, scope *goquery.Selection, q driver.Query) []*goquery.Selection {
	var out []*goquery.Selection
	add := func(s *goquery.Selection) {
		for _, have := range out {
			if have.Get(0) == s.Get(0) {
				return
			}
		}
		out = append(out, s)
	}

	switch q.Kind {
	case driver.ByCSS:
		scope.Find(q.Selector).Each(func(_ int, s *goquery.Selection) { add(s) })

	case driver.ByRole:
		scope.Find("*").Each(func(_ int, s *goquery.Selection) {
			r := role(s)
			if r != q.Role {
				return
			}
			if q.Text == "" || textMatches(accessibleName(doc, s, r), q.Text, q.Exact) {
				add(s)
			}
		})

	case driver.ByText:
		scope.Find("*").Each(func(_ int, s *goquery.Selection) {
			if invisibleTags[goquery.NodeName(s)] || !textMatches(text(s), q.Text, q.Exact) {
				return
			}
			// innermost only
			inner := false
			s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
				if textMatches(text(c), q.Text, q.Exact) {
					inner = true
				}
				return !inner
			})
			if !inner {
				add(s)
			}
		})

	case driver.ByLabel:
		scope.Find("label").Each(func(_ int, l *goquery.Selection) {
			if !textMatches(text(l), q.Text, q.Exact) {
				return
			}
			if id, ok := l.Attr("for"); ok && id != "" {
				if target := byID(doc, id); target.Length() > 0 {
					add(target)
					return
				}
			}
			if c := l.Find("input, textarea, select").First(); c.Length() > 0 {
				add(c)
			}
		})
		scope.Find("[aria-label]").Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "label" {
				return
			}
			if v, _ := s.Attr("aria-label"); textMatches(v, q.Text, q.Exact) && (fillable(s) || goquery.NodeName(s) == "select") {
				add(s)
			}
		})

	case driver.ByPlaceholder:
		scope.Find("[placeholder]").Each(func(_ int, s *goquery.Selection) {
			if v, _ := s.Attr("placeholder"); textMatches(v, q.Text, q.Exact) {
				add(s)
			}
		})
	}
	return out
}

// controlValue reads the current value of an input, textarea or select
func controlValue(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "textarea":
		return s.Text()
	case "select":
		opt := selectedOption(s)
		if v, ok := opt.Attr("value"); ok {
			return v
		}
		return text(opt)
	default:
		if v, ok := s.Attr("value"); ok {
			return v
		}
		if _, ok := s.Attr("contenteditable"); ok {
			return s.Text()
		}
		return ""
	}
}

func selectedOption(s *goquery.Selection) *goquery.Selection {
	if sel := s.Find("option[selected]").First(); sel.Length() > 0 {
		return sel
	}
	return s.Find("option").First()
}

func setControlValue(s *goquery.Selection, v string) {
	switch goquery.NodeName(s) {
	case "input":
		s.SetAttr("value", v)
	default:
		s.SetText(v)
	}
}
