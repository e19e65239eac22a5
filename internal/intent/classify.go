package intent

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Category is a coarse hint about what a tap target looks like
type Category int

const (
	CategoryNone Category = iota
	CategoryStart
	CategoryNext
	CategorySubmit
	CategoryYes
	CategoryNo
	CategoryGender
	CategoryFrequency
	CategoryCurrency
)

var categoryNames = [...]string{
	CategoryNone:      "none",
	CategoryStart:     "start",
	CategoryNext:      "next",
	CategorySubmit:    "submit",
	CategoryYes:       "yes",
	CategoryNo:        "no",
	CategoryGender:    "gender",
	CategoryFrequency: "frequency",
	CategoryCurrency:  "currency",
}

func (c Category) String() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Opening quotes and their closers. Double quotes and corner brackets are
// searched first; single quotes only when none of them holds a literal.
var (
	doubleQuotes = map[rune]rune{
		'"': '"',
		'“': '”',
		'「': '」',
		'『': '』',
	}
	singleQuotes = map[rune]rune{
		'\'': '\'',
		'‘':  '’',
	}
)

// ExtractLiteral returns the first non-empty span in double quotes or
// corner brackets, else the first one in single quotes
func ExtractLiteral(s string) (string, bool) {
	runes := []rune(s)
	if lit, ok := quoted(runes, doubleQuotes); ok {
		return lit, true
	}
	return quoted(runes, singleQuotes)
}

func quoted(runes []rune, pairs map[rune]rune) (string, bool) {
	for i := 0; i < len(runes); i++ {
		closer, ok := pairs[runes[i]]
		if !ok || apostrophe(runes, i) {
			continue
		}
		j := i + 1
		for j < len(runes) && (runes[j] != closer || apostrophe(runes, j)) {
			j++
		}
		if j >= len(runes) {
			continue
		}
		if j > i+1 {
			return string(runes[i+1 : j]), true
		}
		// empty pair, resume after the closer
		i = j
	}
	return "", false
}

// apostrophe reports whether the single quote at i sits between two Latin
// letters, as in "user's"
func apostrophe(runes []rune, i int) bool {
	if r := runes[i]; r != '\'' && r != '’' {
		return false
	}
	return i > 0 && i+1 < len(runes) && unicode.Is(unicode.Latin, runes[i-1]) && unicode.Is(unicode.Latin, runes[i+1])
}

var (
	submitPattern    = regexp.MustCompile(`提交|交卷|submit`)
	nextPattern      = regexp.MustCompile(`下一题|下一页|下一步|继续|\bnext\b`)
	startPattern     = regexp.MustCompile(`立即开始|开始答题|开始作答|开始填写|开始测评|^开始|开始按钮|\bstart\b`)
	frequencyPattern = regexp.MustCompile(`每天|每日|每周|每月|每年|经常|偶尔|从不|从来不|很少|总是|有时|几乎|一周|一个月|\bdaily\b|\bweekly\b|\bmonthly\b|\bnever\b|\boften\b|\bsometimes\b`)
	currencyPattern  = regexp.MustCompile(`[0-9]+\s*[-~至到]\s*[0-9]+\s*(元|块)|[0-9]+\s*(元|块)|[¥$]\s*[0-9]|元以[上下]`)
)

var (
	yesTokens    = map[string]bool{"是": true, "是的": true, "yes": true, "有": true}
	noTokens     = map[string]bool{"否": true, "不是": true, "no": true, "没有": true}
	genderTokens = map[string]bool{"男": true, "女": true, "男性": true, "女性": true, "male": true, "female": true}
)

func categorize(description, target string) Category {
	desc := fold(description)
	tgt := fold(target)

	switch {
	case submitPattern.MatchString(tgt) || submitPattern.MatchString(desc):
		return CategorySubmit
	case nextPattern.MatchString(tgt) || nextPattern.MatchString(desc):
		return CategoryNext
	case startPattern.MatchString(tgt) || startPattern.MatchString(desc):
		return CategoryStart
	case yesTokens[tgt]:
		return CategoryYes
	case noTokens[tgt]:
		return CategoryNo
	case genderTokens[tgt]:
		return CategoryGender
	case currencyPattern.MatchString(tgt):
		return CategoryCurrency
	case frequencyPattern.MatchString(tgt):
		return CategoryFrequency
	}
	return CategoryNone
}

// fold narrows full-width forms and normalises case and spacing for regex matching
func fold(s string) string {
	return Normalize(width.Narrow.String(s))
}

// Normalize collapses runs of whitespace and lower-cases s. It is only
// used for comparisons; display text is never rewritten.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Equal compares two display strings case- and space-insensitively
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// WidthVariants returns s followed by its half-width and full-width forms,
// without duplicates
func WidthVariants(s string) []string {
	return dedupe([]string{s, width.Narrow.String(s), width.Widen.String(s)})
}

// stripFiller removes kind-specific filler words around the meaningful part
// of a description
func stripFiller(kind Kind, description string) string {
	s := strings.TrimSpace(description)
	var prefixes, suffixes []string
	switch kind {
	case KindInput:
		prefixes = []string{"请在", "请输入", "请填写", "在", "输入", "填写"}
		suffixes = []string{"的输入框", "中输入", "里输入", "输入框", "文本框", "输入区域", "文本域", "填写框", "输入栏", "的框", "框"}
	case KindSelect:
		prefixes = []string{"请选择", "选择"}
		suffixes = []string{"的下拉框", "下拉框", "下拉菜单", "下拉列表", "选择框", "下拉选择", "选择器", "下拉", "选择"}
	case KindTap:
		prefixes = []string{"点击", "单击", "勾选", "选择", "选中"}
		suffixes = []string{"按钮", "选项", "链接"}
	case KindWaitFor, KindScroll:
		prefixes = []string{"滚动到", "等待", "直到"}
		suffixes = []string{"区域", "部分", "出现", "加载完成"}
	}
	for _, p := range prefixes {
		if trimmed := strings.TrimPrefix(s, p); trimmed != s && trimmed != "" {
			s = trimmed
			break
		}
	}
	for _, suf := range suffixes {
		if trimmed := strings.TrimSuffix(s, suf); trimmed != s && trimmed != "" {
			s = trimmed
			break
		}
	}
	return strings.TrimSpace(s)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
