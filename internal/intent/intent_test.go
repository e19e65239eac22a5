package intent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLiteral(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantHas bool
	}{
		{"ascii quotes", `性别选择中的"男"选项`, "男", true},
		{"chinese quotes", `点击“下一页”按钮`, "下一页", true},
		{"single quotes", `性别选择中的'男'选项`, "男", true},
		{"corner brackets", `选择「每周一次」`, "每周一次", true},
		{"first span wins", `"A" then "B"`, "A", true},
		{"full width literal", `"３０１－５００元"`, "３０１－５００元", true},
		{"empty quotes skipped", `"" and "x"`, "x", true},
		{"apostrophe before literal", `the user's "男" option's label`, "男", true},
		{"double quotes before single", `'A' then "B"`, "B", true},
		{"apostrophe in single-quoted text", `pick 'don't know' please`, "don't know", true},
		{"unbalanced", `点击"开始`, "", false},
		{"no quotes", `意见建议输入框`, "", false},
		{"empty", ``, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, has := ExtractLiteral(tc.in)
			assert.Equal(t, tc.wantHas, has)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractLiteralIndependentOfSurroundings(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fillers := []string{"", "请", "选择", "题目 3：", "   ", "中的", "abc", "，", "user's", "'", "‘", "’", "「", "it's 'a'"}
	for i := 0; i < 200; i++ {
		prefix := fillers[rng.Intn(len(fillers))]
		suffix := fillers[rng.Intn(len(fillers))]
		desc := prefix + `"每月 2-3 次"` + suffix
		got, has := ExtractLiteral(desc)
		require.True(t, has, desc)
		require.Equal(t, "每月 2-3 次", got, desc)
	}
}

func TestNewClassifiesCategories(t *testing.T) {
	cases := []struct {
		kind Kind
		desc string
		want Category
	}{
		{KindTap, "立即开始", CategoryStart},
		{KindTap, "开始答题按钮", CategoryStart},
		{KindTap, "点击下一题", CategoryNext},
		{KindTap, "下一页按钮", CategoryNext},
		{KindTap, "Next", CategoryNext},
		{KindTap, "提交问卷", CategorySubmit},
		{KindTap, `"是"`, CategoryYes},
		{KindTap, `"否"选项`, CategoryNo},
		{KindTap, `性别选择中的"男"选项`, CategoryGender},
		{KindTap, `"３０１－５００元"`, CategoryCurrency},
		{KindTap, `"301-500元"`, CategoryCurrency},
		{KindTap, `"每周2-3次"`, CategoryFrequency},
		{KindTap, `"偶尔"`, CategoryFrequency},
		{KindTap, `"几乎每天"`, CategoryFrequency},
		{KindTap, "一些随意的描述", CategoryNone},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, New(tc.kind, tc.desc).Category)
		})
	}
}

func TestNewTargets(t *testing.T) {
	assert.Equal(t, "意见建议", New(KindInput, "意见建议输入框").Target)
	assert.Equal(t, "城市", New(KindSelect, "城市下拉框").Target)
	assert.Equal(t, "男", New(KindTap, `性别选择中的"男"选项`).Target)
	assert.Equal(t, "下一页", New(KindTap, "点击下一页按钮").Target)

	in := New(KindInput, "意见建议输入框", WithValue("abc"))
	assert.Equal(t, "abc", in.Value)
	assert.False(t, in.HasLiteral)

	sc := New(KindScroll, "提交按钮", WithMode(ScrollToBottom))
	assert.Equal(t, ScrollToBottom, sc.Mode)
}

func TestSearchable(t *testing.T) {
	assert.True(t, New(KindTap, `"随便"`).Searchable())
	assert.True(t, New(KindTap, "下一题").Searchable())
	assert.False(t, New(KindTap, "那个东西").Searchable())
}

func TestNewIsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune(`"“”‘’'「」 开始下一题男女元０１２-～abc` + "\t\n")
	for i := 0; i < 500; i++ {
		n := rng.Intn(12)
		rs := make([]rune, n)
		for j := range rs {
			rs[j] = alphabet[rng.Intn(len(alphabet))]
		}
		for _, k := range []Kind{KindTap, KindInput, KindSelect, KindWaitFor, KindScroll} {
			assert.NotPanics(t, func() { _ = New(k, string(rs)) })
		}
	}
}

func TestNormalizeAndEqual(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello \t  World\n"))
	assert.True(t, Equal("上海 ", " 上海"))
	assert.True(t, Equal("Option  A", "option a"))
	assert.False(t, Equal("男", "男性"))
}

func TestWidthVariants(t *testing.T) {
	assert.Equal(t, []string{"３０１－５００元", "301-500元"}, WidthVariants("３０１－５００元"))
	assert.Equal(t, []string{"301-500元", "３０１－５００元"}, WidthVariants("301-500元"))
	assert.Equal(t, []string{"男"}, WidthVariants("男"))
}

func TestSynonyms(t *testing.T) {
	assert.Equal(t, []string{"意见建议", "意见和建议", "意见或建议"}, Synonyms("意见建议"))
	assert.Equal(t, []string{"意见和建议", "意见建议"}, Synonyms("意见和建议"))
	assert.Equal(t, []string{"手机号码", "手机号"}, Synonyms("手机号码"))
	assert.Equal(t, []string{"年龄"}, Synonyms("年龄"))
	assert.Equal(t, []string{""}, Synonyms(""))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Click")
	require.NoError(t, err)
	assert.Equal(t, KindTap, k)

	k, err = ParseKind("fill")
	require.NoError(t, err)
	assert.Equal(t, KindInput, k)

	_, err = ParseKind("hover")
	assert.Error(t, err)
}
