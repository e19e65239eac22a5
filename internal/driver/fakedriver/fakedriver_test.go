package fakedriver

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/formpilot/internal/driver"
)

const fixture = `<html><body>
<div id="q1" data-rect="0,0,600,200">
  <span id="hidden-male" hidden>男</span>
  <label id="male"><input type="radio" name="g" id="r1"> 男</label>
  <label id="female"><input type="radio" name="g" id="r2"> 女</label>
</div>
<div id="q2">
  <label for="advice">意见和建议</label>
  <textarea id="advice"></textarea>
  <input id="name" aria-label="姓名" placeholder="请输入姓名">
  <button id="go" style="display: none">下一页</button>
  <button id="next">下一页</button>
  <button id="off" disabled>提交</button>
</div>
<select id="city"><option value="">请选择</option><option value="sh">上海</option><option value="bj">北京</option></select>
<div id="far" data-rect="0,2000,200,40">底部</div>
</body></html>`

func ids(els []driver.Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, el.(*Element).ID())
	}
	return out
}

func TestQueryKinds(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)

	els, err := p.Query(ctx, driver.Text("男", true))
	require.NoError(t, err)
	assert.Equal(t, []string{"hidden-male", "male"}, ids(els))

	els, err = p.Query(ctx, driver.Role("button", "下一页", true))
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "next"}, ids(els))

	els, err = p.Query(ctx, driver.Role("textbox", "姓名", true))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, ids(els))

	// textbox names come from aria-label only
	els, err = p.Query(ctx, driver.Role("textbox", "意见和建议", false))
	require.NoError(t, err)
	assert.Empty(t, els)

	els, err = p.Query(ctx, driver.Label("意见和建议", false))
	require.NoError(t, err)
	assert.Equal(t, []string{"advice"}, ids(els))

	els, err = p.Query(ctx, driver.Placeholder("姓名", false))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, ids(els))

	els, err = p.Query(ctx, driver.CSS("select"))
	require.NoError(t, err)
	assert.Equal(t, []string{"city"}, ids(els))
}

func TestVisibilityAndEnabled(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)

	els, err := p.Query(ctx, driver.CSS("#go, #next, #off"))
	require.NoError(t, err)
	require.Len(t, els, 3)

	vis, err := els[0].Visible(ctx)
	require.NoError(t, err)
	assert.False(t, vis)
	assert.Error(t, els[0].Click(ctx))

	vis, err = els[1].Visible(ctx)
	require.NoError(t, err)
	assert.True(t, vis)

	en, err := els[2].Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, en)
	assert.Error(t, els[2].Click(ctx))
}

func TestClickLabelChecksRadioAndFiresHooks(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)
	var fired []string
	p.OnClick("#q1", func(s *goquery.Selection) {
		id, _ := s.Attr("id")
		fired = append(fired, id)
	})

	els, err := p.Query(ctx, driver.CSS("#male"))
	require.NoError(t, err)
	require.NoError(t, els[0].Click(ctx))

	_, checked := p.Find("#r1").Attr("checked")
	assert.True(t, checked)
	assert.Equal(t, []string{"male"}, p.Clicks())
	assert.Equal(t, []string{"q1"}, fired)
}

func TestEditing(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)
	els, err := p.Query(ctx, driver.CSS("#advice"))
	require.NoError(t, err)
	el := els[0]

	require.NoError(t, el.Fill(ctx, "abc"))
	require.NoError(t, el.TypeText(ctx, "d"))
	assert.Equal(t, "abcd", p.ValueOf("#advice"))
	require.NoError(t, el.Clear(ctx))
	assert.Equal(t, "", p.ValueOf("#advice"))

	btn, err := p.Query(ctx, driver.CSS("#next"))
	require.NoError(t, err)
	assert.Error(t, btn[0].Fill(ctx, "x"))
}

func TestSelectOption(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)
	els, err := p.Query(ctx, driver.CSS("#city"))
	require.NoError(t, err)
	sel := els[0]

	label, err := sel.SelectedLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "请选择", label)

	require.NoError(t, sel.SelectOption(ctx, driver.SelectByLabel, "北京"))
	label, err = sel.SelectedLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "北京", label)

	require.NoError(t, sel.SelectOption(ctx, driver.SelectByValue, "sh"))
	v, err := sel.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sh", v)

	err = sel.SelectOption(ctx, driver.SelectByLabel, "广州")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestGeometryAndScrolling(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)
	vp, err := p.Viewport(ctx)
	require.NoError(t, err)

	els, err := p.Query(ctx, driver.CSS("#far"))
	require.NoError(t, err)
	box, err := els[0].BoundingBox(ctx)
	require.NoError(t, err)
	assert.False(t, box.Within(vp))

	require.NoError(t, els[0].ScrollIntoView(ctx))
	box, err = els[0].BoundingBox(ctx)
	require.NoError(t, err)
	assert.True(t, box.Within(vp))
	assert.Equal(t, 1, p.ScrollCalls())

	// no data-rect on the element or its ancestors
	els, err = p.Query(ctx, driver.CSS("#city"))
	require.NoError(t, err)
	box, err = els[0].BoundingBox(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultRect.Width, box.Width)
}

func TestKeyHooksFollowFocus(t *testing.T) {
	ctx := context.Background()
	p := MustNew(`<input id="search" class="search">`)
	entered := ""
	p.OnKey(".search", "Enter", func(s *goquery.Selection) {
		entered, _ = s.Attr("value")
	})
	els, err := p.Query(ctx, driver.CSS("#search"))
	require.NoError(t, err)
	require.NoError(t, els[0].Fill(ctx, "上海"))
	require.NoError(t, p.Press(ctx, "Enter"))
	assert.Equal(t, "上海", entered)
	assert.Equal(t, []string{"Enter"}, p.Keys())
}

func TestClosedPage(t *testing.T) {
	ctx := context.Background()
	p := MustNew(fixture)
	els, err := p.Query(ctx, driver.CSS("#next"))
	require.NoError(t, err)
	p.Close()

	_, err = p.Query(ctx, driver.CSS("#next"))
	assert.ErrorIs(t, err, driver.ErrPageClosed)
	assert.True(t, driver.IsClosed(els[0].Click(ctx)))
	assert.True(t, p.Closed())
}
