package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/driver/fakedriver"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/locator"
)

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *recordingSleeper) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func candidate(t *testing.T, page *fakedriver.Page, css string) locator.Candidate {
	t.Helper()
	els, err := page.Query(context.Background(), driver.CSS(css))
	require.NoError(t, err)
	require.NotEmpty(t, els, css)
	return locator.Candidate{Element: els[0], Visible: true, Enabled: true, Source: "test"}
}

func TestHumanizerBounds(t *testing.T) {
	for _, level := range []int{1, 3} {
		h := NewHumanizer(level, 42, nil)
		for i := 0; i < 200; i++ {
			d := h.TapDelay()
			minD := time.Duration(tapBaseMinMS+level*tapLevelMinMS) * time.Millisecond
			maxD := time.Duration(tapBaseMaxMS+level*tapLevelMaxMS) * time.Millisecond
			assert.GreaterOrEqual(t, d, minD)
			assert.LessOrEqual(t, d, maxD)

			k := h.KeyDelay()
			assert.GreaterOrEqual(t, k, 40*time.Millisecond)
			assert.LessOrEqual(t, k, 140*time.Millisecond)
		}
	}
}

func TestHumanizerDisabled(t *testing.T) {
	rec := &recordingSleeper{}
	for _, h := range []*Humanizer{nil, NewHumanizer(0, 1, rec.sleep), NewHumanizer(-2, 1, rec.sleep)} {
		assert.False(t, h.Enabled())
		assert.Zero(t, h.TapDelay())
		assert.Zero(t, h.KeyDelay())
		require.NoError(t, h.BeforeTap(context.Background()))
		require.NoError(t, h.BetweenKeys(context.Background()))
	}
	assert.Empty(t, rec.all())
}

func TestHumanizerSeedIsDeterministic(t *testing.T) {
	a := NewHumanizer(2, 7, nil)
	b := NewHumanizer(2, 7, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.TapDelay(), b.TapDelay())
	}
}

func TestPacingBudgetsCoverTheLongestPause(t *testing.T) {
	h := NewHumanizer(2, 3, nil)
	for i := 0; i < 200; i++ {
		assert.LessOrEqual(t, h.TapDelay(), h.TapBudget())
	}
	assert.Equal(t, 4*140*time.Millisecond, h.TypingBudget("题目清晰"))
	assert.Zero(t, h.TypingBudget(""))

	var off *Humanizer
	assert.Zero(t, off.TapBudget())
	assert.Zero(t, off.TypingBudget("题目清晰"))
}

func TestSleepWithContextHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepWithContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepWithContext(context.Background(), 0))
}

func TestClickPausesBeforeTap(t *testing.T) {
	page := fakedriver.MustNew(`<body><button id="b">开始</button></body>`)
	rec := &recordingSleeper{}
	x := New(NewHumanizer(1, 3, rec.sleep), Options{})

	require.NoError(t, x.Click(context.Background(), candidate(t, page, "#b")))
	assert.Equal(t, []string{"b"}, page.Clicks())
	require.Len(t, rec.all(), 1)
	assert.GreaterOrEqual(t, rec.all()[0], 100*time.Millisecond)
}

func TestTypeIsIdempotent(t *testing.T) {
	for _, level := range []int{0, 2} {
		page := fakedriver.MustNew(`<body><input id="f" value="old"></body>`)
		rec := &recordingSleeper{}
		x := New(NewHumanizer(level, 9, rec.sleep), Options{AutoWaitVisible: time.Second})
		c := candidate(t, page, "#f")

		require.NoError(t, x.Type(context.Background(), c, "abc"))
		require.NoError(t, x.Type(context.Background(), c, "abc"))
		assert.Equal(t, "abc", page.ValueOf("#f"), "level %d", level)

		if level > 0 {
			// two keystroke gaps per call for three characters
			assert.Len(t, rec.all(), 4)
			for _, d := range rec.all() {
				assert.GreaterOrEqual(t, d, 40*time.Millisecond)
				assert.LessOrEqual(t, d, 140*time.Millisecond)
			}
		} else {
			assert.Empty(t, rec.all())
		}
	}
}

func TestTypeRejectsHiddenWithAutoWait(t *testing.T) {
	page := fakedriver.MustNew(`<body><input id="f" hidden></body>`)
	x := New(nil, Options{AutoWaitVisible: time.Second})
	err := x.Type(context.Background(), candidate(t, page, "#f"), "x")
	assert.Error(t, err)
}

func TestSetNativeSelect(t *testing.T) {
	page := fakedriver.MustNew(`<body><select id="s">
		<option value="">请选择</option>
		<option value="bk">本科</option>
		<option value="ss">硕士</option>
	</select></body>`)
	x := New(nil, Options{})
	c := candidate(t, page, "#s")
	ctx := context.Background()

	by, err := x.SetNativeSelect(ctx, c, "本科")
	require.NoError(t, err)
	assert.Equal(t, driver.SelectByLabel, by)
	label, err := c.Element.SelectedLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "本科", label)

	by, err = x.SetNativeSelect(ctx, c, "ss")
	require.NoError(t, err)
	assert.Equal(t, driver.SelectByValue, by)
	label, err = c.Element.SelectedLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "硕士", label)

	_, err = x.SetNativeSelect(ctx, c, "博士")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestScrollIntoViewSkipsVisibleTargets(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<p id="near" data-rect="10,100,200,20">近</p>
		<p id="far" data-rect="10,2000,200,20">远</p>
	</body>`)
	x := New(nil, Options{})
	ctx := context.Background()

	scrolled, err := x.ScrollIntoView(ctx, page, candidate(t, page, "#near"))
	require.NoError(t, err)
	assert.False(t, scrolled)
	assert.Zero(t, page.ScrollCalls())

	scrolled, err = x.ScrollIntoView(ctx, page, candidate(t, page, "#far"))
	require.NoError(t, err)
	assert.True(t, scrolled)
	assert.Equal(t, 1, page.ScrollCalls())
}

func TestActDispatchesByKind(t *testing.T) {
	page := fakedriver.MustNew(`<body><button id="b">好</button><input id="f"></body>`)
	x := New(nil, Options{})
	ctx := context.Background()

	require.NoError(t, x.Act(ctx, page, intent.KindTap, candidate(t, page, "#b"), ""))
	require.NoError(t, x.Act(ctx, page, intent.KindInput, candidate(t, page, "#f"), "v"))
	assert.Equal(t, "v", page.ValueOf("#f"))
	assert.Error(t, x.Act(ctx, page, intent.KindSelect, candidate(t, page, "#f"), "v"))
}

func TestRunSkipsFailedActions(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<input id="name">
		<button id="go">提交</button>
	</body>`)
	x := New(nil, Options{})
	done, err := x.Run(context.Background(), page, []Action{
		{Type: "type", Selector: "#name", Text: "张三"},
		{Type: "click", Selector: "#missing"},
		{Type: "click", Selector: "#go"},
		{Type: "hover", Selector: "#go"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	assert.Equal(t, "张三", page.ValueOf("#name"))
	assert.Equal(t, []string{"go"}, page.Clicks())
}

func TestRunFailsWhenNothingSucceeds(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	x := New(nil, Options{})
	_, err := x.Run(context.Background(), page, []Action{{Type: "click", Selector: "#nope"}})
	assert.ErrorIs(t, err, ErrNoActionSucceeded)

	page.Close()
	_, err = x.Run(context.Background(), page, []Action{{Type: "click", Selector: "#nope"}})
	assert.ErrorIs(t, err, driver.ErrPageClosed)
}

func TestObserverSeesClickAndType(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<button id="go" data-rect="10,20,80,30">Go</button>
		<input id="name" data-rect="10,60,200,24">
	</body>`)
	var seen []string
	var boxes []driver.Rect
	x := New(nil, Options{Observer: func(action string, box driver.Rect) {
		seen = append(seen, action)
		boxes = append(boxes, box)
	}})

	require.NoError(t, x.Click(context.Background(), candidate(t, page, "#go")))
	require.NoError(t, x.Type(context.Background(), candidate(t, page, "#name"), "张三"))

	assert.Equal(t, []string{"click", "type"}, seen)
	assert.Equal(t, driver.Rect{X: 10, Y: 20, Width: 80, Height: 30}, boxes[0])
	assert.Equal(t, driver.Rect{X: 10, Y: 60, Width: 200, Height: 24}, boxes[1])
}
