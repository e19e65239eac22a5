package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/driver/fakedriver"
	"github.com/v0xg/formpilot/internal/executor"
	"github.com/v0xg/formpilot/internal/intent"
	"github.com/v0xg/formpilot/internal/verify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errResolver = errors.New("resolver could not find it")

// fakeResolver records calls and answers with fn
type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	fn    func(call string) error
}

func (f *fakeResolver) record(method, description string, deep bool) error {
	call := method + ":" + description
	if deep {
		call += ":deep"
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.fn == nil {
		return errResolver
	}
	return f.fn(call)
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeResolver) Tap(_ context.Context, description string, opts intent.ResolveOptions) error {
	return f.record("tap", description, opts.DeepThink)
}

func (f *fakeResolver) Input(_ context.Context, description, _ string, opts intent.ResolveOptions) error {
	return f.record("input", description, opts.DeepThink)
}

func (f *fakeResolver) Select(_ context.Context, description, _ string) error {
	return f.record("select", description, false)
}

func (f *fakeResolver) WaitFor(_ context.Context, description string, opts intent.ResolveOptions) error {
	return f.record("waitfor", description, opts.DeepThink)
}

func (f *fakeResolver) Scroll(_ context.Context, _ intent.ScrollOptions, description string) error {
	return f.record("scroll", description, false)
}

// actorResolver also follows free-form instructions
type actorResolver struct {
	fakeResolver
	act func(instruction string) error
}

func (a *actorResolver) Act(_ context.Context, instruction string) error {
	a.mu.Lock()
	a.calls = append(a.calls, "act:"+instruction)
	a.mu.Unlock()
	return a.act(instruction)
}

func newDispatcher(page driver.Page, resolver Resolver, log *zap.Logger) *Dispatcher {
	return New(page, Options{
		Resolver:      resolver,
		Verifier:      verify.New(verify.Options{Timeout: 40 * time.Millisecond, Interval: 5 * time.Millisecond}),
		TacticTimeout: time.Second,
		DeepThink:     true,
		Logger:        log,
	})
}

func tactics(o Outcome) []string {
	out := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		out = append(out, a.Tactic)
	}
	return out
}

func TestScenarioGenderTap(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<div class="q"><span>性别</span>
			<span id="decoy" style="display: none">男</span>
			<label id="m1"><input type="radio" name="g" id="r1"> 男</label>
			<label id="f1"><input type="radio" name="g" id="r2"> 女</label>
		</div>
		<label id="m2"><input type="radio" name="h"> 男</label>
	</body>`)
	d := newDispatcher(page, nil, nil)

	o, err := d.Tap(context.Background(), `性别选择中的"男"选项`)
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "tap.category", o.Strategy)
	assert.Equal(t, []string{"m1"}, page.Clicks())
	_, checked := page.Find("#r1").Attr("checked")
	assert.True(t, checked)
	assert.Equal(t, NotApplicable, o.Verified)
}

func TestScenarioFullWidthCurrency(t *testing.T) {
	page := fakedriver.MustNew(`<body><ul>
		<li id="a">１００元以下</li>
		<li id="b">３０１－５００元</li>
	</ul></body>`)
	d := newDispatcher(page, nil, nil)

	o, err := d.Tap(context.Background(), `"３０１－５００元"`)
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "tap.category", o.Strategy)
	assert.Equal(t, []string{"b"}, page.Clicks())
}

func TestScenarioSynonymLabel(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<label for="advice">意见和建议</label>
		<textarea id="advice"></textarea>
	</body>`)
	d := newDispatcher(page, nil, nil)

	o, err := d.Input(context.Background(), "意见建议输入框", "题目清晰")
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "input.label", o.Strategy)
	assert.Equal(t, "意见和建议", o.Match)
	assert.Equal(t, []string{"input.aria-textbox"}, tactics(o))
	assert.Equal(t, "题目清晰", page.ValueOf("#advice"))
}

func TestInputTwiceLeavesSingleValue(t *testing.T) {
	page := fakedriver.MustNew(`<body><input id="n" aria-label="姓名"></body>`)
	d := newDispatcher(page, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		o, err := d.Input(ctx, "姓名", "abc")
		require.NoError(t, err)
		assert.Equal(t, "input.aria-textbox", o.Strategy)
	}
	assert.Equal(t, "abc", page.ValueOf("#n"))
}

func TestSemanticResolverFirst(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>下一页</button></body>`)
	res := &fakeResolver{fn: func(string) error { return nil }}
	d := newDispatcher(page, res, nil)

	o, err := d.Tap(context.Background(), "下一页")
	require.NoError(t, err)
	assert.Equal(t, "semantic", o.Strategy)
	assert.Empty(t, page.Clicks())
	assert.Equal(t, []string{"tap:下一页"}, res.Calls())
}

func TestDeepThinkRetry(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>下一页</button></body>`)
	res := &fakeResolver{fn: func(call string) error {
		if call == "tap:下一页:deep" {
			return nil
		}
		return errResolver
	}}
	d := newDispatcher(page, res, nil)

	o, err := d.Tap(context.Background(), "下一页")
	require.NoError(t, err)
	assert.Equal(t, "semantic.deep", o.Strategy)
	assert.Equal(t, []string{"semantic"}, tactics(o))
	assert.Empty(t, page.Clicks())
}

func TestDeepThinkOnlyForTapAndInput(t *testing.T) {
	page := fakedriver.MustNew(`<body><p id="p">底部</p></body>`)
	res := &fakeResolver{}
	d := newDispatcher(page, res, nil)
	ctx := context.Background()

	_, err := d.WaitFor(ctx, "页面加载完成", 0)
	require.NoError(t, err)
	_, err = d.Scroll(ctx, "底部", intent.ScrollToTarget)
	require.NoError(t, err)
	_, err = d.Select(ctx, "城市", "北京")
	require.NoError(t, err)
	assert.Equal(t, []string{"waitfor:页面加载完成", "scroll:底部", "select:城市"}, res.Calls())

	d.deepThink = false
	_, err = d.Tap(ctx, "下一页")
	require.NoError(t, err)
	assert.Equal(t, "tap:下一页", res.Calls()[3])
	assert.Len(t, res.Calls(), 4)
}

func TestTapExhaustionIsObservableNoop(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>提交</button></body>`)
	res := &fakeResolver{}
	d := newDispatcher(page, res, nil)

	o, err := d.Tap(context.Background(), `点击"不存在的选项"`)
	require.NoError(t, err)
	assert.False(t, o.Succeeded)
	assert.True(t, o.Exhausted())
	assert.Equal(t, []string{"semantic", "semantic.deep", "tap.category", "tap.literal"}, tactics(o))
	assert.Empty(t, page.Clicks())

	o, err = d.Tap(context.Background(), "那里")
	require.NoError(t, err)
	assert.False(t, o.Succeeded)
	require.NotEmpty(t, o.Attempts)
	assert.ErrorIs(t, o.Attempts[len(o.Attempts)-1].Err, ErrNothingToSearch)
}

func TestInputExhaustionThrows(t *testing.T) {
	page := fakedriver.MustNew(`<body><p>没有输入框</p></body>`)
	res := &actorResolver{act: func(string) error { return errors.New("act failed") }}
	d := newDispatcher(page, res, nil)

	_, err := d.Input(context.Background(), "备注", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errResolver, "the original resolver error is kept")

	var exh *ExhaustedError
	require.ErrorAs(t, err, &exh)
	assert.Equal(t, "备注", exh.Description)
	assert.Equal(t, "hello", exh.Value)
	assert.Contains(t, err.Error(), "备注")
	assert.Equal(t, []string{
		"input:备注", "input:备注:deep", "act:在 备注 输入 hello",
	}, res.Calls())
	assert.Equal(t, "semantic.composite", exh.Attempts[len(exh.Attempts)-1].Tactic)
}

func TestInputCompositeRetry(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)

	t.Run("actor", func(t *testing.T) {
		res := &actorResolver{act: func(string) error { return nil }}
		o, err := newDispatcher(page, res, nil).Input(context.Background(), "备注", "x")
		require.NoError(t, err)
		assert.Equal(t, "semantic.composite", o.Strategy)
	})

	t.Run("plain resolver", func(t *testing.T) {
		res := &fakeResolver{fn: func(call string) error {
			if call == "input:在 备注 输入 x:deep" {
				return nil
			}
			return errResolver
		}}
		o, err := newDispatcher(page, res, nil).Input(context.Background(), "备注", "x")
		require.NoError(t, err)
		assert.Equal(t, "semantic.composite", o.Strategy)
		assert.Len(t, res.Calls(), 3)
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := newDispatcher(page, nil, nil).Input(context.Background(), "备注", "x")
		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, driver.ErrNotFound)
	})
}

func TestClosedPageAbandonsEveryKind(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>下一页</button></body>`)
	page.Close()
	res := &fakeResolver{}
	d := newDispatcher(page, res, nil)

	for _, in := range []intent.Intent{
		intent.New(intent.KindTap, "下一页"),
		intent.New(intent.KindInput, "姓名", intent.WithValue("x")),
		intent.New(intent.KindSelect, "城市", intent.WithValue("北京")),
		intent.New(intent.KindWaitFor, "加载"),
		intent.New(intent.KindScroll, "下一页"),
	} {
		o, err := d.Dispatch(context.Background(), in)
		assert.ErrorIs(t, err, driver.ErrPageClosed, in.Kind.String())
		assert.False(t, o.Succeeded)
	}
	assert.Empty(t, res.Calls())
}

func TestPageClosingMidActionStopsTactics(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>下一页</button></body>`)
	res := &fakeResolver{fn: func(string) error {
		page.Close()
		return errors.New("rod: Target closed")
	}}
	d := newDispatcher(page, res, nil)

	o, err := d.Tap(context.Background(), "下一页")
	assert.ErrorIs(t, err, driver.ErrPageClosed)
	assert.Empty(t, o.Attempts, "no tactic runs after the page is gone")
	assert.Len(t, res.Calls(), 1)
}

func TestCancelledContext(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>下一页</button></body>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDispatcher(page, nil, nil).Tap(ctx, "下一页")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Clicks())
}

func TestWaitForFallsBackToNetworkIdle(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	d := newDispatcher(page, &fakeResolver{}, nil)

	o, err := d.WaitFor(context.Background(), "结果出现", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "network-idle", o.Strategy)
	assert.Equal(t, 1, page.IdleWaits())

	page.FailNetworkIdle(errors.New("still loading"))
	o, err = d.WaitFor(context.Background(), "结果出现", time.Second)
	require.NoError(t, err)
	assert.False(t, o.Succeeded)
	assert.Equal(t, []string{"semantic", "network-idle"}, tactics(o))
}

func TestScrollNoopWhenTargetVisible(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<h2 data-rect="0,100,400,30">基本信息</h2>
		<h2 data-rect="0,3000,400,30">补充说明</h2>
	</body>`)
	d := newDispatcher(page, nil, nil)
	ctx := context.Background()

	o, err := d.Scroll(ctx, "基本信息", intent.ScrollToTarget)
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Zero(t, page.ScrollCalls())

	o, err = d.Scroll(ctx, "补充说明", intent.ScrollToTarget)
	require.NoError(t, err)
	assert.Equal(t, "scroll.text", o.Strategy)
	assert.Equal(t, 1, page.ScrollCalls())

	o, err = d.Scroll(ctx, "不存在", intent.ScrollToTarget)
	require.NoError(t, err)
	assert.False(t, o.Succeeded)
	assert.Equal(t, 1, page.ScrollCalls(), "never scroll blindly")

	o, err = d.Scroll(ctx, "", intent.ScrollToBottom)
	require.NoError(t, err)
	assert.Equal(t, "scroll.bottom", o.Strategy)
	assert.Equal(t, 2, page.ScrollCalls())
}

func TestSelectNativeNeedsNoWidgetTactics(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<div><p>学历</p><select id="edu">
			<option value="">请选择</option><option value="1">本科</option><option value="2">硕士</option>
		</select></div>
		<div class="ant-select"><span class="ant-select-selection-item"></span></div>
	</body>`)
	d := newDispatcher(page, nil, nil)

	o, err := d.Select(context.Background(), "学历下拉框", "硕士")
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "select.native", o.Strategy)
	assert.Equal(t, Passed, o.Verified)
	assert.Empty(t, o.Attempts)
	assert.Empty(t, page.Clicks())
	assert.Equal(t, "2", page.ValueOf("#edu"))
}

func antPage() *fakedriver.Page {
	page := fakedriver.MustNew(`<body>
		<div id="q"><span>城市</span>
			<div class="ant-select" id="trigger"><span class="ant-select-selection-item">请选择</span></div>
		</div>
		<div class="ant-select-dropdown" id="panel" hidden>
			<div role="option" id="o1">上海</div>
			<div role="option" id="o2">北京</div>
		</div>
	</body>`)
	page.OnClick(".ant-select", func(*goquery.Selection) { page.Show(".ant-select-dropdown") })
	page.OnClick(`[role="option"]`, func(s *goquery.Selection) {
		page.SetText(".ant-select-selection-item", s.Text())
		page.Hide(".ant-select-dropdown")
	})
	return page
}

func TestSelectAntDesign(t *testing.T) {
	page := antPage()
	d := newDispatcher(page, nil, nil)

	o, err := d.Select(context.Background(), "城市下拉框", "北京")
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "select.trigger.vendor+select.option.role", o.Strategy)
	assert.Equal(t, "ant", o.Match)
	assert.Equal(t, Passed, o.Verified)
	assert.Equal(t, []string{"trigger", "o2"}, page.Clicks())
}

func TestSelectRetriesAfterFailedVerification(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<div id="q"><span>城市</span>
			<div class="el-select" id="trigger"><span class="el-select__selected-item">请选择</span></div>
		</div>
		<div role="listbox" id="stale"><div role="option" id="ghost">北京</div></div>
		<div class="el-select-dropdown" id="panel" hidden>
			<li class="el-select-dropdown__item" id="real">北京</li>
		</div>
	</body>`)
	page.OnClick(".el-select", func(*goquery.Selection) { page.Show(".el-select-dropdown") })
	page.OnClick(".el-select-dropdown__item", func(s *goquery.Selection) {
		page.SetText(".el-select__selected-item", s.Text())
		page.Hide(".el-select-dropdown")
	})
	d := newDispatcher(page, nil, nil)

	o, err := d.Select(context.Background(), "城市", "北京")
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "select.trigger.vendor+select.option.panel", o.Strategy)
	assert.Equal(t, Passed, o.Verified)

	var mismatches int
	for _, a := range o.Attempts {
		if errors.Is(a.Err, ErrNotVerified) {
			mismatches++
		}
	}
	assert.Equal(t, 2, mismatches, "role and listbox options clicked the stale entry")
	assert.Equal(t, []string{"trigger", "ghost", "trigger", "ghost", "trigger", "real"}, page.Clicks())
}

func TestSelectSearchFallback(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<div id="q"><label>城市</label>
			<span class="select2-selection" id="trigger"><span class="select2-selection__rendered">请选择</span></span>
			<span class="select2-search"><input class="select2-search__field" id="search"></span>
		</div>
	</body>`)
	page.OnKey(".select2-search__field", "Enter", func(s *goquery.Selection) {
		page.SetText(".select2-selection__rendered", s.AttrOr("value", ""))
	})
	d := newDispatcher(page, nil, nil)

	o, err := d.Select(context.Background(), "城市", "上海")
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "select.search", o.Strategy)
	assert.Equal(t, Passed, o.Verified)
	assert.Contains(t, page.Keys(), "Enter")
}

func TestSelectExhaustionIsNoop(t *testing.T) {
	page := fakedriver.MustNew(`<body><p>城市</p></body>`)
	d := newDispatcher(page, nil, nil)

	o, err := d.Select(context.Background(), "城市", "北京")
	require.NoError(t, err)
	assert.False(t, o.Succeeded)
	assert.Equal(t, NotApplicable, o.Verified)

	o, err = d.Select(context.Background(), "城市", "")
	require.NoError(t, err)
	assert.False(t, o.Succeeded)
}

func TestFailedTacticsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	page := fakedriver.MustNew(`<body><label for="a">意见和建议</label><textarea id="a"></textarea></body>`)
	d := newDispatcher(page, nil, zap.New(core))

	_, err := d.Input(context.Background(), "意见建议", "好")
	require.NoError(t, err)

	failed := logs.FilterMessage("tactic failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "input.aria-textbox", failed[0].ContextMap()["tactic"])
	assert.Equal(t, "input", failed[0].ContextMap()["kind"])

	done := logs.FilterMessage("action succeeded").All()
	require.Len(t, done, 1)
	assert.Equal(t, "input.label", done[0].ContextMap()["tactic"])
}

func TestExhaustedErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("resolver: %w", errResolver)
	err := error(&ExhaustedError{Kind: intent.KindInput, Description: "备注", Cause: cause, Attempts: []Attempt{{"x", cause}}})
	assert.Equal(t, `input "备注": all tactics exhausted: resolver: resolver could not find it (1 attempts)`, err.Error())
	assert.ErrorIs(t, err, errResolver)

	bare := &ExhaustedError{Kind: intent.KindInput, Description: "备注"}
	assert.Equal(t, []error{ErrExhausted}, bare.Unwrap())
}

func TestSelectVerifiesTheDescribedQuestion(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<div id="qa"><span>城市A</span>
			<div class="ant-select" id="ta"><span class="ant-select-selection-item" id="sa">请选择</span></div>
		</div>
		<div id="qb"><span>城市B</span>
			<div class="ant-select" id="tb"><span class="ant-select-selection-item" id="sb">请选择</span></div>
		</div>
		<div class="ant-select-dropdown" id="pa" hidden><div role="option" id="a1" data-for="sa">北京</div></div>
		<div class="ant-select-dropdown" id="pb" hidden><div role="option" id="b1" data-for="sb">北京</div></div>
	</body>`)
	open := func(panel string) fakedriver.Hook {
		return func(*goquery.Selection) {
			page.Hide(".ant-select-dropdown")
			page.Show(panel)
		}
	}
	page.OnClick("#ta", open("#pa"))
	page.OnClick("#tb", open("#pb"))
	page.OnClick(`[role="option"]`, func(s *goquery.Selection) {
		page.SetText("#"+s.AttrOr("data-for", ""), s.Text())
		page.Hide(".ant-select-dropdown")
	})
	d := newDispatcher(page, nil, nil)

	o, err := d.Select(context.Background(), "城市B下拉框", "北京")
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "select.trigger.container+select.option.role", o.Strategy)
	assert.Equal(t, Passed, o.Verified)
	assert.Equal(t, "北京", page.Find("#sb").Text())

	clicks := page.Clicks()
	require.GreaterOrEqual(t, len(clicks), 2)
	assert.Equal(t, []string{"tb", "b1"}, clicks[len(clicks)-2:])

	var mismatches int
	for _, a := range o.Attempts {
		if errors.Is(a.Err, ErrNotVerified) {
			mismatches++
		}
	}
	assert.Positive(t, mismatches, "setting the other question never verifies")
}

func TestHumanizedInputTypesLongValues(t *testing.T) {
	page := fakedriver.MustNew(`<body>
		<label for="advice">意见和建议</label>
		<textarea id="advice"></textarea>
	</body>`)
	// Real but shortened pauses, so the typing outlasts the tactic timeout
	sleep := func(ctx context.Context, d time.Duration) error {
		return executor.SleepWithContext(ctx, d/20)
	}
	d := New(page, Options{
		Executor:      executor.New(executor.NewHumanizer(1, 1, sleep), executor.Options{}),
		Verifier:      verify.New(verify.Options{Timeout: 40 * time.Millisecond, Interval: 5 * time.Millisecond}),
		TacticTimeout: 100 * time.Millisecond,
	})
	value := strings.Repeat("题目清晰", 10)

	o, err := d.Input(context.Background(), "意见建议", value)
	require.NoError(t, err)
	assert.True(t, o.Succeeded)
	assert.Equal(t, "input.label", o.Strategy)
	assert.Equal(t, value, page.ValueOf("#advice"))
}

func TestAbandonedActionIsNotExhausted(t *testing.T) {
	page := fakedriver.MustNew(`<body><button>提交</button></body>`)
	page.Close()
	d := newDispatcher(page, nil, nil)

	o, err := d.Tap(context.Background(), `"提交"`)
	require.ErrorIs(t, err, driver.ErrPageClosed)
	assert.False(t, o.Succeeded)
	assert.True(t, o.Abandoned)
	assert.False(t, o.Exhausted())

	page = fakedriver.MustNew(`<body><button>提交</button></body>`)
	o, err = newDispatcher(page, nil, nil).Tap(context.Background(), `"取消"`)
	require.NoError(t, err)
	assert.False(t, o.Abandoned)
	assert.True(t, o.Exhausted())
}
