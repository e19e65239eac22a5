package crawler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/driver/fakedriver"
)

const snapshotResult = `{
	"url": "https://example.com/survey",
	"title": "问卷",
	"isSPA": true,
	"elements": [
		{"selector": "#name", "type": "text", "label": "姓名", "placeholder": "请输入姓名"},
		{"selector": "select[name=\"edu\"]", "type": "select", "options": ["请选择", "本科", "硕士"], "value": "请选择"},
		{"selector": "", "type": "button"},
		{"selector": "#submit", "type": "button", "text": "提交"}
	],
	"navigation": [{"selector": "a[href=\"/help\"]", "text": "帮助", "href": "/help"}]
}`

func TestSnapshotDecodes(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	page.OnEval(func(js string, _ []any) ([]byte, error) {
		require.True(t, strings.Contains(js, "navigation"))
		return []byte(snapshotResult), nil
	})

	m, err := Snapshot(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/survey", m.URL)
	assert.Equal(t, "问卷", m.Title)
	assert.True(t, m.IsSPA)
	require.Len(t, m.Elements, 3)
	assert.Equal(t, "姓名", m.Elements[0].Label)
	assert.Equal(t, "请输入姓名", m.Elements[0].Placeholder)
	assert.Equal(t, []string{"请选择", "本科", "硕士"}, m.Elements[1].Options)
	assert.Equal(t, "提交", m.Elements[2].Text)
	require.Len(t, m.Navigation, 1)
	assert.Equal(t, "/help", m.Navigation[0].Href)

	sel := m.Selectors()
	assert.True(t, sel["#submit"])
	assert.True(t, sel[`a[href="/help"]`])
	assert.False(t, sel["#missing"])
}

func TestSnapshotClosedPage(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	page.Close()
	_, err := Snapshot(context.Background(), page)
	require.ErrorIs(t, err, driver.ErrPageClosed)
}

func TestSettleWaitsForControls(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	var calls atomic.Int32
	page.OnEval(func(string, []any) ([]byte, error) {
		if calls.Add(1) < 3 {
			return []byte("0"), nil
		}
		return []byte("4"), nil
	})

	require.NoError(t, Settle(context.Background(), page, 2*time.Second))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSettleTimesOutQuietly(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	page.OnEval(func(string, []any) ([]byte, error) {
		return nil, errors.New("not ready")
	})
	require.NoError(t, Settle(context.Background(), page, 50*time.Millisecond))
}

func TestSettleClosedPage(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	page.Close()
	require.ErrorIs(t, Settle(context.Background(), page, time.Second), driver.ErrPageClosed)
}
