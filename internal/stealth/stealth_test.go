package stealth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/v0xg/formpilot/internal/driver/fakedriver"
)

func TestScriptEmbedsPersona(t *testing.T) {
	js, err := Script(DefaultPersona)
	require.NoError(t, err)
	assert.Contains(t, js, `"platform":"Win32"`)
	assert.Contains(t, js, `"languages":["zh-CN","zh","en"]`)
	assert.Contains(t, js, "webdriver")
	assert.Contains(t, js, "createDataChannel")
	assert.Contains(t, js, "toDataURL")
}

func TestScriptFillsDefaults(t *testing.T) {
	js, err := Script(Persona{Platform: "MacIntel"})
	require.NoError(t, err)
	assert.Contains(t, js, `"hardwareConcurrency":8`)
	assert.Contains(t, js, `"languages":["zh-CN","zh","en"]`)
}

func TestApplyRegistersInitScript(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	core, logs := observer.New(zap.DebugLevel)

	Apply(context.Background(), page, DefaultPersona, zap.New(core))
	require.Len(t, page.InitScripts(), 1)
	assert.Contains(t, page.InitScripts()[0], "ANGLE (Intel")
	assert.Equal(t, 1, logs.FilterMessage("stealth persona applied").Len())
}

func TestApplyIsBestEffort(t *testing.T) {
	page := fakedriver.MustNew(`<body></body>`)
	page.Close()
	core, logs := observer.New(zap.DebugLevel)

	assert.NotPanics(t, func() {
		Apply(context.Background(), page, DefaultPersona, zap.New(core))
	})
	assert.Equal(t, 1, logs.FilterMessage("stealth script not injected").Len())
}
