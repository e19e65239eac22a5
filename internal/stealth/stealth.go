// Package stealth hides the usual automation fingerprints from page
// scripts. The evasions run once per new document, before any page script.
package stealth

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
)

//go:embed evasions.js
var evasionsJS string

// Persona defines the browser characteristics to emulate
type Persona struct {
	Languages           []string `json:"languages"`
	Platform            string   `json:"platform"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	WebGLVendor         string   `json:"webglVendor"`
	WebGLRenderer       string   `json:"webglRenderer"`
}

// DefaultPersona is a common Windows desktop with a Chinese locale
var DefaultPersona = Persona{
	Languages:           []string{"zh-CN", "zh", "en"},
	Platform:            "Win32",
	HardwareConcurrency: 8,
	WebGLVendor:         "Google Inc. (Intel)",
	WebGLRenderer:       "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)",
}

// LaunchFlags are extra browser switches that pair with the init script
var LaunchFlags = map[string]string{
	"disable-blink-features": "AutomationControlled",
}

// Script renders the init script for p
func Script(p Persona) (string, error) {
	if len(p.Languages) == 0 {
		p.Languages = DefaultPersona.Languages
	}
	if p.HardwareConcurrency <= 0 {
		p.HardwareConcurrency = DefaultPersona.HardwareConcurrency
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("(%s)(%s);", evasionsJS, data), nil
}

// Apply registers the evasions on page. It is best effort: failures are
// logged and never interrupt the session.
func Apply(ctx context.Context, page driver.Page, p Persona, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	script, err := Script(p)
	if err != nil {
		logger.Warn("stealth script not built", zap.Error(err))
		return
	}
	if err := page.AddInitScript(ctx, script); err != nil {
		logger.Warn("stealth script not injected", zap.Error(err))
		return
	}
	logger.Debug("stealth persona applied",
		zap.String("platform", p.Platform),
		zap.Strings("languages", p.Languages),
	)
}
