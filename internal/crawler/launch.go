// Package crawler launches the browser a session drives and extracts the
// page map the semantic resolver reasons over.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/config"
	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/driver/pwdriver"
	"github.com/v0xg/formpilot/internal/driver/roddriver"
	"github.com/v0xg/formpilot/internal/stealth"
)

// Options configures the browser launch
type Options struct {
	Browser config.BrowserConfig
	// Stealth registers the evasion script before the first navigation.
	Stealth bool
	Persona stealth.Persona
	// IdleTimeout bounds the post-load network idle wait.
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// Browser owns one browser process and the page it drives
type Browser struct {
	page    driver.Page
	closers []func() error
}

// Page returns the page the session drives
func (b *Browser) Page() driver.Page {
	return b.page
}

// Close cleans up browser resources, last opened first
func (b *Browser) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Launch starts the configured backend, applies stealth and navigates to url
func Launch(ctx context.Context, url string, opts Options) (*Browser, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Second
	}
	if opts.Persona.Platform == "" {
		opts.Persona = stealth.DefaultPersona
	}

	var (
		b   *Browser
		err error
	)
	switch opts.Browser.Driver {
	case config.DriverPlaywright:
		b, err = launchPlaywright(opts)
	default:
		b, err = launchRod(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	if opts.Stealth {
		stealth.Apply(ctx, b.page, opts.Persona, opts.Logger)
	}
	if err := b.navigate(ctx, url); err != nil {
		b.Close()
		return nil, err
	}

	// Don't hang on persistent connections (WebSockets, polling)
	if err := b.page.WaitNetworkIdle(ctx, opts.IdleTimeout); err != nil {
		opts.Logger.Debug("network not idle after load", zap.Error(err))
	}
	return b, nil
}

func (b *Browser) navigate(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	switch p := b.page.(type) {
	case *roddriver.Page:
		page := p.Rod().Context(ctx)
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("failed to load %s: %w", url, err)
		}
	case *pwdriver.Page:
		if _, err := p.Playwright().Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
		}); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
	default:
		return fmt.Errorf("navigation not supported for %T", b.page)
	}
	return nil
}

func launchRod(ctx context.Context, opts Options) (*Browser, error) {
	cfg := opts.Browser
	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	if cfg.ProfileDir != "" {
		l = l.UserDataDir(cfg.ProfileDir)
	}
	if opts.Stealth {
		for name, value := range stealth.LaunchFlags {
			l = l.Set(flags.Flag(name), value)
		}
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	b := &Browser{closers: []func() error{browser.Close}}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Width,
		Height:            cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	b.page = roddriver.New(page)
	b.closers = append(b.closers, page.Close)
	return b, nil
}

func launchPlaywright(opts Options) (*Browser, error) {
	cfg := opts.Browser
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	b := &Browser{closers: []func() error{pw.Stop}}

	var args []string
	if opts.Stealth {
		for name, value := range stealth.LaunchFlags {
			args = append(args, "--"+name+"="+value)
		}
	}
	var exe *string
	if cfg.Bin != "" {
		exe = playwright.String(cfg.Bin)
	}
	viewport := &playwright.Size{Width: cfg.Width, Height: cfg.Height}

	var bctx playwright.BrowserContext
	if cfg.ProfileDir != "" {
		bctx, err = pw.Chromium.LaunchPersistentContext(cfg.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:       playwright.Bool(cfg.Headless),
			Args:           args,
			ExecutablePath: exe,
			Viewport:       viewport,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.closers = append(b.closers, func() error { return bctx.Close() })
	} else {
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless:       playwright.Bool(cfg.Headless),
			Args:           args,
			ExecutablePath: exe,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.closers = append(b.closers, func() error { return browser.Close() })
		bctx, err = browser.NewContext(playwright.BrowserNewContextOptions{Viewport: viewport})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create browser context: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	b.page = pwdriver.New(page)
	return b, nil
}
