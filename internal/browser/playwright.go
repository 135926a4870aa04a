package browser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Default viewport and timeout for browser pages.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeout        = 10 * time.Second
)

// PlaywrightLauncher launches Chromium through playwright-go.
type PlaywrightLauncher struct {
	Headless bool
	// Install downloads the driver and browsers before the first launch.
	Install        bool
	ViewportWidth  int
	ViewportHeight int
	Timeout        time.Duration
}

// Launch starts the playwright driver and one Chromium process.
func (l PlaywrightLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Driver output would interleave with the server logs.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if l.Install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	headless := l.Headless
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	width, height := l.ViewportWidth, l.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = DefaultViewportWidth, DefaultViewportHeight
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &pwBrowser{
		pw:      pw,
		browser: b,
		width:   width,
		height:  height,
		timeout: float64(timeout.Milliseconds()),
	}, nil
}

type pwBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	width   int
	height  int
	timeout float64
}

// NewPage opens an isolated context with a single page.
func (b *pwBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.width,
			Height: b.height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(b.timeout)

	return &pwPage{ctx: bctx, page: page}, nil
}

func (b *pwBrowser) Connected() bool {
	return b.browser.IsConnected()
}

func (b *pwBrowser) Close() error {
	var firstErr error
	if err := b.browser.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close browser: %w", err)
	}
	if err := b.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to stop playwright: %w", err)
	}
	return firstErr
}

type pwPage struct {
	ctx  playwright.BrowserContext
	page playwright.Page
}

func (p *pwPage) Goto(url string) error {
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *pwPage) Click(selector string) error {
	if err := p.page.Click(selector, playwright.PageClickOptions{}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *pwPage) Type(selector, text string) error {
	if selector != "" {
		if err := p.page.Focus(selector); err != nil {
			return fmt.Errorf("focus failed: %w", err)
		}
	}
	if err := p.page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}

func (p *pwPage) Press(key string) error {
	if err := p.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

func (p *pwPage) Wheel(dx, dy float64) error {
	if err := p.page.Mouse().Wheel(dx, dy); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (p *pwPage) Screenshot() ([]byte, error) {
	shot, err := p.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return shot, nil
}

func (p *pwPage) Evaluate(script string) (any, error) {
	out, err := p.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return out, nil
}

func (p *pwPage) WaitForSelector(selector string, timeout time.Duration) error {
	opts := playwright.PageWaitForSelectorOptions{}
	if timeout > 0 {
		ms := float64(timeout.Milliseconds())
		opts.Timeout = &ms
	}
	if _, err := p.page.WaitForSelector(selector, opts); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

func (p *pwPage) Close() error {
	if err := p.page.Close(); err != nil {
		_ = p.ctx.Close()
		return fmt.Errorf("failed to close page: %w", err)
	}
	return p.ctx.Close()
}
