// Package browsertest provides an in-memory browser driver for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vovakirdan/gamehub/internal/browser"
)

// ErrDisconnected is returned by every page operation after Kill.
var ErrDisconnected = errors.New("browsertest: browser disconnected")

// Launcher hands out a single fake Browser.
type Launcher struct {
	mu        sync.Mutex
	Browser   *Browser
	LaunchErr error
	Launches  int
	// Hold, when set, blocks Launch until it is closed.
	Hold      chan struct{}
}

// NewLauncher returns a launcher whose browser is connected.
func NewLauncher() *Launcher {
	return &Launcher{Browser: NewBrowser()}
}

func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	l.mu.Lock()
	l.Launches++
	hold, err, b := l.Hold, l.LaunchErr, l.Browser
	l.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// LaunchCount returns how many times Launch was called.
func (l *Launcher) LaunchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Launches
}

// Browser records pages and can be killed to simulate a crash.
type Browser struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	pages     []*Page
	// Score is what Evaluate returns on every page unless overridden per page.
	Score   float64
	GotoErr error
}

func NewBrowser() *Browser {
	return &Browser{connected: true}
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, ErrDisconnected
	}
	p := &Page{browser: b, score: b.Score, gotoErr: b.GotoErr}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.connected = false
	return nil
}

// Kill disconnects the browser as if the process died.
func (b *Browser) Kill() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Pages returns every page ever opened.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

// Page records every call made to it.
type Page struct {
	browser *Browser

	mu      sync.Mutex
	url     string
	calls   []string
	closes  int
	score   float64
	gotoErr error
	// FailNext makes the next operation return this error once.
	failNext error
}

func (p *Page) record(call string) error {
	if !p.browser.Connected() {
		return ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if err := p.failNext; err != nil {
		p.failNext = nil
		return err
	}
	return nil
}

func (p *Page) Goto(url string) error {
	p.mu.Lock()
	p.url = url
	err := p.gotoErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.record("goto " + url)
}

func (p *Page) Click(selector string) error { return p.record("click " + selector) }

func (p *Page) Type(selector, text string) error { return p.record("type " + selector + " " + text) }

func (p *Page) Press(key string) error { return p.record("press " + key) }

func (p *Page) Wheel(dx, dy float64) error { return p.record("wheel") }

func (p *Page) Screenshot() ([]byte, error) {
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (p *Page) Evaluate(script string) (any, error) {
	if err := p.record("eval " + script); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score, nil
}

func (p *Page) WaitForSelector(selector string, timeout time.Duration) error {
	return p.record("wait " + selector)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// SetScore changes the value returned by Evaluate.
func (p *Page) SetScore(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score = v
}

// FailNext makes the next recorded operation fail with err.
func (p *Page) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// URL returns the last navigated url.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Calls returns the recorded operations in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Closes returns how many times Close was called.
func (p *Page) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}
