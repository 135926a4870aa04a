// Package browser provides the browser game engine: one shared headless
// browser process and one page per session that plays a web-hosted game.
//
// The engine talks to the browser through the Launcher, Browser and Page
// interfaces. PlaywrightLauncher is the production implementation.
package browser

import (
	"context"
	"time"
)

// Launcher starts the shared browser process.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Connected() bool
	Close() error
}

// Page is a single browser tab.
type Page interface {
	Goto(url string) error
	Click(selector string) error
	// Type sends keystrokes, focusing selector first unless it is empty.
	Type(selector, text string) error
	Press(key string) error
	Wheel(dx, dy float64) error
	Screenshot() ([]byte, error)
	Evaluate(script string) (any, error)
	WaitForSelector(selector string, timeout time.Duration) error
	Close() error
}
