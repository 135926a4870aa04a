package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/gamehub/internal/core"
)

// ErrPageExists is returned when a session already owns a page.
var ErrPageExists = &core.Error{Code: core.CodeConflict, Msg: "page already exists for session"}

// Engine owns the shared browser and the per-session pages.
// Safe for concurrent use. Browser I/O never runs under the engine lock.
type Engine struct {
	launcher Launcher
	logger   *log.Logger

	initMu sync.Mutex // serializes launches

	mu      sync.RWMutex
	browser Browser
	pages   map[string]*pageEntry
	ready   bool

	failed    bool // observer notified for the current browser
	onFailure func(error)
}

type pageEntry struct {
	mu        sync.Mutex // serializes operations on one page
	page      Page       // nil until creation finishes
	url       string
	createdAt time.Time
}

// PageInfo describes an open page.
type PageInfo struct {
	SessionID string
	URL       string
	CreatedAt time.Time
}

// NewEngine creates an engine. Call Initialize before creating pages.
func NewEngine(launcher Launcher, logger *log.Logger) *Engine {
	return &Engine{
		launcher: launcher,
		logger:   logger,
		pages:    make(map[string]*pageEntry),
	}
}

// OnFailure registers the observer notified once when the browser process dies.
func (e *Engine) OnFailure(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFailure = fn
}

// Initialize starts the shared browser process.
// On failure the engine stays not-ready; calling it again retries.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.Ready() {
		return nil
	}

	b, err := e.launcher.Launch(ctx)
	if err != nil {
		e.logger.Error("browser launch failed", "error", err)
		return core.Wrap(core.ErrEngineNotReady, "browser: launch", err)
	}

	e.mu.Lock()
	e.browser = b
	e.ready = true
	e.failed = false
	e.mu.Unlock()

	e.logger.Info("browser engine ready")
	return nil
}

// Ready reports whether pages can be created.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// CreatePageForSession opens a page for sessionID and navigates it to url.
func (e *Engine) CreatePageForSession(ctx context.Context, sessionID, url string) (*PageHandle, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("browser: create page: %w", core.ErrSessionNotFound)
	}

	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return nil, fmt.Errorf("browser: create page: %w", core.ErrEngineNotReady)
	}
	if _, exists := e.pages[sessionID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("browser: session %q: %w", sessionID, ErrPageExists)
	}

	// Reserve the slot so a concurrent create for the same session fails fast.
	entry := &pageEntry{url: url, createdAt: time.Now()}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	e.pages[sessionID] = entry
	b := e.browser
	e.mu.Unlock()

	page, err := e.openPage(ctx, b, url)
	if err != nil {
		e.mu.Lock()
		delete(e.pages, sessionID)
		e.mu.Unlock()
		return nil, e.classify("create page", err)
	}

	entry.page = page
	e.logger.Debug("page opened", "session", sessionID, "url", url)
	return &PageHandle{engine: e, sessionID: sessionID}, nil
}

func (e *Engine) openPage(ctx context.Context, b Browser, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	if err := page.Goto(url); err != nil {
		if cerr := page.Close(); cerr != nil {
			e.logger.Warn("closing page after failed navigation", "error", cerr)
		}
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return page, nil
}

// with runs fn against the page of sessionID, holding only that page's lock.
func (e *Engine) with(ctx context.Context, sessionID, op string, fn func(Page) error) error {
	e.mu.RLock()
	entry, ok := e.pages[sessionID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("browser: %s for session %q: %w", op, sessionID, core.ErrPageNotFound)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.page == nil {
		return fmt.Errorf("browser: %s for session %q: %w", op, sessionID, core.ErrPageNotFound)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("browser: %s: %w", op, err)
	}
	if err := fn(entry.page); err != nil {
		return e.classify(op, err)
	}
	return nil
}

// classify wraps a browser error as transient, or as an engine failure when
// the browser process is gone.
func (e *Engine) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("browser: %s: %w", op, err)
	}

	e.mu.RLock()
	b := e.browser
	e.mu.RUnlock()

	if b != nil && !b.Connected() {
		e.fail(b, err)
		return core.Wrap(core.ErrEngineFailure, "browser: "+op, err)
	}
	return core.Wrap(core.ErrTransientIO, "browser: "+op, err)
}

// fail marks the engine not-ready and notifies the observer once per
// browser. Failures of a browser that has since been replaced are ignored.
func (e *Engine) fail(b Browser, cause error) {
	e.mu.Lock()
	if e.browser != b {
		e.mu.Unlock()
		return
	}
	e.ready = false
	first := !e.failed
	e.failed = true
	fn := e.onFailure
	e.mu.Unlock()

	if !first {
		return
	}
	e.logger.Error("browser process lost", "error", cause)
	if fn != nil {
		fn(cause)
	}
}

// Click clicks the element matching target.
func (e *Engine) Click(ctx context.Context, sessionID, target string) error {
	return e.with(ctx, sessionID, "click", func(p Page) error {
		return p.Click(target)
	})
}

// Type types text into target, or into the focused element when target is empty.
func (e *Engine) Type(ctx context.Context, sessionID, target, text string) error {
	return e.with(ctx, sessionID, "type", func(p Page) error {
		return p.Type(target, text)
	})
}

// PressKey presses a single key, e.g. "ArrowUp" or "Space".
func (e *Engine) PressKey(ctx context.Context, sessionID, key string) error {
	return e.with(ctx, sessionID, "press", func(p Page) error {
		return p.Press(key)
	})
}

// Scroll scrolls the page by the given deltas.
func (e *Engine) Scroll(ctx context.Context, sessionID string, dx, dy float64) error {
	return e.with(ctx, sessionID, "scroll", func(p Page) error {
		return p.Wheel(dx, dy)
	})
}

// Screenshot captures the page as PNG.
func (e *Engine) Screenshot(ctx context.Context, sessionID string) ([]byte, error) {
	var shot []byte
	err := e.with(ctx, sessionID, "screenshot", func(p Page) error {
		var err error
		shot, err = p.Screenshot()
		return err
	})
	return shot, err
}

// Evaluate runs script in the page and returns its result.
func (e *Engine) Evaluate(ctx context.Context, sessionID, script string) (any, error) {
	var out any
	err := e.with(ctx, sessionID, "evaluate", func(p Page) error {
		var err error
		out, err = p.Evaluate(script)
		return err
	})
	return out, err
}

// WaitForSelector blocks until selector appears or timeout elapses.
func (e *Engine) WaitForSelector(ctx context.Context, sessionID, selector string, timeout time.Duration) error {
	return e.with(ctx, sessionID, "wait", func(p Page) error {
		return p.WaitForSelector(selector, timeout)
	})
}

// ClosePageForSession closes and forgets the page of sessionID.
// Idempotent; close failures are logged, not returned.
func (e *Engine) ClosePageForSession(sessionID string) {
	e.mu.Lock()
	entry, ok := e.pages[sessionID]
	delete(e.pages, sessionID)
	e.mu.Unlock()

	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.page == nil {
		return
	}
	if err := entry.page.Close(); err != nil {
		e.logger.Warn("page close failed", "session", sessionID, "error", err)
	}
	entry.page = nil
	e.logger.Debug("page closed", "session", sessionID)
}

// Pages lists the open pages sorted by session id.
func (e *Engine) Pages() []PageInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]PageInfo, 0, len(e.pages))
	for id, entry := range e.pages {
		out = append(out, PageInfo{SessionID: id, URL: entry.url, CreatedAt: entry.createdAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// PageCount returns the number of open pages.
func (e *Engine) PageCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pages)
}

// Shutdown closes every page best-effort, then the browser process.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	entries := e.pages
	e.pages = make(map[string]*pageEntry)
	b := e.browser
	e.browser = nil
	e.ready = false
	e.mu.Unlock()

	for id, entry := range entries {
		if ctx.Err() != nil {
			e.logger.Warn("shutdown deadline reached, abandoning pages", "remaining", len(entries))
			break
		}
		entry.mu.Lock()
		if entry.page != nil {
			if err := entry.page.Close(); err != nil {
				e.logger.Warn("page close failed during shutdown", "session", id, "error", err)
			}
			entry.page = nil
		}
		entry.mu.Unlock()
	}

	if b == nil {
		return nil
	}
	if err := b.Close(); err != nil {
		return fmt.Errorf("browser: close: %w", err)
	}
	e.logger.Info("browser engine stopped")
	return nil
}

// PageHandle is a session's view of its page.
type PageHandle struct {
	engine    *Engine
	sessionID string
}

// SessionID returns the owning session.
func (h *PageHandle) SessionID() string { return h.sessionID }

func (h *PageHandle) Click(ctx context.Context, target string) error {
	return h.engine.Click(ctx, h.sessionID, target)
}

func (h *PageHandle) Type(ctx context.Context, target, text string) error {
	return h.engine.Type(ctx, h.sessionID, target, text)
}

func (h *PageHandle) PressKey(ctx context.Context, key string) error {
	return h.engine.PressKey(ctx, h.sessionID, key)
}

func (h *PageHandle) Scroll(ctx context.Context, dx, dy float64) error {
	return h.engine.Scroll(ctx, h.sessionID, dx, dy)
}

func (h *PageHandle) Screenshot(ctx context.Context) ([]byte, error) {
	return h.engine.Screenshot(ctx, h.sessionID)
}

func (h *PageHandle) Evaluate(ctx context.Context, script string) (any, error) {
	return h.engine.Evaluate(ctx, h.sessionID, script)
}

func (h *PageHandle) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return h.engine.WaitForSelector(ctx, h.sessionID, selector, timeout)
}

// Close releases the page. Safe to call more than once.
func (h *PageHandle) Close() {
	h.engine.ClosePageForSession(h.sessionID)
}
