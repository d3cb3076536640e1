// Package browser owns the headless browser process and hands out
// pages configured for low-profile storefront crawling.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// ErrNotManaged is returned when a page handed to ReleasePage did not
// come from this manager.
var ErrNotManaged = errors.New("page is not managed by this session manager")

// ProxyConfig carries an optional upstream proxy with credentials.
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// Config controls browser launch and page setup.
type Config struct {
	Headless bool
	Bin      string
	// UserAgent pins the identity string; empty rotates per page.
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	// DefaultTimeout bounds individual page operations.
	DefaultTimeout time.Duration
	// BlockedResourceTypes are aborted at the network layer to cut
	// load time and bandwidth fingerprint. Defaults to Stylesheet,
	// Font, Image and Media.
	BlockedResourceTypes []string
	Proxy                ProxyConfig
}

func (c *Config) applyDefaults() {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1366
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 768
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.BlockedResourceTypes == nil {
		c.BlockedResourceTypes = []string{"Stylesheet", "Font", "Image", "Media"}
	}
}

// Manager implements crawler.SessionManager over a single rod browser.
// The process is launched lazily on the first page request and torn
// down by Shutdown; a dead handle detected on acquisition triggers a
// clean relaunch instead of being reused.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	pages    map[*sessionPage]struct{}
}

// NewManager constructs a Manager without launching anything.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		pages:  make(map[*sessionPage]struct{}),
	}
}

// AcquirePage returns a ready-to-use page, launching the browser
// process first if none is active. Launch failure is fatal for the
// attempt; retrying is the retry governor's job, one layer up.
func (m *Manager) AcquirePage(ctx context.Context) (crawler.Page, error) {
	b, err := m.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		// The handle may be stale after a silent crash. Reset state
		// and relaunch once before giving up.
		m.logger.Warn("page creation failed, relaunching browser", zap.Error(err))
		m.reset(b)
		if b, err = m.ensureBrowser(); err != nil {
			return nil, err
		}
		if page, err = b.Page(proto.TargetCreateTarget{}); err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
	}

	sp, err := m.configurePage(ctx, page)
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	m.mu.Lock()
	m.pages[sp] = struct{}{}
	m.mu.Unlock()
	return sp, nil
}

// ReleasePage closes the page if still open and stops tracking it.
// Releasing an already released page is a no-op.
func (m *Manager) ReleasePage(page crawler.Page) error {
	sp, ok := page.(*sessionPage)
	if !ok {
		return ErrNotManaged
	}
	m.mu.Lock()
	_, tracked := m.pages[sp]
	delete(m.pages, sp)
	m.mu.Unlock()
	if !tracked {
		return nil
	}
	sp.close()
	return nil
}

// Shutdown closes all tracked pages and the browser process, and
// resets state so a later AcquirePage relaunches cleanly. Safe to call
// when nothing is open.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	pages := make([]*sessionPage, 0, len(m.pages))
	for sp := range m.pages {
		pages = append(pages, sp)
	}
	m.pages = make(map[*sessionPage]struct{})
	b := m.browser
	l := m.launcher
	m.browser = nil
	m.launcher = nil
	m.mu.Unlock()

	for _, sp := range pages {
		sp.close()
	}
	if b != nil {
		if err := b.Close(); err != nil {
			m.logger.Warn("browser close failed", zap.Error(err))
		}
	}
	if l != nil {
		l.Kill()
	}
	m.logger.Info("browser session shut down")
	return nil
}

// Healthy reports whether a browser process is active and still
// connected, probing the live connection to catch silent crashes.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return false
	}
	if _, err := (proto.BrowserGetVersion{}).Call(b); err != nil {
		m.logger.Warn("browser connection lost", zap.Error(err))
		m.reset(b)
		return false
	}
	return true
}

// PageCount returns the number of pages currently tracked.
func (m *Manager) PageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// ensureBrowser lazily launches the browser process. Idempotent:
// concurrent and sequential calls reuse the same process.
func (m *Manager) ensureBrowser() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return m.browser, nil
	}

	l := launcher.New().
		Headless(m.cfg.Headless).
		NoSandbox(true)
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	if m.cfg.Proxy.Server != "" {
		l = l.Proxy(m.cfg.Proxy.Server)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI,VizDisplayCompositor")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	if m.cfg.Proxy.Username != "" {
		go func() {
			if authErr := b.HandleAuth(m.cfg.Proxy.Username, m.cfg.Proxy.Password)(); authErr != nil {
				m.logger.Debug("proxy auth handler finished", zap.Error(authErr))
			}
		}()
	}

	m.launcher = l
	m.browser = b
	go m.watchDisconnect(b)
	m.logger.Info("browser launched", zap.String("control_url", controlURL))
	return b, nil
}

// watchDisconnect blocks on the browser's event stream, which ends
// when the process dies or the connection drops, and then clears
// session state without waiting for the next call to trip over the
// dead handle. A deliberate Shutdown detaches the browser first, so
// the watcher exits without touching the fresh state.
func (m *Manager) watchDisconnect(b *rod.Browser) {
	for range b.Event() {
	}
	if m.reset(b) {
		m.logger.Warn("browser disconnected, session state cleared")
	}
}

// reset clears browser and page state after a lost connection so the
// next AcquirePage triggers a fresh launch rather than reusing a dead
// handle. Tracked pages are invalid at this point and simply dropped.
// Scoped to b: state belonging to a newer browser is left alone.
func (m *Manager) reset(b *rod.Browser) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b == nil || m.browser != b {
		return false
	}
	if m.launcher != nil {
		m.launcher.Kill()
	}
	m.browser = nil
	m.launcher = nil
	m.pages = make(map[*sessionPage]struct{})
	return true
}
