// Package browser drives a single Chrome page through go-rod for signing in
// and scraping a scrolling feed.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	defaultViewportWidth  = 1200
	defaultViewportHeight = 800
	defaultNavTimeout     = 30 * time.Second
)

// Manager owns the Chrome process and the one page it works in.
type Manager struct {
	mu         sync.Mutex
	browser    *rod.Browser
	page       *rod.Page
	headless   bool
	stealth    bool
	width      int
	height     int
	navTimeout time.Duration
	typeDelay  time.Duration
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithHeadless sets headless mode (default false).
func WithHeadless(h bool) Option {
	return func(m *Manager) { m.headless = h }
}

// WithStealth opens the page with go-rod/stealth evasions applied.
func WithStealth(s bool) Option {
	return func(m *Manager) { m.stealth = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithViewport overrides the 1200x800 default.
func WithViewport(width, height int) Option {
	return func(m *Manager) { m.width, m.height = width, height }
}

// WithNavTimeout bounds navigation and element waits.
func WithNavTimeout(d time.Duration) Option {
	return func(m *Manager) { m.navTimeout = d }
}

// WithTypeDelay sets the pause between typed characters.
func WithTypeDelay(d time.Duration) Option {
	return func(m *Manager) { m.typeDelay = d }
}

// New creates a Manager with options.
func New(opts ...Option) *Manager {
	m := &Manager{
		width:      defaultViewportWidth,
		height:     defaultViewportHeight,
		navTimeout: defaultNavTimeout,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start launches Chrome and opens the working page.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return fmt.Errorf("browser already running")
	}

	l := launcher.New().
		Context(ctx).
		Headless(m.headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch Chrome: %w", err)
	}

	m.logger.Info("Chrome launched", "cdp", controlURL, "headless", m.headless, "stealth", m.stealth)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to Chrome: %w", err)
	}

	var page *rod.Page
	if m.stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close()
		return fmt.Errorf("create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  m.width,
		Height: m.height,
	}); err != nil {
		_ = b.Close()
		return fmt.Errorf("set viewport: %w", err)
	}

	m.browser = b
	m.page = page
	return nil
}

// Stop closes Chrome.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}

	err := m.browser.Close()
	m.browser = nil
	m.page = nil
	return err
}

// Close shuts down the browser if running.
func (m *Manager) Close() error {
	return m.Stop(context.Background())
}

// Status returns current browser status.
func (m *Manager) Status() *StatusInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return &StatusInfo{Running: false}
	}
	info := &StatusInfo{Running: true}
	if pi, err := m.page.Info(); err == nil && pi != nil {
		info.URL = pi.URL
		info.Title = pi.Title
	}
	return info
}

// Navigate loads url in the working page and waits for it to settle.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	page, err := m.getPage()
	if err != nil {
		return err
	}

	p := page.Context(ctx).Timeout(m.navTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		m.logger.Warn("wait load timeout", "url", url, "error", err)
	}
	return nil
}

// Evaluate runs JavaScript on the page and returns the result as a string.
func (m *Manager) Evaluate(ctx context.Context, js string, args ...any) (string, error) {
	page, err := m.getPage()
	if err != nil {
		return "", err
	}

	result, err := page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return result.Value.String(), nil
}

func (m *Manager) getPage() (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil {
		return nil, fmt.Errorf("browser not running")
	}
	return m.page, nil
}
