package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const collectJS = `(sel) => Array.from(document.querySelectorAll(sel)).map(e => e.textContent ?? "")`

// Login opens loginURL and walks the two-step sign-in form.
func (m *Manager) Login(ctx context.Context, loginURL string, creds Credentials, sel LoginSelectors) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("login: username and password are required")
	}
	if err := m.Navigate(ctx, loginURL); err != nil {
		return err
	}

	if err := m.Type(ctx, sel.Username, creds.Username); err != nil {
		return fmt.Errorf("login username: %w", err)
	}
	if err := m.Click(ctx, sel.Next); err != nil {
		return fmt.Errorf("login next: %w", err)
	}
	if err := m.Type(ctx, sel.Password, creds.Password); err != nil {
		return fmt.Errorf("login password: %w", err)
	}
	if err := m.Click(ctx, sel.Submit); err != nil {
		return fmt.Errorf("login submit: %w", err)
	}

	page, err := m.getPage()
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Timeout(m.navTimeout).WaitStable(300 * time.Millisecond); err != nil {
		m.logger.Warn("page did not settle after login", "error", err)
	}
	m.logger.Info("signed in", "user", creds.Username)
	return nil
}

// Type waits for selector and types text into it, one character at a time
// when a type delay is configured.
func (m *Manager) Type(ctx context.Context, selector, text string) error {
	el, err := m.element(ctx, selector)
	if err != nil {
		return err
	}

	// focus
	_ = el.Click(proto.InputMouseButtonLeft, 1)

	if m.typeDelay <= 0 {
		return el.Input(text)
	}
	for _, ch := range text {
		if err := el.Input(string(ch)); err != nil {
			return err
		}
		if err := sleep(ctx, m.typeDelay); err != nil {
			return err
		}
	}
	return nil
}

// Click waits for selector and clicks it.
func (m *Manager) Click(ctx context.Context, selector string) error {
	el, err := m.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ScrollAndCollect returns the text content of every element currently
// matching selector, then scrolls down stepPx and waits pause.
func (m *Manager) ScrollAndCollect(ctx context.Context, selector string, stepPx int, pause time.Duration) ([]string, error) {
	page, err := m.getPage()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx)

	res, err := p.Eval(collectJS, selector)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", selector, err)
	}
	raw := make([]string, 0)
	for _, v := range res.Value.Arr() {
		raw = append(raw, v.Str())
	}

	if _, err := m.Evaluate(ctx, `(px) => window.scrollBy(0, px)`, stepPx); err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}
	if err := sleep(ctx, pause); err != nil {
		return nil, err
	}
	return compactTexts(raw), nil
}

func (m *Manager) element(ctx context.Context, selector string) (*rod.Element, error) {
	page, err := m.getPage()
	if err != nil {
		return nil, err
	}
	el, err := page.Context(ctx).Timeout(m.navTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", selector, err)
	}
	// detach the element from the timeout context
	return el.CancelTimeout(), nil
}

// compactTexts drops blank entries.
func compactTexts(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
