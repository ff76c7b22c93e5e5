package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/nextlevelbuilder/parrot/internal/redact"
	"github.com/nextlevelbuilder/parrot/internal/store"
	"github.com/nextlevelbuilder/parrot/internal/tracing"
)

const defaultWebhookMaxChars = 2000

// Webhook posts a summary of each composed post as {"content": text}.
// Delivery is best effort: failures are logged, never returned.
type Webhook struct {
	url      string
	maxChars int
	client   *resty.Client
	logger   *slog.Logger
	now      func() time.Time
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// WithWebhookMaxChars overrides the 2000-character content limit.
func WithWebhookMaxChars(n int) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.maxChars = n
		}
	}
}

// WithWebhookTimeout sets the request timeout. Default: 10s.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.client.SetTimeout(d)
		}
	}
}

// NewWebhook creates a notifier for url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	tracing.InstrumentResty(client)

	w := &Webhook{
		url:      url,
		maxChars: defaultWebhookMaxChars,
		client:   client,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Notify sends the run parameters and the chosen post.
func (w *Webhook) Notify(ctx context.Context, input store.RunInput, post string) {
	if w == nil || w.url == "" {
		return
	}
	content := w.Format(input, post)

	res, err := w.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		Post(w.url)
	if err != nil {
		w.logger.Warn("webhook: request failed", "error", err)
		return
	}
	if res.IsError() {
		w.logger.Warn("webhook: bad status", "status", res.StatusCode())
		return
	}
	w.logger.Debug("webhook: delivered", "status", res.StatusCode(), "chars", utf8.RuneCountInString(content))
}

// Format renders the message body: a timestamp marker, the pretty-printed
// input and the post, cut to maxChars runes. Credential-shaped tokens are
// scrubbed from each field before rendering.
func (w *Webhook) Format(input store.RunInput, post string) string {
	pretty, err := json.MarshalIndent(input.Scrubbed(redact.ScrubKeys), "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprintf("%+v", input))
	}
	text := fmt.Sprintf("<t:%d:F>\n```json\n%s\n```\n%s", w.now().Unix(), pretty, redact.ScrubKeys(post))
	return truncateRunes(text, w.maxChars)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
