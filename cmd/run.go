package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nextlevelbuilder/parrot/internal/browser"
	"github.com/nextlevelbuilder/parrot/internal/collector"
	"github.com/nextlevelbuilder/parrot/internal/composer"
	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/providers"
	"github.com/nextlevelbuilder/parrot/internal/publish"
	"github.com/nextlevelbuilder/parrot/internal/retry"
	"github.com/nextlevelbuilder/parrot/internal/sampler"
	"github.com/nextlevelbuilder/parrot/internal/snippets"
	"github.com/nextlevelbuilder/parrot/internal/store/file"
	"github.com/nextlevelbuilder/parrot/internal/store/sqlite"
	"github.com/nextlevelbuilder/parrot/internal/tracing"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func retryConfig(cfg *config.Config) retry.Config {
	return retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.RetryBase(),
		MaxDelay:   cfg.Retry.RetryMax(),
	}
}

// setupTracing installs the OTLP exporter when one is configured. Export
// failures never stop a run.
func setupTracing(ctx context.Context, cfg *config.Config) tracing.ShutdownFunc {
	t := cfg.Telemetry
	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    t.Endpoint,
		Protocol:    t.Protocol,
		Insecure:    t.Insecure,
		ServiceName: t.ServiceName,
		Headers:     t.Headers,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return func(context.Context) error { return nil }
	}
	return shutdown
}

type composeOptions struct {
	Publish    bool
	WebhookURL string // overrides cfg.Webhook.URL
	Seed       uint64 // 0 = random
}

// runCompose composes one post for account from its snippet cache.
func runCompose(ctx context.Context, cfg *config.Config, account string, opts composeOptions) (*composer.Result, error) {
	cachePath := snippets.PathFor(cfg.CacheDir(), account)
	cache := snippets.Load(cachePath)
	if cache.Len() == 0 {
		return nil, fmt.Errorf("no cached posts for %s at %s, run `parrot collect` first: %w", account, cachePath, composer.ErrEmptyPool)
	}

	cc := cfg.Composer
	gen, err := providers.New(cc.Provider, cfg.Providers)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	scorer := gen
	if cc.ScoreProvider != "" && cc.ScoreProvider != cc.Provider {
		if scorer, err = providers.New(cc.ScoreProvider, cfg.Providers); err != nil {
			return nil, retry.Permanent(err)
		}
	}

	coster, err := sampler.NewCoster(cc.Tokenizer, cc.Model)
	if err != nil {
		return nil, err
	}

	popts := []composer.Option{
		composer.WithCoster(coster),
		composer.WithRetry(retryConfig(cfg)),
	}
	if opts.Seed != 0 {
		popts = append(popts, composer.WithRand(rand.New(rand.NewPCG(opts.Seed, opts.Seed))))
	}

	if cfg.History.Enabled {
		h, err := sqlite.Open(config.ExpandHome(cfg.History.Path))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		defer h.Close()
		popts = append(popts, composer.WithHistory(h))
	}

	if opts.Publish {
		p, err := publish.New(cfg.Publish, "")
		if err != nil {
			return nil, retry.Permanent(err)
		}
		popts = append(popts, composer.WithPublisher(p))
	}

	hook := opts.WebhookURL
	if hook == "" {
		hook = cfg.Webhook.URL
	}
	if hook != "" {
		popts = append(popts, composer.WithNotifier(publish.NewWebhook(hook,
			publish.WithWebhookMaxChars(cfg.Webhook.MaxChars),
			publish.WithWebhookTimeout(ms(cfg.Webhook.TimeoutMs)),
			publish.WithWebhookLogger(slog.Default().With("component", "webhook", "account", account)),
		)))
	}

	logs := file.NewRunLogWriter(config.ExpandHome(cc.LogDir))
	p := composer.New(cc, gen, scorer, logs, popts...)
	return p.Run(ctx, account, cache.Items(), composer.RunOptions{Publish: opts.Publish})
}

// runCollect scrolls the account's search results in Chrome and merges
// new posts into the cache. The cache is saved even when the run fails
// part-way.
func runCollect(ctx context.Context, cfg *config.Config, account string, headless bool) (collector.Result, error) {
	cc := cfg.Collector
	ctx, span := tracing.Start(ctx, "collect.run")

	path := snippets.PathFor(cfg.CacheDir(), account)
	cache, err := snippets.Open(path)
	if err != nil {
		err = fmt.Errorf("%w; fix or move the file before collecting", err)
		tracing.End(span, err)
		return collector.Result{}, retry.Permanent(err)
	}

	mgr := browser.New(
		browser.WithHeadless(headless),
		browser.WithStealth(cc.Stealth),
		browser.WithNavTimeout(ms(cc.NavTimeoutMs)),
		browser.WithTypeDelay(ms(cc.TypeDelayMs)),
	)
	if err := mgr.Start(ctx); err != nil {
		tracing.End(span, err)
		return collector.Result{}, err
	}
	defer mgr.Close()

	if cc.Username != "" {
		err := mgr.Login(ctx, cc.LoginURL,
			browser.Credentials{Username: cc.Username, Password: cc.Password},
			browser.LoginSelectors{
				Username: cc.UsernameSel,
				Next:     cc.NextButtonSel,
				Password: cc.PasswordSel,
				Submit:   cc.LoginButtonSel,
			})
		if err != nil {
			tracing.End(span, err)
			return collector.Result{}, err
		}
	} else {
		slog.Warn("no login credentials configured, searching signed out")
	}

	var since *time.Time
	if cc.Incremental {
		since = cache.FirstDate
	}
	if err := mgr.Navigate(ctx, collector.SearchURL(cc.SearchBaseURL, account, cc.MinLikes, since)); err != nil {
		tracing.End(span, err)
		return collector.Result{}, err
	}

	feed := &collector.PageFeed{
		Page:     mgr,
		Selector: cc.SnippetSel,
		StepPx:   cc.ScrollStepPx,
		Pause:    ms(cc.ScrollPauseMs),
	}
	res, runErr := collector.New(collector.WithIdleLimit(cc.IdleLimit)).Run(ctx, feed, cache)

	if err := cache.Save(path); err != nil {
		tracing.End(span, err)
		return res, fmt.Errorf("save cache: %w", err)
	}
	tracing.End(span, runErr)
	return res, runErr
}
