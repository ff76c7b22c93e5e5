// Package composer turns a snippet cache into one new post: sample, generate
// candidates, score them for banned topics, select, log and optionally
// publish.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/providers"
	"github.com/nextlevelbuilder/parrot/internal/publish"
	"github.com/nextlevelbuilder/parrot/internal/retry"
	"github.com/nextlevelbuilder/parrot/internal/sampler"
	"github.com/nextlevelbuilder/parrot/internal/snippets"
	"github.com/nextlevelbuilder/parrot/internal/store"
	"github.com/nextlevelbuilder/parrot/internal/tracing"
)

// LogWriter persists a run log and returns where it went.
type LogWriter interface {
	Write(log *store.RunLog) (string, error)
}

// Notifier receives the input and chosen post after a successful run.
type Notifier interface {
	Notify(ctx context.Context, input store.RunInput, post string)
}

// Pipeline runs the compose flow. Build one with New; it is not safe for
// concurrent Run calls because the random source is shared.
type Pipeline struct {
	cfg       config.ComposerConfig
	generator providers.Completer
	scorer    providers.Completer
	logs      LogWriter

	publisher publish.Publisher
	notifier  Notifier
	history   store.HistoryStore
	coster    sampler.Coster
	rng       *rand.Rand
	retry     retry.Config
	threshold func(temperature float64) float64
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithPublisher(p publish.Publisher) Option { return func(pl *Pipeline) { pl.publisher = p } }
func WithNotifier(n Notifier) Option           { return func(pl *Pipeline) { pl.notifier = n } }
func WithHistory(h store.HistoryStore) Option  { return func(pl *Pipeline) { pl.history = h } }
func WithCoster(c sampler.Coster) Option       { return func(pl *Pipeline) { pl.coster = c } }
func WithRand(r *rand.Rand) Option             { return func(pl *Pipeline) { pl.rng = r } }
func WithRetry(c retry.Config) Option          { return func(pl *Pipeline) { pl.retry = c } }
func WithLogger(l *slog.Logger) Option         { return func(pl *Pipeline) { pl.logger = l } }
func WithClock(now func() time.Time) Option    { return func(pl *Pipeline) { pl.now = now } }

// WithThreshold replaces the default (1.5 - temperature) / 2 rule.
func WithThreshold(f func(temperature float64) float64) Option {
	return func(pl *Pipeline) { pl.threshold = f }
}

// New creates a pipeline. scorer may be the same Completer as generator.
func New(cfg config.ComposerConfig, generator, scorer providers.Completer, logs LogWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		generator: generator,
		scorer:    scorer,
		logs:      logs,
		coster:    sampler.WordCost{},
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		retry:     retry.DefaultConfig(),
		threshold: Threshold,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.scorer == nil {
		p.scorer = p.generator
	}
	return p
}

// RunOptions are per-run switches.
type RunOptions struct {
	// Publish posts the selected candidate. Without it the run only logs.
	Publish bool
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Log       *store.RunLog
	LogPath   string
	Post      string
	Index     int
	Published bool
	PublishID string
}

// Run composes one post for account from pool. When no candidate passes,
// the run log is still written and the returned error wraps
// ErrNoAcceptableCandidate.
func (p *Pipeline) Run(ctx context.Context, account string, pool []string, opts RunOptions) (*Result, error) {
	runID := store.GenNewID().String()
	ctx, span := tracing.Start(ctx, "compose.run",
		attribute.String("parrot.account", account),
		attribute.String("parrot.run_id", runID),
	)
	res, err := p.run(ctx, runID, account, pool, opts)
	tracing.End(span, err)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, runID, account string, pool []string, opts RunOptions) (*Result, error) {
	if opts.Publish && p.publisher == nil {
		return nil, retry.Permanent(errors.New("publish requested but no publisher configured"))
	}

	prepared := snippets.Filter(pool, p.cfg.ExcludeLinks)
	if len(prepared) == 0 {
		return nil, ErrEmptyPool
	}
	sample := sampler.Sample(prepared, sampler.Options{
		MaxItems:        p.cfg.MaxTrainingTweets,
		MaxTokens:       p.cfg.MaxTokens,
		BaseOverhead:    config.BaseOverheadTokens,
		PerItemOverhead: config.PerItemOverheadTokens,
		Cost:            p.coster,
	}, p.rng)

	tone := PickTone(p.rng, p.cfg.Adverbs, p.cfg.Moods)
	length := PickLength(p.rng, p.cfg.Lengths)
	input := store.RunInput{
		User:        account,
		Variant:     p.cfg.Variant,
		Adverb:      tone.Adverb,
		Mood:        tone.Mood,
		Provider:    p.generator.Name(),
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Tweets:      sample,
		N:           p.cfg.Generated,
	}
	if p.cfg.Variant != VariantEmulate {
		input.TweetLength = length
	}
	p.logger.Info("composing", "account", account, "run", runID, "sample", len(sample), "tone", tone.String(), "length", input.TweetLength)

	choices, err := p.generate(ctx, account, sampler.Join(sample), tone, length)
	if err != nil {
		return nil, err
	}

	avg, err := p.score(ctx, choices)
	if err != nil {
		return nil, err
	}

	threshold := p.threshold(p.cfg.Temperature)
	idx, selErr := Select(choices, avg, threshold, p.alreadyPublished(ctx, account))

	log := &store.RunLog{
		RunID:      runID,
		Timestamp:  p.now(),
		Input:      input,
		Choices:    choices,
		AvgRatings: avg,
		Threshold:  threshold,
	}
	if selErr == nil {
		log.Tweet = choices[idx]
	}

	res := &Result{RunID: runID, Log: log, Index: idx, Post: log.Tweet}
	if p.logs != nil {
		path, err := p.logs.Write(log)
		if err != nil {
			return res, fmt.Errorf("write run log: %w", err)
		}
		res.LogPath = path
		p.logger.Debug("run log written", "path", path)
	}

	if selErr != nil {
		p.logger.Warn("no candidate cleared the threshold", "threshold", threshold, "scores", avg)
		return res, fmt.Errorf("account %s: %w", account, selErr)
	}

	if opts.Publish {
		id, err := p.publish(ctx, res.Post)
		if err != nil {
			return res, err
		}
		res.Published = true
		res.PublishID = id
		p.record(ctx, account, runID, res.Post, id)
	}

	if p.notifier != nil {
		p.notifier.Notify(ctx, input, res.Post)
	}
	return res, nil
}

func (p *Pipeline) generate(ctx context.Context, account, sample string, tone Tone, length string) ([]string, error) {
	req := providers.CompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		N:           p.cfg.Generated,
		Messages:    GenerationMessages(p.cfg.Variant, account, sample, tone, length),
	}

	ctx, span := tracing.Start(ctx, "compose.generate",
		tracing.LLMAttributes(p.generator.Name(), req.Model, req.N, req.Temperature)...)
	if tracing.Verbose() {
		span.SetAttributes(attribute.String("parrot.prompt_preview", tracing.Preview(sample)))
	}

	resp, attempts, err := retry.Do(ctx, p.retry, func(ctx context.Context) (*providers.CompletionResponse, error) {
		return p.generator.Complete(ctx, req)
	})
	if err != nil {
		tracing.End(span, err)
		return nil, fmt.Errorf("generate candidates (%d attempts): %w", attempts, err)
	}
	span.SetAttributes(tracing.UsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	tracing.End(span, nil)

	choices := CleanAll(resp.Choices)
	p.logger.Debug("candidates generated", "count", len(choices), "attempts", attempts)
	return choices, nil
}

func (p *Pipeline) score(ctx context.Context, candidates []string) ([]float64, error) {
	req := providers.CompletionRequest{
		Model:       p.cfg.ScoreModel,
		Temperature: p.cfg.ScoreTemperature,
		N:           p.cfg.Generated,
		Messages:    ScoringMessages(p.cfg.BannedTopics, candidates),
	}

	ctx, span := tracing.Start(ctx, "compose.score",
		tracing.LLMAttributes(p.scorer.Name(), req.Model, req.N, req.Temperature)...)

	avg, attempts, err := retry.Do(ctx, p.retry, func(ctx context.Context) ([]float64, error) {
		resp, err := p.scorer.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		passes := make([][]float64, 0, len(resp.Choices))
		for _, c := range resp.Choices {
			scores, err := ParseScores(c)
			if err != nil {
				// a malformed answer may parse on the next sample
				return nil, err
			}
			passes = append(passes, scores)
		}
		avg, err := AverageScores(passes, len(candidates))
		if errors.Is(err, ErrScoreLengthMismatch) {
			return nil, retry.Permanent(err)
		}
		return avg, err
	})
	tracing.End(span, err)
	if err != nil {
		return nil, fmt.Errorf("score candidates (%d attempts): %w", attempts, err)
	}
	return avg, nil
}

// publish sends post once. It is repeated only when the error shows the post
// was not delivered; anything else could duplicate it.
func (p *Pipeline) publish(ctx context.Context, post string) (string, error) {
	ctx, span := tracing.Start(ctx, "compose.publish", attribute.String("parrot.target", p.publisher.Name()))
	id, attempts, err := retry.Do(ctx, p.retry, func(ctx context.Context) (string, error) {
		id, err := p.publisher.Publish(ctx, post)
		if err != nil && !nothingSent(err) {
			return "", retry.Permanent(err)
		}
		return id, err
	})
	tracing.End(span, err)
	if err != nil {
		return "", &PublishError{Target: p.publisher.Name(), Attempts: attempts, Err: err}
	}
	p.logger.Info("published", "target", p.publisher.Name(), "id", id)
	return id, nil
}

// alreadyPublished returns a Select skip function backed by the history
// ledger. Ledger errors are logged and treated as "not published".
func (p *Pipeline) alreadyPublished(ctx context.Context, account string) func(string) bool {
	if p.history == nil {
		return nil
	}
	return func(text string) bool {
		ok, err := p.history.WasPublished(ctx, account, text)
		if err != nil {
			p.logger.Warn("history lookup failed", "error", err)
			return false
		}
		if ok {
			p.logger.Info("skipping candidate already published", "account", account)
		}
		return ok
	}
}

func (p *Pipeline) record(ctx context.Context, account, runID, post, externalID string) {
	if p.history == nil {
		return
	}
	err := p.history.RecordPublished(ctx, store.PublishedPost{
		Account:     account,
		Text:        post,
		Target:      p.publisher.Name(),
		ExternalID:  externalID,
		RunID:       runID,
		PublishedAt: p.now(),
	})
	if err != nil {
		p.logger.Warn("history record failed", "error", err)
	}
}
