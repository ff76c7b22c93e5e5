package composer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/providers"
	"github.com/nextlevelbuilder/parrot/internal/retry"
	"github.com/nextlevelbuilder/parrot/internal/store"
)

// --- fakes ---

type fakeReply struct {
	choices []string
	err     error
}

// fakeCompleter returns replies in order; the last reply repeats.
type fakeCompleter struct {
	name    string
	replies []fakeReply

	mu   sync.Mutex
	reqs []providers.CompletionRequest
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(_ context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	r := f.replies[i]
	if r.err != nil {
		return nil, r.err
	}
	return &providers.CompletionResponse{Choices: r.choices}, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeLogs struct{ logs []*store.RunLog }

func (f *fakeLogs) Write(log *store.RunLog) (string, error) {
	f.logs = append(f.logs, log)
	return "/logs/" + log.RunID + ".json", nil
}

type fakePublisher struct {
	posts []string
	err   error
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.posts = append(f.posts, text)
	return "ext-1", nil
}

// flakyPublisher returns errs in order (the last one repeats). When landed
// is set, a failing call still delivers the post, as a timeout after the
// server accepted it would.
type flakyPublisher struct {
	errs   []error
	landed bool
	calls  int
	posts  []string
}

func (f *flakyPublisher) Name() string { return "flaky" }

func (f *flakyPublisher) Publish(_ context.Context, text string) (string, error) {
	err := f.errs[min(f.calls, len(f.errs)-1)]
	f.calls++
	if err == nil || f.landed {
		f.posts = append(f.posts, text)
	}
	if err != nil {
		return "", err
	}
	return "ext-2", nil
}

type fakeHistory struct {
	published map[string]bool
	recorded  []store.PublishedPost
}

func (f *fakeHistory) RecordPublished(_ context.Context, post store.PublishedPost) error {
	f.recorded = append(f.recorded, post)
	return nil
}

func (f *fakeHistory) WasPublished(_ context.Context, account, text string) (bool, error) {
	return f.published[account+"|"+text], nil
}

func (f *fakeHistory) ListPublished(context.Context, string, int) ([]store.PublishedPost, error) {
	return f.recorded, nil
}

func (f *fakeHistory) Close() error { return nil }

type fakeNotifier struct {
	input store.RunInput
	post  string
	calls int
}

func (f *fakeNotifier) Notify(_ context.Context, input store.RunInput, post string) {
	f.calls++
	f.input = input
	f.post = post
}

// --- helpers ---

func testComposerConfig() config.ComposerConfig {
	cc := config.Default().Composer
	cc.Generated = 2
	cc.Temperature = 0.9
	cc.MaxTrainingTweets = 10
	cc.BannedTopics = []string{"politics"}
	return cc
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testPool = []string{"first cached post", "second cached post", "third cached post"}

func newTestPipeline(gen, scorer *fakeCompleter, logs *fakeLogs, opts ...Option) *Pipeline {
	base := []Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithRetry(fastRetry()),
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }),
	}
	var sc providers.Completer
	if scorer != nil {
		sc = scorer
	}
	return New(testComposerConfig(), gen, sc, logs, append(base, opts...)...)
}

// --- tests ---

func TestRun_SelectsFirstPassingCandidate(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{`#tag "Hello world"`, "second"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[9, 3]", "Scores: [7, 5]"}}}}
	logs := &fakeLogs{}

	res, err := newTestPipeline(gen, scorer, logs).Run(context.Background(), "jack", testPool, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Post != "Hello world" || res.Index != 0 {
		t.Errorf("post = %q (index %d), want cleaned first candidate", res.Post, res.Index)
	}
	if res.Published {
		t.Error("run without publish flag must not publish")
	}
	if len(logs.logs) != 1 {
		t.Fatalf("logs written = %d, want 1", len(logs.logs))
	}

	log := logs.logs[0]
	if log.Tweet != "Hello world" {
		t.Errorf("log tweet = %q", log.Tweet)
	}
	if log.AvgRatings[0] != 8 || log.AvgRatings[1] != 4 {
		t.Errorf("avg ratings = %v, want [8 4]", log.AvgRatings)
	}
	if log.Input.User != "jack" || log.Input.N != 2 || log.Input.Provider != "gen" {
		t.Errorf("input = %+v", log.Input)
	}
	if log.Input.TweetLength == "" {
		t.Error("blend variant should record a length class")
	}
	if res.LogPath == "" {
		t.Error("log path not reported")
	}

	if gen.calls() != 1 || scorer.calls() != 1 {
		t.Errorf("calls gen=%d score=%d, want 1 each", gen.calls(), scorer.calls())
	}
	if gen.reqs[0].N != 2 || scorer.reqs[0].N != 2 {
		t.Error("both generation and scoring should request n completions")
	}
	if !strings.Contains(scorer.reqs[0].Messages[1].Content, `["Hello world","second"]`) {
		t.Errorf("scorer should see cleaned candidates: %q", scorer.reqs[0].Messages[1].Content)
	}
}

func TestRun_SelectsSecondAtZeroTemperature(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a", "b", "c"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[0.5, 0.9, 0.6]"}}}}
	logs := &fakeLogs{}

	cfg := testComposerConfig()
	cfg.Temperature = 0
	p := New(cfg, gen, scorer, logs, WithRetry(fastRetry()), WithLogger(quietLogger()))

	res, err := p.Run(context.Background(), "jack", testPool, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Index != 1 || res.Post != "b" {
		t.Errorf("selected %d (%q), want 1 (b)", res.Index, res.Post)
	}
	if res.Log.Threshold != 0.75 {
		t.Errorf("threshold = %v, want 0.75", res.Log.Threshold)
	}
}

func TestRun_NoAcceptableCandidateStillLogs(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a", "b"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[0.1, 0.2]"}}}}
	logs := &fakeLogs{}
	pub := &fakePublisher{}
	notify := &fakeNotifier{}

	res, err := newTestPipeline(gen, scorer, logs, WithPublisher(pub), WithNotifier(notify)).
		Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
	if !errors.Is(err, ErrNoAcceptableCandidate) {
		t.Fatalf("expected ErrNoAcceptableCandidate, got %v", err)
	}
	if res == nil || len(logs.logs) != 1 {
		t.Fatal("run log must be written even without a selection")
	}
	if logs.logs[0].Tweet != "" {
		t.Errorf("log tweet = %q, want empty", logs.logs[0].Tweet)
	}
	if len(pub.posts) != 0 {
		t.Error("nothing should be published")
	}
	if notify.calls != 0 {
		t.Error("notifier should not fire without a selection")
	}
}

func TestRun_ScoreLengthMismatchIsPermanent(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a", "b"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[9]"}}}}

	_, err := newTestPipeline(gen, scorer, &fakeLogs{}).Run(context.Background(), "jack", testPool, RunOptions{})
	if !errors.Is(err, ErrScoreLengthMismatch) {
		t.Fatalf("expected ErrScoreLengthMismatch, got %v", err)
	}
	if scorer.calls() != 1 {
		t.Errorf("scorer calls = %d, want 1", scorer.calls())
	}
	if retry.IsRetryable(err) {
		t.Error("a score count mismatch must stay final for outer retries")
	}
}

func TestRun_MalformedScoresRetried(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a", "b"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{
		{choices: []string{"I'd rather not say"}},
		{choices: []string{"[10, 10]"}},
	}}

	res, err := newTestPipeline(gen, scorer, &fakeLogs{}).Run(context.Background(), "jack", testPool, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scorer.calls() != 2 || res.Post != "a" {
		t.Errorf("scorer calls = %d post = %q", scorer.calls(), res.Post)
	}
}

func TestRun_GenerationRetries(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"rate limited then ok", &providers.APIError{Provider: "gen", Status: 429}, 2, false},
		{"server error then ok", &providers.APIError{Provider: "gen", Status: 503}, 2, false},
		{"unauthorized", &providers.APIError{Provider: "gen", Status: 401}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeCompleter{name: "gen", replies: []fakeReply{{err: tt.err}, {choices: []string{"a", "b"}}}}
			scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10, 10]"}}}}

			_, err := newTestPipeline(gen, scorer, &fakeLogs{}).Run(context.Background(), "jack", testPool, RunOptions{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if gen.calls() != tt.wantCalls {
				t.Errorf("generator calls = %d, want %d", gen.calls(), tt.wantCalls)
			}
			if tt.wantErr && scorer.calls() != 0 {
				t.Error("scoring should not run after a failed generation")
			}
		})
	}
}

func TestRun_PublishesAndRecords(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a", "b"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10, 10]"}}}}
	pub := &fakePublisher{}
	hist := &fakeHistory{}
	notify := &fakeNotifier{}

	res, err := newTestPipeline(gen, scorer, &fakeLogs{}, WithPublisher(pub), WithHistory(hist), WithNotifier(notify)).
		Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Published || res.PublishID != "ext-1" {
		t.Errorf("result = %+v", res)
	}
	if len(pub.posts) != 1 || pub.posts[0] != "a" {
		t.Errorf("published %v", pub.posts)
	}
	if len(hist.recorded) != 1 || hist.recorded[0].RunID != res.RunID || hist.recorded[0].Target != "fake" {
		t.Errorf("recorded %+v", hist.recorded)
	}
	if notify.calls != 1 || notify.post != "a" {
		t.Errorf("notifier calls=%d post=%q", notify.calls, notify.post)
	}
	if notify.input.User != "jack" {
		t.Errorf("notifier input = %#v", notify.input)
	}
}

func TestRun_SkipsAlreadyPublished(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a", "b"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10, 10]"}}}}
	hist := &fakeHistory{published: map[string]bool{"jack|a": true}}

	res, err := newTestPipeline(gen, scorer, &fakeLogs{}, WithHistory(hist)).
		Run(context.Background(), "jack", testPool, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Index != 1 || res.Post != "b" {
		t.Errorf("selected %d (%q), want 1 (b)", res.Index, res.Post)
	}
}

func TestRun_PublishFailureKeepsLog(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10]"}}}}
	pub := &fakePublisher{err: &providers.APIError{Provider: "x", Status: 403}}
	logs := &fakeLogs{}

	res, err := newTestPipeline(gen, scorer, logs, WithPublisher(pub)).
		Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if res == nil || res.Published || len(logs.logs) != 1 {
		t.Errorf("res = %+v logs = %d", res, len(logs.logs))
	}
}

func TestRun_PublishTimeoutIsNotRepeated(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10]"}}}}
	timeout := errors.New(`Post "https://api.x.com/2/tweets": net/http: request canceled (Client.Timeout exceeded while awaiting headers)`)
	pub := &flakyPublisher{errs: []error{timeout}, landed: true}
	hist := &fakeHistory{}

	_, err := newTestPipeline(gen, scorer, &fakeLogs{}, WithPublisher(pub), WithHistory(hist)).
		Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if pub.calls != 1 || len(pub.posts) != 1 {
		t.Errorf("calls = %d landed = %d, want 1/1", pub.calls, len(pub.posts))
	}
	if retry.IsRetryable(err) {
		t.Error("a failed publish must not trigger a rerun")
	}
	if len(hist.recorded) != 0 {
		t.Error("nothing should be recorded for a failed publish")
	}
}

func TestRun_PublishRetriedWhenNothingSent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rate limited", &providers.APIError{Provider: "x", Status: 429}},
		{"dial failure", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
			scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10]"}}}}
			pub := &flakyPublisher{errs: []error{tt.err, nil}}

			res, err := newTestPipeline(gen, scorer, &fakeLogs{}, WithPublisher(pub)).
				Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if pub.calls != 2 || len(pub.posts) != 1 {
				t.Errorf("calls = %d posts = %d, want 2/1", pub.calls, len(pub.posts))
			}
			if !res.Published || res.PublishID != "ext-2" {
				t.Errorf("res = %+v", res)
			}
		})
	}
}

func TestRun_PublishAuthFailureSingleAttempt(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
	scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10]"}}}}
	pub := &flakyPublisher{errs: []error{&providers.APIError{Provider: "telegram", Status: 401}}}

	_, err := newTestPipeline(gen, scorer, &fakeLogs{}, WithPublisher(pub)).
		Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if pub.calls != 1 {
		t.Errorf("calls = %d, want 1", pub.calls)
	}
}

func TestRun_PublishWithoutPublisher(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
	_, err := newTestPipeline(gen, nil, &fakeLogs{}).Run(context.Background(), "jack", testPool, RunOptions{Publish: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if gen.calls() != 0 {
		t.Error("no model call should happen when publishing is impossible")
	}
}

func TestRun_EmptyPool(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
	pool := []string{"https://only.links/here", "   "}
	_, err := newTestPipeline(gen, nil, &fakeLogs{}).Run(context.Background(), "jack", pool, RunOptions{})
	if !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestRun_ScorerDefaultsToGenerator(t *testing.T) {
	gen := &fakeCompleter{name: "gen", replies: []fakeReply{
		{choices: []string{"a", "b"}},
		{choices: []string{"[10, 10]", "[10, 10]"}},
	}}
	res, err := newTestPipeline(gen, nil, &fakeLogs{}).Run(context.Background(), "jack", testPool, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.calls() != 2 || res.Post != "a" {
		t.Errorf("calls = %d post = %q", gen.calls(), res.Post)
	}
}

func TestRun_SeededRandIsDeterministic(t *testing.T) {
	run := func() *store.RunLog {
		gen := &fakeCompleter{name: "gen", replies: []fakeReply{{choices: []string{"a"}}}}
		scorer := &fakeCompleter{name: "score", replies: []fakeReply{{choices: []string{"[10]"}}}}
		res, err := newTestPipeline(gen, scorer, &fakeLogs{}).Run(context.Background(), "jack", testPool, RunOptions{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res.Log
	}
	a, b := run(), run()
	if a.Input.Adverb != b.Input.Adverb || a.Input.Mood != b.Input.Mood || a.Input.TweetLength != b.Input.TweetLength {
		t.Errorf("tone differs: %+v vs %+v", a.Input, b.Input)
	}
	if strings.Join(a.Input.Tweets, "|") != strings.Join(b.Input.Tweets, "|") {
		t.Errorf("sample differs: %v vs %v", a.Input.Tweets, b.Input.Tweets)
	}
}
