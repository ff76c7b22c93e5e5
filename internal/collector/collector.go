// Package collector scrolls a feed and gathers unseen snippets into a cache.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nextlevelbuilder/parrot/internal/snippets"
)

// DefaultIdleLimit is how many consecutive empty steps are tolerated; the
// run stops on the step that pushes the idle count past it.
const DefaultIdleLimit = 10

// Feed yields the snippets visible after one scroll step.
type Feed interface {
	Next(ctx context.Context) ([]string, error)
}

// Result summarises a collection run.
type Result struct {
	Total int // cache size after the run
	New   int // snippets added by this run
	Steps int // scroll steps taken
}

// Collector drives a Feed until it stops producing new snippets.
type Collector struct {
	idleLimit int
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

func WithIdleLimit(n int) Option            { return func(c *Collector) { c.idleLimit = n } }
func WithLogger(l *slog.Logger) Option      { return func(c *Collector) { c.logger = l } }
func WithClock(now func() time.Time) Option { return func(c *Collector) { c.now = now } }

// New creates a Collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		idleLimit: DefaultIdleLimit,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.idleLimit <= 0 {
		c.idleLimit = DefaultIdleLimit
	}
	return c
}

// Run steps through feed, adding unseen snippets to cache. Any new snippet
// resets the idle counter; an empty step increments it. The loop ends once
// the counter exceeds the idle limit. On error the partial result is
// returned and cache keeps whatever was added.
func (c *Collector) Run(ctx context.Context, feed Feed, cache *snippets.Cache) (Result, error) {
	start := c.now().UTC()
	res := Result{}
	idle := 0

	for idle <= c.idleLimit {
		if err := ctx.Err(); err != nil {
			res.Total = cache.Len()
			return res, err
		}

		items, err := feed.Next(ctx)
		res.Steps++
		if err != nil {
			res.Total = cache.Len()
			return res, fmt.Errorf("feed step %d: %w", res.Steps, err)
		}

		found := false
		for _, s := range items {
			if cache.Add(s) {
				res.New++
				found = true
				c.logger.Debug("new snippet", "text", s)
			}
		}
		if found {
			idle = 0
		} else {
			idle++
		}
	}

	if cache.FirstDate == nil {
		cache.FirstDate = &start
	}
	res.Total = cache.Len()
	c.logger.Info("collection finished", "total", res.Total, "new", res.New, "steps", res.Steps)
	return res, nil
}

// SearchURL builds the live search for an account's own top-level posts
// with at least minLikes likes. A non-nil since narrows it to posts from
// that day on.
func SearchURL(base, account string, minLikes int, since *time.Time) string {
	q := fmt.Sprintf("(from:%s) min_faves:%d -filter:replies", account, minLikes)
	if since != nil {
		q += " since:" + since.UTC().Format("2006-01-02")
	}
	v := url.Values{}
	v.Set("f", "live")
	v.Set("q", q)
	v.Set("src", "typed_query")
	return base + "?" + v.Encode()
}
