package collector

import (
	"context"
	"time"
)

// Scroller is the browser capability a PageFeed needs.
type Scroller interface {
	ScrollAndCollect(ctx context.Context, selector string, stepPx int, pause time.Duration) ([]string, error)
}

// PageFeed adapts a browser page to Feed: each step reads the matching
// elements and scrolls further down.
type PageFeed struct {
	Page     Scroller
	Selector string
	StepPx   int
	Pause    time.Duration
}

func (f *PageFeed) Next(ctx context.Context) ([]string, error) {
	return f.Page.ScrollAndCollect(ctx, f.Selector, f.StepPx, f.Pause)
}
