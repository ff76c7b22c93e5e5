// Package sampler draws a random, budget-bounded subset of cached snippets
// to use as prompt context.
package sampler

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Options bounds a draw.
type Options struct {
	MaxItems        int
	MaxTokens       int
	BaseOverhead    int
	PerItemOverhead int
	Cost            Coster // nil means WordCost
}

// Sample draws distinct items from pool uniformly at random until one of
// three limits is hit: MaxItems items selected, the running cost reaches
// MaxTokens, or every pool index has been drawn.
//
// The running cost starts at BaseOverhead and grows by Cost(item) +
// PerItemOverhead for every selected item. The check happens before each
// draw, so the final item may push the total past MaxTokens.
//
// Items are returned in draw order. Equal strings at different indices are
// selected at most once. A nil rng uses a time-seeded PCG source.
func Sample(pool []string, opts Options, rng *rand.Rand) []string {
	if len(pool) == 0 || opts.MaxItems <= 0 {
		return []string{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	cost := opts.Cost
	if cost == nil {
		cost = WordCost{}
	}

	drawn := make(map[int]struct{}, len(pool))
	seen := make(map[string]struct{})
	selected := make([]string, 0, min(opts.MaxItems, len(pool)))
	total := opts.BaseOverhead

	for len(selected) < opts.MaxItems && total < opts.MaxTokens && len(drawn) < len(pool) {
		i := rng.IntN(len(pool))
		if _, ok := drawn[i]; ok {
			continue
		}
		drawn[i] = struct{}{}

		s := pool[i]
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		selected = append(selected, s)
		total += cost.Cost(s) + opts.PerItemOverhead
	}
	return selected
}

// Join concatenates a sample the way it is placed in a prompt.
func Join(items []string) string {
	return strings.Join(items, "\n\n")
}
