// Package snippets holds the per-account cache of collected post texts.
//
// The cache is a set keyed by exact string value. It persists as JSON in one
// of two shapes:
//
//	["text", ...]                                   (bare array)
//	{"firstDate": "2023-03-01T00:00:00.000Z", "tweets": ["text", ...]}
//
// The object shape is written whenever a first-collection date is known.
package snippets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Cache is an insertion-ordered set of distinct snippets.
type Cache struct {
	FirstDate *time.Time

	items []string
	index map[string]struct{}
}

type cacheFile struct {
	FirstDate string   `json:"firstDate,omitempty"`
	Tweets    []string `json:"tweets"`
}

// firstDateLayout is what Save writes: UTC with milliseconds.
const firstDateLayout = "2006-01-02T15:04:05.000Z07:00"

// firstDateLayouts are the ISO 8601 forms accepted for firstDate.
var firstDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseFirstDate(s string) (time.Time, error) {
	for _, layout := range firstDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// New returns an empty cache, optionally seeded with items.
func New(items ...string) *Cache {
	c := &Cache{index: make(map[string]struct{}, len(items))}
	for _, s := range items {
		c.Add(s)
	}
	return c
}

// Add inserts s if absent and reports whether it was new.
func (c *Cache) Add(s string) bool {
	if _, ok := c.index[s]; ok {
		return false
	}
	c.index[s] = struct{}{}
	c.items = append(c.items, s)
	return true
}

// Has reports whether s is in the cache.
func (c *Cache) Has(s string) bool {
	_, ok := c.index[s]
	return ok
}

// Len returns the number of distinct snippets.
func (c *Cache) Len() int { return len(c.items) }

// Items returns a copy of the snippets in insertion order.
func (c *Cache) Items() []string {
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out
}

// PathFor returns the cache file path for an account.
func PathFor(dir, account string) string {
	return filepath.Join(dir, fmt.Sprintf("tweets_%s.json", account))
}

// Open reads a cache file. A missing file yields an empty cache; a file that
// exists but cannot be read or parsed is an error, so callers do not
// overwrite it.
func Open(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}
	return c, nil
}

// Load is Open for readers: any failure is logged and yields an empty cache.
func Load(path string) *Cache {
	c, err := Open(path)
	if err != nil {
		slog.Warn("snippets: cannot load cache, starting empty", "path", path, "error", err)
		return New()
	}
	return c
}

// Decode parses either supported JSON shape.
func Decode(data []byte) (*Cache, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty cache file")
	}

	switch trimmed[0] {
	case '[':
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode array cache: %w", err)
		}
		return New(items...), nil
	case '{':
		var f cacheFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decode object cache: %w", err)
		}
		c := New(f.Tweets...)
		if f.FirstDate != "" {
			t, err := parseFirstDate(f.FirstDate)
			if err != nil {
				slog.Warn("snippets: ignoring firstDate", "error", err)
			} else {
				c.FirstDate = &t
			}
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unexpected cache format")
	}
}

// Save writes the cache atomically (temp file + rename).
func (c *Cache) Save(path string) error {
	var v any = c.items
	if c.FirstDate != nil {
		v = cacheFile{FirstDate: c.FirstDate.UTC().Format(firstDateLayout), Tweets: c.items}
	}
	if c.items == nil && c.FirstDate == nil {
		v = []string{}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tweets-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}
