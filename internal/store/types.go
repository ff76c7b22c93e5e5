// Package store defines the records a compose run leaves behind: the run log
// written to disk and the ledger of published posts.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// RunInput records the parameters a run was composed with.
type RunInput struct {
	User        string   `json:"user"`
	Variant     string   `json:"variant"`
	Adverb      string   `json:"adverb"`
	Mood        string   `json:"mood"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature float64  `json:"temperature"`
	TweetLength string   `json:"tweetLength,omitempty"`
	Tweets      []string `json:"tweets"`
	N           int      `json:"n"`
}

// RunLog is the JSON document written once per compose run.
// Tweet is empty when no candidate passed the threshold.
type RunLog struct {
	RunID      string    `json:"runId"`
	Timestamp  time.Time `json:"timestamp"`
	Input      RunInput  `json:"input"`
	Choices    []string  `json:"choices"`
	AvgRatings []float64 `json:"avgRatings"`
	Threshold  float64   `json:"threshold"`
	Tweet      string    `json:"tweet"`
}

// Scrubbed returns a copy of in with scrub applied to the sampled posts.
func (in RunInput) Scrubbed(scrub func(string) string) RunInput {
	in.Tweets = mapStrings(in.Tweets, scrub)
	return in
}

// Scrubbed returns a copy of l with scrub applied to every free-text field.
func (l *RunLog) Scrubbed(scrub func(string) string) *RunLog {
	c := *l
	c.Input = l.Input.Scrubbed(scrub)
	c.Choices = mapStrings(l.Choices, scrub)
	c.Tweet = scrub(l.Tweet)
	return &c
}

func mapStrings(in []string, f func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}

// PublishedPost is one entry of the publish ledger.
type PublishedPost struct {
	ID          int64     `json:"id"`
	Account     string    `json:"account"`
	Text        string    `json:"text"`
	Target      string    `json:"target"`
	ExternalID  string    `json:"externalId,omitempty"`
	RunID       string    `json:"runId"`
	PublishedAt time.Time `json:"publishedAt"`
}

// HistoryStore remembers what has been published so a run never repeats a
// post for the same account.
type HistoryStore interface {
	RecordPublished(ctx context.Context, post PublishedPost) error
	WasPublished(ctx context.Context, account, text string) (bool, error)
	ListPublished(ctx context.Context, account string, limit int) ([]PublishedPost, error)
	Close() error
}

// TextHash is the ledger key for a post: sha256 of the trimmed,
// case-folded text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}
