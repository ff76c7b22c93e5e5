package composer

import (
	"errors"
	"fmt"
	"net"

	"github.com/nextlevelbuilder/parrot/internal/providers"
)

var (
	// ErrNoAcceptableCandidate means no candidate cleared the safety
	// threshold; nothing is published.
	ErrNoAcceptableCandidate = errors.New("no acceptable candidate")

	// ErrScoreLengthMismatch means a scoring pass did not return exactly one
	// score per candidate.
	ErrScoreLengthMismatch = errors.New("score count does not match candidate count")

	// ErrEmptyPool means the cache held nothing usable after filtering.
	ErrEmptyPool = errors.New("no snippets available to sample")
)

// PublishError reports a failed publish. The target may still have accepted
// the post, so the run must not be repeated automatically.
type PublishError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s (%d attempts): %v", e.Target, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error   { return e.Err }
func (e *PublishError) Retryable() bool { return false }

// nothingSent reports whether a publish error proves the post never reached
// the target: a rate-limit answer or a failed dial.
func nothingSent(err error) bool {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
