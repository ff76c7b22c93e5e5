// Package file writes run logs as standalone JSON files.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/parrot/internal/redact"
	"github.com/nextlevelbuilder/parrot/internal/store"
)

// RunLogWriter writes one file per compose run into Dir.
type RunLogWriter struct {
	Dir string
}

func NewRunLogWriter(dir string) *RunLogWriter {
	return &RunLogWriter{Dir: dir}
}

// Write stores log as <Dir>/tweet_<account>_<timestamp>.json and returns the
// path. Credential-shaped tokens are scrubbed from the text fields first.
func (w *RunLogWriter) Write(log *store.RunLog) (string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	data, err := json.MarshalIndent(log.Scrubbed(redact.ScrubKeys), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run log: %w", err)
	}

	path := filepath.Join(w.Dir, FileName(log.Input.User, log.Timestamp))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

// FileName builds the log file name. Colons are replaced so the name is
// valid on every filesystem.
func FileName(account string, ts time.Time) string {
	return fmt.Sprintf("tweet_%s_%s.json", account, ts.UTC().Format("2006-01-02T15-04-05.000Z"))
}
