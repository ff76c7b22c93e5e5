package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/parrot/internal/store"
)

func TestFileName(t *testing.T) {
	ts := time.Date(2023, 4, 5, 6, 7, 8, 9_000_000, time.UTC)
	got := FileName("jack", ts)
	want := "tweet_jack_2023-04-05T06-07-08.009Z.json"
	if got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}
	if strings.Contains(got, ":") {
		t.Error("file name must not contain colons")
	}
}

func TestRunLogWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w := NewRunLogWriter(dir)

	log := &store.RunLog{
		RunID:      "run-1",
		Timestamp:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Input:      store.RunInput{User: "jack", Adverb: "very", Mood: "happy", N: 2, Tweets: []string{"a"}},
		Choices:    []string{"one", "leaked sk-abcdefghijklmnopqrstuvwxyz123456"},
		AvgRatings: []float64{9, 2},
		Tweet:      "one",
	}
	path, err := w.Write(log)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-abcdef") {
		t.Error("credential was not scrubbed")
	}

	var got store.RunLog
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tweet != "one" || got.Input.Mood != "happy" || len(got.AvgRatings) != 2 {
		t.Errorf("decoded log = %+v", got)
	}
}

func TestRunLogWriter_KeepsDocumentValid(t *testing.T) {
	w := NewRunLogWriter(t.TempDir())
	log := &store.RunLog{
		RunID:     "run-2",
		Timestamp: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		Input: store.RunInput{User: "jack", Tweets: []string{
			`my password: "hunter2hunter2" got leaked lol`,
			"token=notreallyatoken, ok",
		}},
		Choices:    []string{`forgot my password="hunter2hunter2", again`},
		AvgRatings: []float64{8},
		Tweet:      `forgot my password="hunter2hunter2", again`,
	}
	path, err := w.Write(log)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got store.RunLog
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("run log is not valid JSON: %v\n%s", err, data)
	}
	if got.Tweet != log.Tweet {
		t.Errorf("tweet = %q, want %q", got.Tweet, log.Tweet)
	}
	if len(got.Input.Tweets) != 2 || got.Input.Tweets[1] != "token=notreallyatoken, ok" {
		t.Errorf("sample = %q", got.Input.Tweets)
	}
	if log.Choices[0] != got.Choices[0] {
		t.Errorf("choices = %q", got.Choices)
	}
}
