package composer

import (
	"errors"
	"math"
	"testing"
)

func TestParseScores(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []float64
		wantErr bool
	}{
		{"bare", "[9, 2, 7]", []float64{9, 2, 7}, false},
		{"prose", "Here are the scores: [10, 8.5] as requested.", []float64{10, 8.5}, false},
		{"fenced", "```json\n[1,2,3]\n```", []float64{1, 2, 3}, false},
		{"empty array", "[]", []float64{}, false},
		{"no array", "I cannot rate these.", nil, true},
		{"unterminated", "[1, 2", nil, true},
		{"strings", `["a", "b"]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScores(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAverageScores(t *testing.T) {
	avg, err := AverageScores([][]float64{{9, 2, 7}, {7, 4, 5}}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{8, 3, 6}
	for i := range want {
		if math.Abs(avg[i]-want[i]) > 1e-9 {
			t.Fatalf("avg = %v, want %v", avg, want)
		}
	}
}

func TestAverageScores_LengthMismatch(t *testing.T) {
	_, err := AverageScores([][]float64{{1, 2, 3}, {1, 2}}, 3)
	if !errors.Is(err, ErrScoreLengthMismatch) {
		t.Fatalf("expected ErrScoreLengthMismatch, got %v", err)
	}
	if _, err := AverageScores(nil, 3); err == nil {
		t.Error("expected error with no passes")
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		temp, want float64
	}{
		{0, 0.75},
		{0.9, 0.3},
		{1.0, 0.25},
		{1.5, 0},
	}
	for _, tt := range tests {
		if got := Threshold(tt.temp); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Threshold(%v) = %v, want %v", tt.temp, got, tt.want)
		}
	}
}

func TestSelect_FirstPassingWins(t *testing.T) {
	candidates := []string{"a", "b", "c"}
	idx, err := Select(candidates, []float64{0.5, 0.9, 0.6}, Threshold(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Errorf("idx = %d, want 1", idx)
	}

	// a later higher score never beats an earlier pass
	idx, _ = Select(candidates, []float64{9, 2, 10}, 5, nil)
	if idx != 0 {
		t.Errorf("idx = %d, want 0", idx)
	}
}

func TestSelect_NoneAcceptable(t *testing.T) {
	idx, err := Select([]string{"a", "b"}, []float64{0.1, 0.2}, 0.75, nil)
	if !errors.Is(err, ErrNoAcceptableCandidate) || idx != -1 {
		t.Fatalf("got idx=%d err=%v", idx, err)
	}
}

func TestSelect_SkipsEmptyAndRejected(t *testing.T) {
	candidates := []string{"", "seen", "fresh"}
	skip := func(s string) bool { return s == "seen" }
	idx, err := Select(candidates, []float64{10, 10, 10}, 5, skip)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Errorf("idx = %d, want 2", idx)
	}
}
