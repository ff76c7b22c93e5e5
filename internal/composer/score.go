package composer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseScores extracts the first JSON array of numbers from a scoring
// completion. Surrounding prose and code fences are ignored.
func ParseScores(content string) ([]float64, error) {
	start := strings.IndexByte(content, '[')
	if start < 0 {
		return nil, fmt.Errorf("no score array in %q", content)
	}
	end := strings.IndexByte(content[start:], ']')
	if end < 0 {
		return nil, fmt.Errorf("unterminated score array in %q", content)
	}

	var scores []float64
	if err := json.Unmarshal([]byte(content[start:start+end+1]), &scores); err != nil {
		return nil, fmt.Errorf("decode score array: %w", err)
	}
	return scores, nil
}

// AverageScores returns the element-wise mean of the passes. Every pass must
// hold exactly n scores.
func AverageScores(passes [][]float64, n int) ([]float64, error) {
	if len(passes) == 0 {
		return nil, fmt.Errorf("no scoring passes")
	}
	sum := make([]float64, n)
	for i, pass := range passes {
		if len(pass) != n {
			return nil, fmt.Errorf("%w: pass %d has %d scores for %d candidates", ErrScoreLengthMismatch, i, len(pass), n)
		}
		for j, v := range pass {
			sum[j] += v
		}
	}
	for j := range sum {
		sum[j] /= float64(len(passes))
	}
	return sum, nil
}

// Threshold is the minimum average score a candidate needs:
// (1.5 - temperature) / 2. The formula is kept for compatibility with
// existing run logs; it has not been validated against score data.
func Threshold(temperature float64) float64 {
	return (1.5 - temperature) / 2
}

// Select returns the index of the first candidate whose average meets the
// threshold and is not rejected by skip. A later, higher-scoring candidate
// never wins over an earlier passing one.
func Select(candidates []string, avg []float64, threshold float64, skip func(string) bool) (int, error) {
	for i, c := range candidates {
		if i >= len(avg) {
			break
		}
		if avg[i] < threshold || c == "" {
			continue
		}
		if skip != nil && skip(c) {
			continue
		}
		return i, nil
	}
	return -1, ErrNoAcceptableCandidate
}
