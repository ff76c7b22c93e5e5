package sampler

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Coster estimates the prompt cost of one snippet.
type Coster interface {
	Cost(s string) int
}

// WordCost counts single-space separated fields, so "a  b" costs 3.
type WordCost struct{}

func (WordCost) Cost(s string) int {
	return len(strings.Split(s, " "))
}

// TiktokenCost counts BPE tokens for a model's encoding.
type TiktokenCost struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCost resolves the encoding for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTiktokenCost(model string) (*TiktokenCost, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	return &TiktokenCost{enc: enc}, nil
}

func (c *TiktokenCost) Cost(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

// NewCoster maps a tokenizer name from config to a Coster.
func NewCoster(tokenizer, model string) (Coster, error) {
	switch tokenizer {
	case "", "words":
		return WordCost{}, nil
	case "tiktoken":
		return NewTiktokenCost(model)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", tokenizer)
	}
}
