// Package tokenizer estimates how much context a persona document will
// occupy once injected into a session.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding matches the encoding used by current chat models.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts tokens with a BPE encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

// New creates a tokenizer for DefaultEncoding. Loading the encoding may
// need network access the first time; callers should fall back to
// Estimate when it fails.
func New() (*Tokenizer, error) {
	return NewWithEncoding(DefaultEncoding)
}

// NewWithEncoding creates a tokenizer for a named tiktoken encoding.
func NewWithEncoding(name string) (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load encoding %s: %w", name, err)
	}
	return &Tokenizer{encoding: enc}, nil
}

// CountTokens returns the number of tokens in text. A nil Tokenizer
// falls back to Estimate.
func (t *Tokenizer) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return Estimate(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoding.Encode(text, nil, nil))
}

// Estimate approximates a token count at four bytes per token.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
