package tokenest

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenEstimator is a precise Tokenizer backed by the BPE encodings
// tiktoken-go ships for OpenAI-style models. It satisfies the Tokenizer
// interface expected by Estimator.SetTokenizer.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding (e.g. "cl100k_base").
// Callers should treat a non-nil error as a configuration error per
// spec.md §7 and fall back to the heuristic estimator.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// CountTokens implements Tokenizer.
func (t *TiktokenEstimator) CountTokens(text string) (int, error) {
	if t == nil || t.enc == nil {
		return 0, fmt.Errorf("tiktoken estimator not initialized")
	}
	tokens := t.enc.Encode(text, nil, nil)
	return len(tokens), nil
}
