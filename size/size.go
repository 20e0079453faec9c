// Package size measures how large a cached value is, in whichever unit
// the cache is configured to budget against: raw bytes or model tokens.
// Token counting is pluggable — callers that have a real tokenizer (e.g.
// tiktoken, a provider SDK) wire it in through the Tokenizer interface;
// without one, Measurer falls back to a character-based approximation.
package size

import (
	"bytes"
	"encoding/json"
)

// Tokenizer estimates how many model tokens a string encodes to. Real
// implementations wrap a provider's tokenizer (tiktoken-go,
// anthropic-sdk-go's count-tokens endpoint, etc.); besides the built-in
// approximation, refcache ships one adapter in size/anthropictoken.
type Tokenizer interface {
	// Encode returns the token IDs for text.
	Encode(text string) []int
	// CountTokens returns len(Encode(text)) without allocating the slice
	// when the tokenizer can compute it directly.
	CountTokens(text string) int
	// ModelName identifies the tokenizer's target model, for logging.
	ModelName() string
}

// Measurer reports the size of an arbitrary value in the cache's
// configured unit.
type Measurer interface {
	// Measure returns the size of v once canonically serialized.
	Measure(v any) (int, error)
	// Unit names the measurement unit ("bytes" or "tokens"), for
	// surfacing in responses and logs.
	Unit() string
}

// ByteMeasurer measures the canonical JSON encoding's byte length.
type ByteMeasurer struct{}

// NewByteMeasurer constructs a Measurer that counts bytes.
func NewByteMeasurer() Measurer { return ByteMeasurer{} }

func (ByteMeasurer) Unit() string { return "bytes" }

func (ByteMeasurer) Measure(v any) (int, error) {
	data, err := canonicalJSON(v)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// TokenMeasurer measures the token count of the canonical JSON encoding
// using an injected Tokenizer. When tokenizer is nil, falls back to
// approximateTokenizer (roughly one token per four characters).
type TokenMeasurer struct {
	tokenizer Tokenizer
}

// NewTokenMeasurer constructs a Measurer that counts tokens via
// tokenizer. A nil tokenizer uses the built-in character-based
// approximation.
func NewTokenMeasurer(tokenizer Tokenizer) Measurer {
	if tokenizer == nil {
		tokenizer = approximateTokenizer{}
	}
	return TokenMeasurer{tokenizer: tokenizer}
}

// NewApproximateTokenizer returns the built-in character-based Tokenizer
// used when no exact tokenizer is configured, for adapters (e.g. an
// exact-BPE client) that want the same fallback behavior when their
// backing API call fails.
func NewApproximateTokenizer() Tokenizer {
	return approximateTokenizer{}
}

func (TokenMeasurer) Unit() string { return "tokens" }

func (m TokenMeasurer) Measure(v any) (int, error) {
	data, err := canonicalJSON(v)
	if err != nil {
		return 0, err
	}
	return m.tokenizer.CountTokens(string(data)), nil
}

// canonicalJSON serializes v the same way the reference store does for
// cache-key derivation: compact, with map keys sorted (encoding/json's
// default behavior for map[string]any).
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// approximateTokenizer estimates one token per ~4 characters, the same
// rule of thumb used when no real tokenizer is available. It never
// reports zero tokens for non-empty text.
type approximateTokenizer struct{}

const charsPerToken = 4.0

func (approximateTokenizer) Encode(text string) []int {
	n := approximateTokenizer{}.CountTokens(text)
	ids := make([]int, n)
	return ids
}

func (approximateTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	chars := len([]rune(text))
	tokens := int(float64(chars)/charsPerToken + 0.5)
	if tokens == 0 {
		return 1
	}
	return tokens
}

func (approximateTokenizer) ModelName() string { return "approximate-4-chars-per-token" }
