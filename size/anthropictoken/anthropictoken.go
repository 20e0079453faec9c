// Package anthropictoken adapts the Anthropic Messages API's token-counting
// endpoint into a size.Tokenizer, an exact-BPE adapter for a common LLM
// family as an alternative to the built-in character-based approximation.
package anthropictoken

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"goa.design/refcache/size"
)

// CountTokensClient captures the subset of the Anthropic SDK used here,
// satisfied by *sdk.MessageService so callers can pass either a real client
// or a mock in tests, following the same narrow-interface pattern the
// Anthropic model adapter uses for MessagesClient.
type CountTokensClient interface {
	CountTokens(ctx context.Context, params sdk.MessageCountTokensParams) (*sdk.MessageTokensCount, error)
}

// Tokenizer counts tokens via the Anthropic Messages API's count_tokens
// endpoint for the configured model, falling back to the character-based
// approximation when the request fails (network error, rate limit): a
// size.Measurer call has no error return path back to its caller worth
// failing the whole cache operation over, so a tokenizer that can't reach
// the API degrades to the estimate rather than reporting a wrong size.
type Tokenizer struct {
	client   CountTokensClient
	model    sdk.Model
	fallback size.Tokenizer
}

// New builds a Tokenizer that counts tokens for model using client.
func New(client CountTokensClient, model string) *Tokenizer {
	return &Tokenizer{client: client, model: sdk.Model(model)}
}

// ModelName identifies the tokenizer's target model.
func (t *Tokenizer) ModelName() string { return string(t.model) }

// CountTokens returns the exact input-token count the Messages API would
// bill for text as a single user message, or the approximate count if the
// API call fails.
func (t *Tokenizer) CountTokens(text string) int {
	resp, err := t.client.CountTokens(context.Background(), sdk.MessageCountTokensParams{
		Model: t.model,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(text)),
		},
	})
	if err != nil {
		return t.approximate(text)
	}
	return int(resp.InputTokens)
}

// Encode returns a slice of length CountTokens(text); the count_tokens
// endpoint reports a total only, never the token IDs themselves, so unlike
// a local BPE tokenizer this cannot recover the actual sequence.
func (t *Tokenizer) Encode(text string) []int {
	return make([]int, t.CountTokens(text))
}

func (t *Tokenizer) approximate(text string) int {
	if t.fallback == nil {
		t.fallback = size.NewApproximateTokenizer()
	}
	return t.fallback.CountTokens(text)
}
