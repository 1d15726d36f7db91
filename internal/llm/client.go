// Package llm wraps the external language-model API behind a narrow
// client interface the workflows consume. The concrete client speaks any
// OpenAI-compatible endpoint via langchaingo.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Errors returned by clients.
var (
	// ErrNoAPIKey indicates the client was built without credentials.
	ErrNoAPIKey = errors.New("llm: API key not configured")

	// ErrEmptyResponse indicates the model returned no usable content.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// CompletionRequest is one prompt for the model.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int     // 0 means the client default
	Temperature float64 // 0 means the client default
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content string
	Model   string
}

// Client completes prompts. Implementations are safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ClientFunc adapts a function to the Client interface. Handy in tests.
type ClientFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

// thinkBlock matches the reasoning traces some models emit before their
// answer.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks and trims the result.
// Reasoning models interleave these with the answer; users only want the
// answer.
func StripReasoning(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
