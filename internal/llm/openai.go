package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultModel       = "sonar"
	defaultMaxTokens   = 700
	defaultTemperature = 0.7
	defaultTimeout     = 90 * time.Second
)

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint
// (OpenAI, Perplexity, or any proxy speaking the same protocol).
type OpenAIClient struct {
	llm         *openai.LLM
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

var _ Client = (*OpenAIClient)(nil)

// Option configures an OpenAIClient.
type Option func(*options)

type options struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// WithAPIKey sets the API key (required).
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL points the client at a non-OpenAI endpoint, e.g.
// "https://api.perplexity.ai".
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithMaxTokens sets the default completion budget.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		if t >= 0 {
			o.temperature = t
		}
	}
}

// WithTimeout caps each request's duration.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOpenAIClient builds a client for an OpenAI-compatible API.
func NewOpenAIClient(opts ...Option) (*OpenAIClient, error) {
	o := options{
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	clientOpts := []openai.Option{
		openai.WithToken(o.apiKey),
		openai.WithModel(o.model),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(o.baseURL))
	}

	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return &OpenAIClient{
		llm:         client,
		model:       o.model,
		maxTokens:   o.maxTokens,
		temperature: o.temperature,
		timeout:     o.timeout,
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("llm completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	content := StripReasoning(resp.Choices[0].Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	return &CompletionResponse{
		Content: content,
		Model:   c.model,
	}, nil
}
