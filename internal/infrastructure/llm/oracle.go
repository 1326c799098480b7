// Package llm provides the concrete llmagent.Oracle backing the exploration
// agent's prompt dispatch, grounded on the workflow engine's
// OpenAICompletionExecutor (spec.md §11 go-openai).
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/smilemakc/uxplore/internal/domain/uxerrors"
)

var errEmptyChoices = errors.New("openai returned no choices")

const defaultModel = "gpt-4o"

// Oracle dispatches prompts to the OpenAI chat-completion API.
type Oracle struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithModel overrides the default chat-completion model.
func WithModel(model string) Option {
	return func(o *Oracle) { o.model = model }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(o *Oracle) { o.maxTokens = n }
}

// WithTemperature overrides sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *Oracle) { o.temperature = t }
}

// NewOracle creates an Oracle authenticated with apiKey.
func NewOracle(apiKey string, opts ...Option) *Oracle {
	o := &Oracle{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ask sends prompt as a single user message and returns the trimmed
// completion text, satisfying llmagent.Oracle.
func (o *Oracle) Ask(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:               o.model,
		MaxCompletionTokens: o.maxTokens,
		Temperature:         o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return "", uxerrors.NewLLMFailureError("chat-completion", 1, err, true)
	}
	if len(resp.Choices) == 0 {
		return "", uxerrors.NewLLMFailureError("chat-completion", 1, errEmptyChoices, false)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Debug().
		Str("model", resp.Model).
		Str("response_id", resp.ID).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("latency", latency).
		Msg("openai chat completion")

	return content, nil
}
