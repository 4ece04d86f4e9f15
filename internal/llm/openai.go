package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is the production Completer backed by the OpenAI chat API.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAIClient talks to the OpenAI API, or to any compatible endpoint
// (such as a local Ollama server) when baseURL is set.
func NewOpenAIClient(apiKey, baseURL, model string, maxTokens int, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    message.Role,
			Content: message.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		MaxTokens:   c.maxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Completion timed out", zap.Duration("timeout", opts.Timeout))
			return "", ErrTimeout
		}
		c.logger.Error("Completion request failed", zap.Error(err))
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion request: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
