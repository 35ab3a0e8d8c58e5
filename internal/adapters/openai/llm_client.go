package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// ProviderName identifies this backend in logs, metrics and the usage ledger
const ProviderName = "openai"

// Client is a completion backend over the OpenAI Chat Completions API.
// Output is constrained with a strict JSON schema response format.
type Client struct {
	client      *openai.Client
	modelName   string
	temperature float32
	logger      *zap.Logger
}

// NewClient creates a new OpenAI completion backend.
// An empty baseURL uses the public endpoint. A zero temperature is omitted
// from requests so models that only accept the default keep working.
func NewClient(apiKey, baseURL, modelName string, temperature float32, logger *zap.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		modelName:   modelName,
		temperature: temperature,
		logger:      logger,
	}
}

// Name returns the provider name
func (c *Client) Name() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.modelName }

// Complete sends one chat completion request
func (c *Client) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == core.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:               c.modelName,
		Messages:            messages,
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         c.temperature,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	c.logger.Debug("Chat completion received",
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return &core.Completion{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Truncated:    choice.FinishReason == openai.FinishReasonLength,
		Usage: core.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
