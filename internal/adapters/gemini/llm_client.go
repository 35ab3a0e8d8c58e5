package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/email-classifier/internal/core"
)

// ProviderName identifies this backend in logs, metrics and the usage ledger
const ProviderName = "gemini"

// Client is a completion backend over Google Gemini
type Client struct {
	client      *genai.Client
	modelName   string
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClient creates a new Gemini completion backend
func NewClient(ctx context.Context, apiKey, modelName string, temperature, topP float32, logger *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:      client,
		modelName:   modelName,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}, nil
}

// Name returns the provider name
func (c *Client) Name() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.modelName }

// Complete sends one generate-content request.
// A model handle is built per call because budgets differ between attempts.
func (c *Client) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(c.temperature)
	if c.topP > 0 {
		model.SetTopP(c.topP)
	}
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toSchema(req.Schema)
	}

	var parts []genai.Part
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	completion, err := completionFromResponse(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Gemini content received",
		zap.String("model", c.modelName),
		zap.String("finish_reason", completion.FinishReason),
		zap.Int("total_tokens", completion.Usage.TotalTokens))

	return completion, nil
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

func completionFromResponse(resp *genai.GenerateContentResponse) (*core.Completion, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}

	completion := &core.Completion{
		Content:      text.String(),
		FinishReason: candidate.FinishReason.String(),
		Truncated:    candidate.FinishReason == genai.FinishReasonMaxTokens,
	}
	if resp.UsageMetadata != nil {
		completion.Usage = core.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return completion, nil
}

// toSchema converts the output schema to the Gemini response schema
func toSchema(s *core.OutputSchema) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(s.Fields))
	for _, f := range s.Fields {
		prop := &genai.Schema{
			Type:        schemaType(f.Type),
			Description: f.Description,
			Enum:        f.Enum,
			Nullable:    f.Nullable,
		}
		if len(f.Enum) > 0 {
			prop.Format = "enum"
		}
		if f.Type == core.FieldArray {
			prop.Items = &genai.Schema{Type: schemaType(f.Items)}
		}
		properties[f.Name] = prop
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   s.Required(),
	}
}

func schemaType(fieldType string) genai.Type {
	switch fieldType {
	case core.FieldNumber:
		return genai.TypeNumber
	case core.FieldArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}
