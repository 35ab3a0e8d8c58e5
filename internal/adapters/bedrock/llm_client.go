package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// ProviderName identifies this backend in logs, metrics and the usage ledger
const ProviderName = "bedrock"

// ConverseAPI is the subset of the Bedrock runtime client used here
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client is a completion backend over the Bedrock Converse API.
// Converse has no schema mode, so the schema is appended to the instructions.
type Client struct {
	client      ConverseAPI
	modelID     string
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewClient creates a new Bedrock completion backend
func NewClient(client ConverseAPI, modelID string, temperature, topP float32, logger *zap.Logger) *Client {
	return &Client{
		client:      client,
		modelID:     modelID,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Name returns the provider name
func (c *Client) Name() string { return ProviderName }

// Model returns the configured model
func (c *Client) Model() string { return c.modelID }

// Complete sends one Converse request
func (c *Client) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	var system []types.SystemContentBlock
	var messages []types.Message
	for _, m := range req.Messages {
		if m.Role == core.RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		messages = append(messages, types.Message{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output schema: %w", err)
		}
		system = append(system, &types.SystemContentBlockMemberText{
			Value: "Responda apenas com um objeto JSON válido segundo este JSON Schema: " + string(schemaJSON),
		})
	}

	inference := &types.InferenceConfiguration{
		MaxTokens:   aws.Int32(int32(req.MaxTokens)),
		Temperature: aws.Float32(c.temperature),
	}
	if c.topP > 0 {
		inference.TopP = aws.Float32(c.topP)
	}

	out, err := c.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		Messages:        messages,
		System:          system,
		InferenceConfig: inference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	completion, err := completionFromOutput(out)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Bedrock response received",
		zap.String("model", c.modelID),
		zap.String("stop_reason", completion.FinishReason),
		zap.Int("total_tokens", completion.Usage.TotalTokens))

	return completion, nil
}

func completionFromOutput(out *bedrockruntime.ConverseOutput) (*core.Completion, error) {
	if out == nil {
		return nil, errors.New("bedrock returned no output")
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected Bedrock output type %T", out.Output)
	}

	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}

	completion := &core.Completion{
		Content:      text.String(),
		FinishReason: string(out.StopReason),
		Truncated:    out.StopReason == types.StopReasonMaxTokens,
	}
	if out.Usage != nil {
		completion.Usage = core.Usage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return completion, nil
}
