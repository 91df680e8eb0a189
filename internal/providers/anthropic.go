package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ppiankov/veracity/internal/model"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicAdapter asks a Claude model to assess sub-claims
type AnthropicAdapter struct {
	Descriptor
	client anthropic.Client
	model  string
}

// NewAnthropicAdapter creates an adapter for the Anthropic Messages API.
// Retries are disabled; the collector owns timeouts and failure accounting.
func NewAnthropicAdapter(cfg model.ProviderConfig, apiKey string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}

	return &AnthropicAdapter{
		Descriptor: descriptorFor(cfg, model.CategoryAIModel),
		client:     anthropic.NewClient(opts...),
		model:      modelName,
	}, nil
}

// Query sends the verification prompt and parses the structured answer
func (a *AnthropicAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 600,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(sub))),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, FromStatus(a.Name, apiErr.StatusCode, err)
		}
		return nil, Classify(a.Name, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, Malformed(a.Name, "no text content in response")
	}

	answer, err := ParseAnswer(text.String())
	if err != nil {
		return nil, NewError(a.Name, KindMalformedResponse, err)
	}

	return []model.EvidenceItem{answerItem(&a.Descriptor, a.model, answer)}, nil
}
