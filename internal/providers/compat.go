package providers

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go/v2"
	oaioption "github.com/openai/openai-go/v2/option"

	"github.com/ppiankov/veracity/internal/model"
)

// CompatAdapter talks to any OpenAI-compatible chat endpoint
// (vLLM, LM Studio, OpenRouter, Azure-style gateways)
type CompatAdapter struct {
	Descriptor
	client oai.Client
	model  string
}

// NewCompatAdapter creates an adapter for an OpenAI-compatible endpoint
func NewCompatAdapter(cfg model.ProviderConfig, apiKey string) (*CompatAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for compat provider %s", cfg.ID)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for compat provider %s", cfg.ID)
	}

	opts := []oaioption.RequestOption{
		oaioption.WithBaseURL(cfg.BaseURL),
		oaioption.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, oaioption.WithAPIKey(apiKey))
	}

	return &CompatAdapter{
		Descriptor: descriptorFor(cfg, model.CategoryAIModel),
		client:     oai.NewClient(opts...),
		model:      cfg.Model,
	}, nil
}

// Query sends the verification prompt and parses the structured answer
func (a *CompatAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	resp, err := a.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: oai.ChatModel(a.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(BuildPrompt(sub)),
		},
		Temperature: oai.Float(0),
	})
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return nil, FromStatus(a.Name, apiErr.StatusCode, err)
		}
		return nil, Classify(a.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, Malformed(a.Name, "no choices in response")
	}

	answer, err := ParseAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, NewError(a.Name, KindMalformedResponse, err)
	}

	return []model.EvidenceItem{answerItem(&a.Descriptor, a.model, answer)}, nil
}
