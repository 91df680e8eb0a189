package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/veracity/internal/model"
)

// OpenAIAdapter asks an OpenAI chat model to assess sub-claims
type OpenAIAdapter struct {
	Descriptor
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates an adapter for the OpenAI Chat Completions API
func NewOpenAIAdapter(cfg model.ProviderConfig, apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	return &OpenAIAdapter{
		Descriptor: descriptorFor(cfg, model.CategoryAIModel),
		client:     openai.NewClientWithConfig(clientConfig),
		model:      modelName,
	}, nil
}

// Query sends the verification prompt and parses the structured answer
func (a *OpenAIAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(sub)},
		},
		MaxTokens:   600,
		Temperature: 0,
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, a.classify(err)
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

func (a *OpenAIAdapter) classify(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return FromStatus(a.Name, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return FromStatus(a.Name, reqErr.HTTPStatusCode, err)
	}
	return Classify(a.Name, err)
}
