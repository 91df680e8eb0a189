package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaAdapter asks a locally hosted Ollama model to assess sub-claims
type OllamaAdapter struct {
	Descriptor
	baseURL    string
	model      string
	httpClient *http.Client
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaAdapter creates an adapter for the Ollama generate API
func NewOllamaAdapter(cfg model.ProviderConfig, client *http.Client) *OllamaAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "llama3.1"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &OllamaAdapter{
		Descriptor: descriptorFor(cfg, model.CategoryAIModel),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      modelName,
		httpClient: client,
	}
}

// Query sends the verification prompt and parses the structured answer
func (a *OllamaAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	req := ollamaRequest{
		Model:   a.model,
		Prompt:  BuildPrompt(sub),
		System:  systemPrompt,
		Options: ollamaOptions{Temperature: 0, NumPredict: 600},
	}

	var resp ollamaResponse
	if err := doJSON(ctx, a.httpClient, http.MethodPost, a.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return nil, Classify(a.Name, err)
	}

	answer, err := ParseAnswer(resp.Response)
	if err != nil {
		return nil, NewError(a.Name, KindMalformedResponse, err)
	}

	return []model.EvidenceItem{answerItem(&a.Descriptor, a.model, answer)}, nil
}
