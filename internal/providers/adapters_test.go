package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

const supportsAnswer = `VERDICT: SUPPORTS
CONFIDENCE: 0.9
SOURCES: https://www.usgs.gov/age-of-earth
EXPLANATION: Radiometric dating of meteorites gives 4.54 billion years.`

var earthSub = model.SubClaim{Text: "The Earth is approximately 4.5 billion years old", Type: model.ClaimTypeScientific, Importance: 1}

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
}

func TestOpenAIAdapter_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": supportsAnswer},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	adapter, err := NewOpenAIAdapter(model.ProviderConfig{ID: "openai", BaseURL: server.URL + "/v1", Model: "gpt-4o-mini", General: true}, "test-key")
	require.NoError(t, err)
	adapter.SetClock(fixedClock)

	items, err := adapter.Query(context.Background(), earthSub, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "openai", item.ProviderID)
	assert.Equal(t, model.CategoryAIModel, item.Category)
	assert.Equal(t, "supports", item.DeclaredRating)
	assert.Equal(t, []string{"https://www.usgs.gov/age-of-earth"}, item.References)
	assert.Equal(t, fixedClock(), item.Timestamp)
	require.NotNil(t, item.RawConfidence)
	assert.InDelta(t, 0.9, *item.RawConfidence, 1e-9)
	assert.True(t, adapter.General())
}

func TestOpenAIAdapter_Errors(t *testing.T) {
	tests := []struct {
		desc   string
		status int
		body   string
		kind   ErrorKind
	}{
		{desc: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`, kind: KindAuthFailure},
		{desc: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`, kind: KindRateLimited},
		{desc: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"boom","type":"server_error"}}`, kind: KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter, err := NewOpenAIAdapter(model.ProviderConfig{ID: "openai", BaseURL: server.URL + "/v1"}, "test-key")
			require.NoError(t, err)

			_, err = adapter.Query(context.Background(), earthSub, 3)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestOpenAIAdapter_MissingKey(t *testing.T) {
	_, err := NewOpenAIAdapter(model.ProviderConfig{ID: "openai"}, "")
	assert.Error(t, err)
}

func TestOpenAIAdapter_MalformedAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"I am not sure."}}]}`)
	}))
	defer server.Close()

	adapter, err := NewOpenAIAdapter(model.ProviderConfig{ID: "openai", BaseURL: server.URL + "/v1"}, "test-key")
	require.NoError(t, err)

	_, err = adapter.Query(context.Background(), earthSub, 3)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
}

func TestAnthropicAdapter_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"content":     []map[string]string{{"type": "text", "text": supportsAnswer}},
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer server.Close()

	adapter, err := NewAnthropicAdapter(model.ProviderConfig{ID: "anthropic", BaseURL: server.URL}, "test-key")
	require.NoError(t, err)

	items, err := adapter.Query(context.Background(), earthSub, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "anthropic", items[0].ProviderID)
	assert.Equal(t, "supports", items[0].DeclaredRating)
	assert.Equal(t, defaultAnthropicModel, items[0].Metadata["model"])
}

func TestAnthropicAdapter_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer server.Close()

	adapter, err := NewAnthropicAdapter(model.ProviderConfig{ID: "anthropic", BaseURL: server.URL}, "bad-key")
	require.NoError(t, err)

	_, err = adapter.Query(context.Background(), earthSub, 3)
	assert.Equal(t, KindAuthFailure, KindOf(err))
}

func TestCompatAdapter_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "local-model",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": strings.Replace(supportsAnswer, "SUPPORTS", "REFUTES", 1)},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	adapter, err := NewCompatAdapter(model.ProviderConfig{ID: "local", BaseURL: server.URL + "/v1/", Model: "local-model"}, "")
	require.NoError(t, err)

	items, err := adapter.Query(context.Background(), earthSub, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "refutes", items[0].DeclaredRating)
}

func TestCompatAdapter_RequiresEndpoint(t *testing.T) {
	_, err := NewCompatAdapter(model.ProviderConfig{ID: "local", Model: "m"}, "")
	assert.Error(t, err)

	_, err = NewCompatAdapter(model.ProviderConfig{ID: "local", BaseURL: "http://localhost:1234/v1/"}, "")
	assert.Error(t, err)
}

func TestOllamaAdapter_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Contains(t, req.Prompt, earthSub.Text)

		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: req.Model, Response: supportsAnswer, Done: true})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(model.ProviderConfig{ID: "ollama", BaseURL: server.URL}, server.Client())

	items, err := adapter.Query(context.Background(), earthSub, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "llama3.1", items[0].Publisher)
}

func TestOllamaAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "Internal Server Error"}`))
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(model.ProviderConfig{ID: "ollama", BaseURL: server.URL}, server.Client())

	_, err := adapter.Query(context.Background(), earthSub, 3)
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestOllamaAdapter_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(model.ProviderConfig{ID: "ollama", BaseURL: server.URL}, server.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := adapter.Query(ctx, earthSub, 3)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestWikipediaAdapter_Query(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/rest.php/v1/search/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = fmt.Fprint(w, `{"pages":[
			{"key":"Age_of_Earth","title":"Age of Earth","excerpt":"The <span class=\"searchmatch\">age</span> of Earth","description":"Scientific estimate"},
			{"key":"Earth","title":"Earth","excerpt":"Third planet from the Sun","description":"Planet"}
		]}`)
	})
	mux.HandleFunc("/api/rest_v1/page/summary/Age_of_Earth", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"title":"Age of Earth","extract":"The age of Earth is estimated to be 4.54 billion years.","timestamp":"2023-11-02T10:00:00Z","content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Age_of_Earth"}}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := NewWikipediaAdapter(model.ProviderConfig{ID: "wikipedia", BaseURL: server.URL, General: true}, server.Client())
	adapter.SetClock(fixedClock)

	items, err := adapter.Query(context.Background(), earthSub, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, model.CategoryKnowledgeBase, items[0].Category)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Age_of_Earth", items[0].URL)
	assert.Contains(t, items[0].Content, "4.54 billion years")
	assert.Equal(t, time.Date(2023, 11, 2, 10, 0, 0, 0, time.UTC), items[0].Timestamp)

	assert.Equal(t, server.URL+"/wiki/Earth", items[1].URL)
	assert.Equal(t, "Planet Third planet from the Sun", items[1].Content)
	assert.NotContains(t, items[1].Content, "<span")
	assert.Equal(t, fixedClock(), items[1].Timestamp)
}

func TestFactCheckAdapter_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1alpha1/claims:search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "en", r.URL.Query().Get("languageCode"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"claims":[{"text":"Humans only use 10% of their brains","claimant":"Viral post","claimReview":[
			{"publisher":{"name":"Snopes","site":"snopes.com"},"url":"https://www.snopes.com/fact-check/ten-percent-brain/","title":"Do we only use 10 percent of our brains?","reviewDate":"2022-03-01T00:00:00Z","textualRating":"False","languageCode":"en"},
			{"publisher":{"name":"Blog","site":"someblog.example"},"url":"https://someblog.example/brain","title":"Brain myth","reviewDate":"2021-01-01T00:00:00Z","textualRating":"Mostly False","languageCode":"en"}
		]}]}`)
	}))
	defer server.Close()

	tiers := tierFunc(func(rawURL, site string) model.CredibilityTier {
		if strings.Contains(rawURL, "snopes") {
			return model.TierAuthoritative
		}
		return model.TierGeneral
	})

	adapter, err := NewFactCheckAdapter(context.Background(), model.ProviderConfig{ID: "google-factcheck", BaseURL: server.URL}, "test-key", server.Client(), tiers)
	require.NoError(t, err)

	items, err := adapter.Query(context.Background(), model.SubClaim{Text: "Humans only use 10% of their brains"}, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, model.CategoryFactCheck, items[0].Category)
	assert.Equal(t, "False", items[0].DeclaredRating)
	assert.Equal(t, "Snopes", items[0].Publisher)
	assert.Equal(t, model.TierAuthoritative, items[0].Tier)
	assert.Equal(t, time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), items[0].Timestamp)

	// Unknown fact-check publishers are capped at reputable
	assert.Equal(t, model.TierReputable, items[1].Tier)
	assert.Equal(t, "Viral post", items[1].Metadata["claimant"])
}

func TestFactCheckAdapter_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded"}}`)
	}))
	defer server.Close()

	adapter, err := NewFactCheckAdapter(context.Background(), model.ProviderConfig{ID: "google-factcheck", BaseURL: server.URL}, "test-key", server.Client(), nil)
	require.NoError(t, err)

	_, err = adapter.Query(context.Background(), earthSub, 5)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestSearchAdapter_QueryWithPageFetch(t *testing.T) {
	var pageURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer search-key", r.Header.Get("Authorization"))
		assert.Equal(t, earthSub.Text, r.URL.Query().Get("q"))
		_, _ = fmt.Fprintf(w, `{"results":[{"title":"Age of the Earth","url":%q,"snippet":"Snippet text","published":"2020-06-01"}]}`, pageURL)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><meta name="description" content="Earth is 4.54 billion years old."></head>
			<body><p>Body</p><a href="https://www.usgs.gov/age">USGS</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	pageURL = server.URL + "/article"

	fetcher := NewPageFetcher(server.Client(), nil, 1<<20)
	adapter, err := NewSearchAdapter(model.ProviderConfig{ID: "search", BaseURL: server.URL + "/search"}, "search-key", server.Client(), fetcher, nil)
	require.NoError(t, err)

	items, err := adapter.Query(context.Background(), earthSub, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, model.CategorySearch, item.Category)
	assert.Equal(t, "Age of the Earth. Earth is 4.54 billion years old.", item.Content)
	assert.Equal(t, []string{"https://www.usgs.gov/age"}, item.References)
	assert.Equal(t, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), item.Timestamp)
}

func TestPageFetcher_RespectsRobots(t *testing.T) {
	fetcher := NewPageFetcher(http.DefaultClient, denyAll{}, 0)
	_, err := fetcher.Fetch(context.Background(), "https://example.com/page")
	assert.Error(t, err)
}

type tierFunc func(rawURL, site string) model.CredibilityTier

func (f tierFunc) ClassifyPublisher(rawURL, site string) model.CredibilityTier { return f(rawURL, site) }

type denyAll struct{}

func (denyAll) IsAllowed(ctx context.Context, rawURL string) bool { return false }
