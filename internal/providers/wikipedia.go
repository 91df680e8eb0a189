package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
)

// WikipediaAdapter searches Wikipedia and returns page summaries as
// knowledge-base evidence
type WikipediaAdapter struct {
	Descriptor
	baseURL    string
	httpClient *http.Client
}

type wikiSearchResponse struct {
	Pages []struct {
		Key         string `json:"key"`
		Title       string `json:"title"`
		Excerpt     string `json:"excerpt"`
		Description string `json:"description"`
	} `json:"pages"`
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Timestamp   string `json:"timestamp"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// NewWikipediaAdapter creates a Wikipedia adapter. BaseURL defaults to the
// language edition, e.g. https://en.wikipedia.org.
func NewWikipediaAdapter(cfg model.ProviderConfig, client *http.Client) *WikipediaAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		lang := cfg.Language
		if lang == "" {
			lang = "en"
		}
		baseURL = fmt.Sprintf("https://%s.wikipedia.org", lang)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &WikipediaAdapter{
		Descriptor: descriptorFor(cfg, model.CategoryKnowledgeBase),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Query searches for pages matching the sub-claim and returns one item per page.
// The top hit is enriched with its lead-section summary.
func (a *WikipediaAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	q := url.Values{}
	q.Set("q", searchQuery(sub.Text))
	q.Set("limit", fmt.Sprint(maxResults))

	var search wikiSearchResponse
	endpoint := a.baseURL + "/w/rest.php/v1/search/page?" + q.Encode()
	if err := doJSON(ctx, a.httpClient, http.MethodGet, endpoint, nil, nil, &search); err != nil {
		return nil, Classify(a.Name, err)
	}

	items := make([]model.EvidenceItem, 0, len(search.Pages))
	for i, page := range search.Pages {
		if i >= maxResults {
			break
		}

		item := model.EvidenceItem{
			ProviderID: a.Name,
			Category:   model.CategoryKnowledgeBase,
			Content:    strings.TrimSpace(page.Description + " " + stripMarkup(page.Excerpt)),
			URL:        a.baseURL + "/wiki/" + url.PathEscape(page.Key),
			Publisher:  "Wikipedia",
			Timestamp:  a.clock(),
			Metadata:   map[string]string{"title": page.Title},
		}

		if i == 0 {
			if summary, err := a.summary(ctx, page.Key); err == nil && summary.Extract != "" {
				item.Content = summary.Extract
				if summary.ContentURLs.Desktop.Page != "" {
					item.URL = summary.ContentURLs.Desktop.Page
				}
				if ts, err := time.Parse(time.RFC3339, summary.Timestamp); err == nil {
					item.Timestamp = ts.UTC()
				}
			}
		}

		if item.Content != "" {
			items = append(items, item)
		}
	}

	return items, nil
}

func (a *WikipediaAdapter) summary(ctx context.Context, key string) (*wikiSummary, error) {
	var s wikiSummary
	endpoint := a.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(key)
	if err := doJSON(ctx, a.httpClient, http.MethodGet, endpoint, nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// searchQuery keeps the informative tokens of a sub-claim
func searchQuery(text string) string {
	tokens := extract.Tokens(text)
	if len(tokens) == 0 {
		return text
	}
	if len(tokens) > 8 {
		tokens = tokens[:8]
	}
	return strings.Join(tokens, " ")
}

// stripMarkup removes search-highlight markup from excerpts
func stripMarkup(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return fragment
	}
	page, err := extract.ParsePage(fragment, "")
	if err != nil {
		return fragment
	}
	return page.Text
}
