package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

const maxReferences = 20

// SearchAdapter queries a JSON web-search endpoint. The endpoint is
// expected to accept ?q=&count= and return {"results":[{title,url,snippet,published}]}.
type SearchAdapter struct {
	Descriptor
	baseURL    string
	apiKey     string
	httpClient *http.Client
	fetcher    *PageFetcher
	tiers      TierClassifier
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Published string `json:"published"`
}

// NewSearchAdapter creates a search adapter. fetcher may be nil to use snippets only.
func NewSearchAdapter(cfg model.ProviderConfig, apiKey string, client *http.Client, fetcher *PageFetcher, tiers TierClassifier) (*SearchAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for search provider %s", cfg.ID)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &SearchAdapter{
		Descriptor: descriptorFor(cfg, model.CategorySearch),
		baseURL:    cfg.BaseURL,
		apiKey:     apiKey,
		httpClient: client,
		fetcher:    fetcher,
		tiers:      tiers,
	}, nil
}

// Query runs a web search for the sub-claim
func (a *SearchAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	q := url.Values{}
	q.Set("q", sub.Text)
	q.Set("count", fmt.Sprint(maxResults))

	endpoint := a.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	headers := map[string]string{}
	if a.apiKey != "" {
		headers["Authorization"] = "Bearer " + a.apiKey
	}

	var resp searchResponse
	if err := doJSON(ctx, a.httpClient, http.MethodGet, endpoint, headers, nil, &resp); err != nil {
		return nil, Classify(a.Name, err)
	}

	items := make([]model.EvidenceItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(items) >= maxResults {
			break
		}
		if r.URL == "" {
			continue
		}
		items = append(items, a.resultItem(ctx, r))
	}

	return items, nil
}

func (a *SearchAdapter) resultItem(ctx context.Context, r searchResult) model.EvidenceItem {
	item := model.EvidenceItem{
		ProviderID: a.Name,
		Category:   model.CategorySearch,
		Content:    strings.TrimSpace(r.Title + ". " + r.Snippet),
		URL:        r.URL,
		Publisher:  hostOf(r.URL),
		Timestamp:  a.clock(),
		Metadata:   map[string]string{"title": r.Title},
	}
	if a.tiers != nil {
		item.Tier = a.tiers.ClassifyPublisher(r.URL, "")
	}
	if ts, ok := parseTime(r.Published); ok {
		item.Timestamp = ts
	}

	if a.fetcher == nil || ctx.Err() != nil {
		return item
	}

	page, err := a.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		item.Metadata["fetch_error"] = err.Error()
		return item
	}
	if summary := page.Summary(600); summary != "" {
		item.Content = strings.TrimSpace(r.Title + ". " + summary)
	}
	refs := page.Links
	if len(refs) > maxReferences {
		refs = refs[:maxReferences]
	}
	item.References = refs
	if ts, ok := parseTime(page.Published); ok && r.Published == "" {
		item.Timestamp = ts
	}

	return item
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
