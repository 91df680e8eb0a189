package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/veracity/internal/extract"
)

// RobotsPolicy decides whether a URL may be fetched
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL string) bool
}

// PageFetcher downloads result pages so search evidence carries page
// text and outbound references instead of bare snippets
type PageFetcher struct {
	httpClient *http.Client
	robots     RobotsPolicy
	maxBytes   int64
}

// NewPageFetcher creates a fetcher. robots may be nil to skip robots.txt checks.
func NewPageFetcher(client *http.Client, robots RobotsPolicy, maxBytes int64) *PageFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	// Copy the client so the redirect cap does not leak into other users
	limited := *client
	limited.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	return &PageFetcher{httpClient: &limited, robots: robots, maxBytes: maxBytes}
}

// Fetch retrieves and parses the HTML page at rawURL
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*extract.Page, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, fmt.Errorf("disallowed by robots.txt: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return extract.ParsePage(string(body), resp.Request.URL.String())
}
