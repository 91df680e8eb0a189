package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Page is the text and outbound references of a fetched HTML document
type Page struct {
	Title       string
	Description string   // meta description or og:description
	Text        string   // visible text, scripts and styles skipped
	Links       []string // absolute http(s) links to other hosts
	Published   string   // article:published_time when present
}

// ParsePage extracts visible text, metadata and outbound links from HTML
func ParsePage(htmlContent string, sourceURL string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	page := &Page{}
	var text strings.Builder
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer":
				return
			case "title":
				if n.FirstChild != nil && page.Title == "" {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				readMeta(n, page)
			case "a":
				if href := attr(n, "href"); href != "" {
					if resolved := resolveURL(base, href); resolved != "" && !seen[resolved] {
						if u, err := url.Parse(resolved); err == nil && !strings.EqualFold(u.Host, base.Host) {
							seen[resolved] = true
							page.Links = append(page.Links, resolved)
						}
					}
				}
			}
		}

		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				text.WriteString(t)
				text.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	page.Text = strings.TrimSpace(text.String())
	return page, nil
}

// Summary returns the description, or the leading sentences of the visible text
func (p *Page) Summary(maxLen int) string {
	if p.Description != "" {
		return truncate(p.Description, maxLen)
	}
	return truncate(p.Text, maxLen)
}

func readMeta(n *html.Node, page *Page) {
	name := strings.ToLower(attr(n, "name"))
	if name == "" {
		name = strings.ToLower(attr(n, "property"))
	}
	content := strings.TrimSpace(attr(n, "content"))
	switch name {
	case "description", "og:description":
		if page.Description == "" {
			page.Description = content
		}
	case "article:published_time", "date", "dc.date":
		if page.Published == "" {
			page.Published = content
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// truncate cuts s at a word boundary no longer than maxLen bytes
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
