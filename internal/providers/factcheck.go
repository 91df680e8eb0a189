package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	factchecktools "google.golang.org/api/factchecktools/v1alpha1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ppiankov/veracity/internal/model"
)

// TierClassifier assigns credibility tiers to publisher URLs
type TierClassifier interface {
	ClassifyPublisher(rawURL, site string) model.CredibilityTier
}

// FactCheckAdapter queries the Google Fact Check Tools claim search API.
// Each published ClaimReview becomes one fact_check_org item carrying the
// reviewer's textual rating.
type FactCheckAdapter struct {
	Descriptor
	service  *factchecktools.Service
	apiKey   string
	language string
	tiers    TierClassifier
}

// NewFactCheckAdapter creates a fact-check adapter. BaseURL overrides the
// API endpoint and is used against test servers.
func NewFactCheckAdapter(ctx context.Context, cfg model.ProviderConfig, apiKey string, client *http.Client, tiers TierClassifier) (*FactCheckAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fact check API key is required")
	}
	if client == nil {
		client = http.DefaultClient
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.BaseURL != "" {
		endpoint := cfg.BaseURL
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	service, err := factchecktools.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create fact check service: %w", err)
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}

	return &FactCheckAdapter{
		Descriptor: descriptorFor(cfg, model.CategoryFactCheck),
		service:    service,
		apiKey:     apiKey,
		language:   language,
		tiers:      tiers,
	}, nil
}

// Query searches published claim reviews for the sub-claim
func (a *FactCheckAdapter) Query(ctx context.Context, sub model.SubClaim, maxResults int) ([]model.EvidenceItem, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	resp, err := a.service.Claims.Search().
		Query(sub.Text).
		LanguageCode(a.language).
		PageSize(int64(maxResults)).
		Context(ctx).
		Do(googleapi.QueryParameter("key", a.apiKey))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, FromStatus(a.Name, apiErr.Code, err)
		}
		return nil, Classify(a.Name, err)
	}

	var items []model.EvidenceItem
	for _, claim := range resp.Claims {
		if claim == nil {
			continue
		}
		for _, review := range claim.ClaimReview {
			if review == nil || review.TextualRating == "" {
				continue
			}
			items = append(items, a.reviewItem(claim, review))
			if len(items) >= maxResults {
				return items, nil
			}
		}
	}

	return items, nil
}

func (a *FactCheckAdapter) reviewItem(claim *factchecktools.GoogleFactcheckingFactchecktoolsV1alpha1Claim, review *factchecktools.GoogleFactcheckingFactchecktoolsV1alpha1ClaimReview) model.EvidenceItem {
	publisher, site := "", ""
	if review.Publisher != nil {
		publisher = review.Publisher.Name
		site = review.Publisher.Site
	}

	tier := model.TierAuthoritative
	if a.tiers != nil {
		tier = a.tiers.ClassifyPublisher(review.Url, site)
		// Publishers of ClaimReview markup are fact-check organizations
		if tier > model.TierReputable {
			tier = model.TierReputable
		}
	}

	ts := a.clock()
	if parsed, err := time.Parse(time.RFC3339, review.ReviewDate); err == nil {
		ts = parsed.UTC()
	}

	content := review.Title
	if content == "" {
		content = claim.Text
	}
	content = strings.TrimSpace(fmt.Sprintf("%s Rating: %s.", content, review.TextualRating))

	metadata := map[string]string{"claim": claim.Text}
	if claim.Claimant != "" {
		metadata["claimant"] = claim.Claimant
	}

	return model.EvidenceItem{
		ProviderID:     a.Name,
		Category:       model.CategoryFactCheck,
		Content:        content,
		URL:            review.Url,
		Publisher:      publisher,
		Tier:           tier,
		DeclaredRating: review.TextualRating,
		Timestamp:      ts,
		Metadata:       metadata,
	}
}
