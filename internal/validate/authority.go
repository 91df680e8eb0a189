package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// AuthorityClassifier classifies sources into credibility tiers
type AuthorityClassifier struct {
	config       *model.AuthorityConfig
	domains      map[string]model.CredibilityTier
	pathPatterns []*compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.CredibilityTier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		config:       config,
		domains:      make(map[string]model.CredibilityTier),
		pathPatterns: make([]*compiledPattern, 0),
	}

	// Lower tiers first so an explicit higher listing wins on conflict
	lists := []struct {
		domains []string
		tier    model.CredibilityTier
	}{
		{config.UncertainDomains, model.TierUncertain},
		{config.GeneralDomains, model.TierGeneral},
		{config.ReputableDomains, model.TierReputable},
		{config.AuthoritativeDomains, model.TierAuthoritative},
	}
	for _, l := range lists {
		for _, d := range l.domains {
			classifier.domains[strings.ToLower(strings.TrimSpace(d))] = l.tier
		}
	}

	for _, pathPattern := range config.PathPatterns {
		if re, err := regexp.Compile(pathPattern.Pattern); err == nil {
			classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{
				pattern: re,
				tier:    ParseTier(pathPattern.Tier),
			})
		}
	}

	return classifier
}

// Classify classifies a URL into a credibility tier. Sources without a URL are uncertain.
func (a *AuthorityClassifier) Classify(rawURL string) model.CredibilityTier {
	if strings.TrimSpace(rawURL) == "" {
		return model.TierUncertain
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierUncertain
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	if a.config.DomainMap != nil {
		if tierStr, ok := a.config.DomainMap[host]; ok {
			return ParseTier(tierStr)
		}
	}

	// Walk up the labels: pubmed.ncbi.nlm.nih.gov -> ncbi.nlm.nih.gov -> nlm.nih.gov -> nih.gov
	for candidate := host; candidate != ""; candidate = parentDomain(candidate) {
		if tier, ok := a.domains[candidate]; ok {
			return tier
		}
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Academic and government suffixes
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") ||
		strings.HasSuffix(host, ".ac.uk") || strings.Contains(host, ".gov.") {
		return model.TierReputable
	}

	return model.TierGeneral
}

// ClassifyPublisher classifies a source known by URL and, failing that, by site name
func (a *AuthorityClassifier) ClassifyPublisher(rawURL, site string) model.CredibilityTier {
	if rawURL != "" {
		return a.Classify(rawURL)
	}
	site = strings.ToLower(strings.TrimSpace(site))
	if site == "" {
		return model.TierUncertain
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	return a.Classify(site)
}

// SourceFamily returns the registrable domain of a URL, used to group items
// that originate from the same publisher
func SourceFamily(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	// Second-level public suffixes such as co.uk, ac.uk, com.au
	n := 2
	if sld := labels[len(labels)-2]; len(labels[len(labels)-1]) == 2 && (sld == "co" || sld == "ac" || sld == "gov" || sld == "com" || sld == "org" || sld == "edu") {
		n = 3
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

func parentDomain(host string) string {
	idx := strings.Index(host, ".")
	if idx < 0 {
		return ""
	}
	rest := host[idx+1:]
	if !strings.Contains(rest, ".") {
		// Never match a bare TLD
		return ""
	}
	return rest
}

// ParseTier converts a tier string to a CredibilityTier
func ParseTier(tier string) model.CredibilityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "authoritative", "primary", "1":
		return model.TierAuthoritative
	case "reputable", "secondary", "2":
		return model.TierReputable
	case "general", "tertiary", "3":
		return model.TierGeneral
	case "uncertain", "4":
		return model.TierUncertain
	default:
		return model.TierGeneral
	}
}
