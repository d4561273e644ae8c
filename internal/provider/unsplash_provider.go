package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/model"
)

// DefaultUnsplashEndpoint is the photo search endpoint.
const DefaultUnsplashEndpoint = "https://api.unsplash.com/search/photos"

// UnsplashConfig holds the access key and paging.
type UnsplashConfig struct {
	AccessKey string
	Endpoint  string
	PerPage   int // 1-30; defaults to 10
}

// unsplashSearchResult mirrors the parts of the search response we read.
type unsplashSearchResult struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []unsplashPhoto `json:"results"`
}

type unsplashPhoto struct {
	ID             string  `json:"id"`
	Description    *string `json:"description"`
	AltDescription *string `json:"alt_description"`
	URLs           struct {
		Raw     string `json:"raw"`
		Regular string `json:"regular"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	Links struct {
		HTML string `json:"html"`
	} `json:"links"`
}

// UnsplashProvider is the secondary backend. It is metered per hour rather
// than per day, so it absorbs load once the primary quota is spent.
type UnsplashProvider struct {
	cfg        UnsplashConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewUnsplashProvider creates the provider. An empty access key leaves it
// unconfigured; Search then fails with KindConfigMissing without a request.
func NewUnsplashProvider(cfg UnsplashConfig, httpClient *http.Client, logger *zap.Logger) *UnsplashProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultUnsplashEndpoint
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 30 {
		cfg.PerPage = 10
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &UnsplashProvider{cfg: cfg, httpClient: httpClient, logger: logger}
}

func (p *UnsplashProvider) Name() string { return "unsplash" }

// Configured reports whether an access key is set.
func (p *UnsplashProvider) Configured() bool { return p.cfg.AccessKey != "" }

// Search maps the 1-based result offset onto Unsplash's page numbering.
func (p *UnsplashProvider) Search(ctx context.Context, query string, start int) ([]model.ImageResult, error) {
	if !p.Configured() {
		return nil, newError(p.Name(), KindConfigMissing, 0, errors.New("access key not set"))
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(p.cfg.PerPage))
	params.Set("page", strconv.Itoa(p.pageFor(start)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, newError(p.Name(), KindTransport, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("Authorization", "Client-ID "+p.cfg.AccessKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, newError(p.Name(), KindTransport, 0, err)
	}
	defer resp.Body.Close()

	if err := p.checkStatus(resp); err != nil {
		return nil, err
	}

	var data unsplashSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, newError(p.Name(), KindTransport, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}

	results := make([]model.ImageResult, 0, len(data.Results))
	for _, photo := range data.Results {
		if photo.URLs.Raw == "" {
			continue
		}
		results = append(results, model.ImageResult{
			Title:         photoTitle(photo),
			ImageLink:     photo.URLs.Raw,
			ThumbnailLink: photo.URLs.Thumb,
			ContextLink:   photo.Links.HTML,
		})
	}

	if len(results) == 0 {
		return nil, newError(p.Name(), KindNoResults, resp.StatusCode, nil)
	}
	return results, nil
}

// pageFor recovers the resolver page from a 1-based result offset. Offsets
// advance in GooglePageSize steps regardless of per_page, so each resolver
// page maps to its own Unsplash page.
func (p *UnsplashProvider) pageFor(start int) int {
	if start < 1 {
		return 1
	}
	return (start-1)/GooglePageSize + 1
}

// checkStatus classifies non-200 responses. Unsplash signals an exhausted
// hourly allowance with 403 and X-Ratelimit-Remaining: 0.
func (p *UnsplashProvider) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	err := fmt.Errorf("unexpected status: %s", string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return newError(p.Name(), KindQuotaExceeded, resp.StatusCode, err)
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-Ratelimit-Remaining") == "0":
		return newError(p.Name(), KindQuotaExceeded, resp.StatusCode, err)
	case resp.StatusCode == http.StatusUnauthorized:
		// revoked or mistyped key
		return newError(p.Name(), KindConfigMissing, resp.StatusCode, err)
	default:
		return newError(p.Name(), KindTransport, resp.StatusCode, err)
	}
}

func photoTitle(photo unsplashPhoto) string {
	if photo.Description != nil && *photo.Description != "" {
		return *photo.Description
	}
	if photo.AltDescription != nil && *photo.AltDescription != "" {
		return *photo.AltDescription
	}
	return "Unsplash image"
}
