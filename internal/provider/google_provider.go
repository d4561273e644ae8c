package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/fleveque/restaurant-images/internal/model"
)

// GooglePageSize is the most results Custom Search returns per call.
const GooglePageSize = 10

// quotaReasons are the googleapi error reasons that mean "over quota"
// even when the status is 403 rather than 429.
var quotaReasons = map[string]struct{}{
	"rateLimitExceeded":     {},
	"dailyLimitExceeded":    {},
	"quotaExceeded":         {},
	"userRateLimitExceeded": {},
}

// GoogleConfig holds Custom Search credentials and tuning.
type GoogleConfig struct {
	APIKey   string
	CSEID    string
	Endpoint string // override for tests and proxies; empty uses Google's
	Num      int    // results per call, 1-10
}

// GoogleProvider is the primary, quota-metered backend: Google Programmable
// Search in image mode.
type GoogleProvider struct {
	cfg    GoogleConfig
	svc    *customsearch.Service // nil when credentials are missing
	logger *zap.Logger
}

// NewGoogleProvider builds the provider. Missing credentials are not an
// error: the provider then answers every Search with KindConfigMissing and
// never touches the network. Extra client options are appended last, so
// tests can swap the transport.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, httpClient *http.Client, logger *zap.Logger, opts ...option.ClientOption) (*GoogleProvider, error) {
	if cfg.Num <= 0 || cfg.Num > GooglePageSize {
		cfg.Num = GooglePageSize
	}
	p := &GoogleProvider{cfg: cfg, logger: logger}
	if !p.Configured() {
		return p, nil
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	p.svc = svc
	return p, nil
}

func (p *GoogleProvider) Name() string { return "google" }

// Configured reports whether both the API key and engine ID are present.
func (p *GoogleProvider) Configured() bool {
	return p.cfg.APIKey != "" && p.cfg.CSEID != ""
}

// Search runs one image search. start is the 1-based index of the first
// result, i.e. (page-1)*10+1.
func (p *GoogleProvider) Search(ctx context.Context, query string, start int) ([]model.ImageResult, error) {
	if !p.Configured() || p.svc == nil {
		return nil, newError(p.Name(), KindConfigMissing, 0, errors.New("api key or engine id not set"))
	}
	if start < 1 {
		start = 1
	}

	// The key goes on the call itself: a caller-supplied HTTP client bypasses
	// the transport that would otherwise add it.
	resp, err := p.svc.Cse.List().
		Cx(p.cfg.CSEID).
		Q(query).
		SearchType("image").
		Num(int64(p.cfg.Num)).
		Start(int64(start)).
		Context(ctx).
		Do(googleapi.QueryParameter("key", p.cfg.APIKey))
	if err != nil {
		return nil, p.classify(err)
	}

	results := make([]model.ImageResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		r := model.ImageResult{
			Title:     cleanTitle(item.Title),
			ImageLink: item.Link,
		}
		if item.Image != nil {
			r.ThumbnailLink = item.Image.ThumbnailLink
			r.ContextLink = item.Image.ContextLink
		}
		results = append(results, r)
	}

	if len(results) == 0 {
		return nil, newError(p.Name(), KindNoResults, http.StatusOK, nil)
	}
	return results, nil
}

// classify maps a customsearch error onto a Kind using the structured
// googleapi.Error fields.
func (p *GoogleProvider) classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return newError(p.Name(), KindTransport, 0, err)
	}

	if gerr.Code == http.StatusTooManyRequests {
		return newError(p.Name(), KindQuotaExceeded, gerr.Code, err)
	}
	for _, item := range gerr.Errors {
		if _, ok := quotaReasons[item.Reason]; ok {
			return newError(p.Name(), KindQuotaExceeded, gerr.Code, err)
		}
	}
	return newError(p.Name(), KindTransport, gerr.Code, err)
}

// cleanTitle strips the HTML entities and tags Google leaves in titles.
func cleanTitle(title string) string {
	return strings.TrimSpace(html2text.HTML2Text(title))
}
