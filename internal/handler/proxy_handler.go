package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/service"
)

var (
	errTooLarge    = errors.New("upstream image too large")
	errNotAnImage  = errors.New("upstream did not return an image")
	errBlockedHost = errors.New("host not allowed")
)

const maxProxyRedirects = 5

// Thumbnailer validates, resizes and stores proxied images.
// *service.ImageProcessor satisfies it.
type Thumbnailer interface {
	Cached(sourceURL string, width int) ([]byte, bool)
	Process(sourceURL string, data []byte, width int) ([]byte, error)
}

// ProxyHandler fetches remote photos on behalf of the browser so result
// links from any domain can be shown, optionally as resized thumbnails.
type ProxyHandler struct {
	thumbs      Thumbnailer
	client      *http.Client
	negative    *gocache.Cache
	maxBytes    int64
	fallbackURL string
	logger      *zap.Logger
}

// ProxyConfig tunes the proxy.
type ProxyConfig struct {
	MaxBytes    int64
	NegativeTTL time.Duration
	// FallbackURL is where failed fetches are redirected; empty answers 502.
	FallbackURL string
}

// NewProxyHandler creates the proxy. URLs that fail are remembered for
// NegativeTTL so a broken link on a popular page is fetched once, not once
// per visitor.
func NewProxyHandler(thumbs Thumbnailer, client *http.Client, cfg ProxyConfig, logger *zap.Logger) *ProxyHandler {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 10 * time.Minute
	}
	if client == nil {
		client = NewProxyClient(15 * time.Second)
	}
	// every redirect hop gets the same host check as the first URL
	guarded := *client
	guarded.CheckRedirect = checkProxyRedirect
	client = &guarded
	return &ProxyHandler{
		thumbs:      thumbs,
		client:      client,
		negative:    gocache.New(cfg.NegativeTTL, 2*cfg.NegativeTTL),
		maxBytes:    cfg.MaxBytes,
		fallbackURL: cfg.FallbackURL,
		logger:      logger,
	}
}

// Proxy serves the image at url, resized to width w when w > 0.
// Route: GET /api/v1/image-proxy?url=https://...&w=400
func (h *ProxyHandler) Proxy(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url parameter"})
		return
	}
	target, err := validateProxyURL(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url: " + err.Error()})
		return
	}
	sourceURL := target.String()

	width := 0
	if w := c.Query("w"); w != "" {
		width, err = strconv.Atoi(w)
		if err != nil || width < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "w must be a non-negative integer"})
			return
		}
	}

	if data, ok := h.thumbs.Cached(sourceURL, width); ok {
		h.serve(c, data)
		return
	}

	if reason, found := h.negative.Get(sourceURL); found {
		h.logger.Debug("proxy negative cache hit", zap.String("url", sourceURL), zap.Any("reason", reason))
		h.fail(c)
		return
	}

	data, err := h.fetch(c.Request.Context(), sourceURL)
	if err == nil {
		data, err = h.thumbs.Process(sourceURL, data, width)
		if errors.Is(err, service.ErrUnsupportedImage) {
			err = errNotAnImage
		}
	}
	if err != nil {
		// a client hanging up says nothing about the upstream
		if c.Request.Context().Err() == nil {
			h.negative.Set(sourceURL, err.Error(), gocache.DefaultExpiration)
		}
		h.logger.Warn("proxy fetch failed", zap.String("url", sourceURL), zap.Error(err))
		h.fail(c)
		return
	}

	h.serve(c, data)
}

// Forget drops all remembered failures and returns how many there were.
func (h *ProxyHandler) Forget() int {
	n := h.negative.ItemCount()
	h.negative.Flush()
	return n
}

// NegativeEntries reports how many failing URLs are remembered.
func (h *ProxyHandler) NegativeEntries() int {
	return h.negative.ItemCount()
}

func (h *ProxyHandler) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	// some hosts refuse requests that don't look like a browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; restaurant-images/1.0)")
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	if resp.ContentLength > h.maxBytes {
		return nil, errTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func (h *ProxyHandler) serve(c *gin.Context, data []byte) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, service.ContentType(data), data)
}

func (h *ProxyHandler) fail(c *gin.Context) {
	if h.fallbackURL != "" {
		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, h.fallbackURL)
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "image unavailable"})
}

// validateProxyURL accepts absolute http(s) URLs and refuses hosts that
// point back into the local network.
func validateProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New("unparsable")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("scheme must be http or https")
	}
	host := u.Hostname()
	if host == "" {
		return nil, errors.New("missing host")
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return nil, errBlockedHost
	}
	if addr, err := netip.ParseAddr(host); err == nil && blockedAddr(addr) {
		return nil, errBlockedHost
	}
	return u, nil
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast()
}

func checkProxyRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxProxyRedirects {
		return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
	}
	if _, err := validateProxyURL(req.URL.String()); err != nil {
		return fmt.Errorf("redirect to %s: %w", req.URL.Host, err)
	}
	return nil
}

// NewProxyClient returns the client the proxy fetches with. Its dialer
// refuses local addresses after DNS resolution, which catches public names
// that resolve into the private network.
func NewProxyClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: dialGuard,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: checkProxyRedirect,
	}
}

func dialGuard(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, errBlockedHost)
	}
	if blockedAddr(ap.Addr()) {
		return fmt.Errorf("dial %s: %w", address, errBlockedHost)
	}
	return nil
}
