package albion

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const userAgent = "albion-market/1.0 (github.com)"

// minStaleRetention is the shortest time a price response is kept for stale
// fallback.
const minStaleRetention = 10 * time.Minute

var (
	// ErrSourceUnavailable covers network failures, non-200 responses and
	// undecodable bodies from the catalog or price source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrThrottled is returned on HTTP 429. It wraps ErrSourceUnavailable.
	ErrThrottled = fmt.Errorf("throttled: %w", ErrSourceUnavailable)
)

// priceHosts maps a server name to its Albion Data Project host.
var priceHosts = map[string]string{
	"west":   "https://west.albion-online-data.com",
	"east":   "https://east.albion-online-data.com",
	"europe": "https://europe.albion-online-data.com",
}

// PriceHost returns the base URL for the given server, defaulting to west.
func PriceHost(server string) string {
	if h, ok := priceHosts[server]; ok {
		return h
	}
	return priceHosts["west"]
}

// Servers lists the known server names.
func Servers() []string {
	return []string{"west", "east", "europe"}
}

// KnownServer reports whether name has a price host.
func KnownServer(name string) bool {
	_, ok := priceHosts[name]
	return ok
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	CatalogURL     string
	PriceBaseURL   string // overrides the per-server host (tests)
	PriceTTL       time.Duration
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
}

// Client is a rate-limited HTTP client for the item dump and the price API.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	group      singleflight.Group
	prices     *gocache.Cache // request URL -> *priceEntry
	priceTTL   time.Duration
	catalogURL string
	priceBase  string
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.PriceTTL <= 0 {
		opts.PriceTTL = 60 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 3
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	// Freshness is checked against fetchedAt; entries outlive the TTL so a
	// stale one can still serve as fallback, then get evicted.
	retention := 10 * opts.PriceTTL
	if retention < minStaleRetention {
		retention = minStaleRetention
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		prices:     gocache.New(retention, retention),
		priceTTL:   opts.PriceTTL,
		catalogURL: opts.CatalogURL,
		priceBase:  opts.PriceBaseURL,
	}
}

// get performs a rate-limited GET and decodes the JSON body into dst.
func (c *Client) get(ctx context.Context, url string, dst interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrThrottled
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: HTTP %d: %s", ErrSourceUnavailable, resp.StatusCode, string(body))
	}

	body, err := decodedBody(resp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// decodedBody unwraps a compressed body. Setting Accept-Encoding by hand
// disables net/http's transparent gzip, so both encodings are handled here.
// Closing the result does not close resp.Body.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return io.NopCloser(resp.Body), nil
	}
}
