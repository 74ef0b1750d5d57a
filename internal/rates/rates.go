// Package rates resolves currency conversion rates with a layered
// fallback: fresh cache, then the network, then a stale cache entry,
// then a small built-in table. Concurrent lookups for the same pair
// are collapsed into one request.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"golang.org/x/sync/singleflight"

	"moneta/internal/cache"
	"moneta/internal/core"
)

// ErrRateUnavailable is returned when every layer of the fallback
// chain comes up empty.
var ErrRateUnavailable = errors.New("conversion rate unavailable")

const (
	defaultBaseURL   = "https://api.frankfurter.dev/v1"
	defaultCacheSize = 128
	defaultTTL       = time.Hour
	defaultRetention = 24 * time.Hour
)

// offlineRates holds rough per-USD rates used as a last resort when
// both the network and the cache fail. Cross rates derive from these.
var offlineRates = map[string]float64{
	"USD": 1.0,
	"CNY": 7.20,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 150.0,
	"HKD": 7.80,
	"KRW": 1350.0,
	"TWD": 32.0,
	"SGD": 1.34,
	"AUD": 1.52,
	"CAD": 1.36,
	"CHF": 0.88,
}

// Service resolves conversion rates. The zero value is not usable;
// construct with New.
type Service struct {
	client  *http.Client
	baseURL string
	cache   *cache.LRU[float64]
	group   singleflight.Group
}

// Option customizes a Service.
type Option func(*Service)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithBaseURL points the service at a different rates endpoint.
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithCache replaces the default rate cache.
func WithCache(c *cache.LRU[float64]) Option {
	return func(s *Service) { s.cache = c }
}

// WithTTL rebuilds the cache with a different freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache.New[float64](defaultCacheSize, ttl, defaultRetention)
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		cache:   cache.New[float64](defaultCacheSize, defaultTTL, defaultRetention),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate returns how many units of the target currency one unit of the
// source currency buys. Identical currencies always yield exactly 1
// without touching the network.
func (s *Service) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if money.GetCurrency(from) == nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, from)
	}
	if money.GetCurrency(to) == nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, to)
	}
	if from == to {
		return 1, nil
	}

	key := from + "-" + to
	if rate, ok := s.cache.Get(key); ok {
		return rate, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent caller may have filled the cache while this
		// call waited its turn.
		if rate, ok := s.cache.Get(key); ok {
			return rate, nil
		}
		return s.resolve(ctx, key, from, to)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (s *Service) resolve(ctx context.Context, key, from, to string) (float64, error) {
	rate, err := s.fetch(ctx, from, to)
	if err == nil {
		s.cache.Set(key, rate)
		return rate, nil
	}
	slog.WarnContext(ctx, "Rate lookup failed, falling back", "pair", key, "error", err)

	if stale, ok, _ := s.cache.GetStale(key); ok {
		slog.InfoContext(ctx, "Serving stale rate", "pair", key, "rate", stale)
		return stale, nil
	}
	if rate, ok := offlineRate(from, to); ok {
		slog.InfoContext(ctx, "Serving built-in offline rate", "pair", key, "rate", rate)
		return rate, nil
	}
	return 0, fmt.Errorf("%w: %s: %v", ErrRateUnavailable, key, err)
}

// latestResponse mirrors the relevant part of the endpoint's JSON.
type latestResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (s *Service) fetch(ctx context.Context, from, to string) (float64, error) {
	addr := fmt.Sprintf("%s/latest?base=%s&symbols=%s",
		s.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("rates endpoint returned %s", resp.Status)
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode rates response: %w", err)
	}
	rate, ok := payload.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("rates response missing %s", to)
	}
	return rate, nil
}

func offlineRate(from, to string) (float64, bool) {
	perUSDFrom, okFrom := offlineRates[from]
	perUSDTo, okTo := offlineRates[to]
	if !okFrom || !okTo {
		return 0, false
	}
	return perUSDTo / perUSDFrom, true
}
