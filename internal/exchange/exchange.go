// Package exchange provides currency exchange rates with a TTL-bounded
// Redis cache in front of an HTTP rate source.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Source fetches a rate from the authoritative provider.
type Source interface {
	FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Cache is a best-effort rate cache. Misses and failures both surface as
// found=false; Set errors are the caller's to tolerate.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Service answers rate lookups cache-first. Cache failures degrade to the
// source; a source failure is the only hard error.
type Service struct {
	source Source
	cache  Cache
	log    *logrus.Logger
}

func NewService(source Source, cache Cache, log *logrus.Logger) *Service {
	return &Service{source: source, cache: cache, log: log}
}

func (s *Service) GetRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	key := fmt.Sprintf("fxrate:%s:%s", base, quote)

	if cached, found, err := s.cache.Get(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("rate cache read failed")
	} else if found {
		rate, err := decimal.NewFromString(cached)
		if err == nil && rate.IsPositive() {
			return rate, nil
		}
		s.log.WithField("key", key).Warn("discarding unparseable cached rate")
	}

	rate, err := s.source.FetchRate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate fetch %s/%s failed: %w", base, quote, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate source returned non-positive rate %s for %s/%s", rate, base, quote)
	}

	if err := s.cache.Set(ctx, key, rate.String()); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("rate cache write failed")
	}
	return rate, nil
}

// HTTPSource fetches rates from a REST endpoint:
// GET {base_url}/rates?base=COP&quote=USD -> {"rate": "0.00025"}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Second},
	}
}

func (h *HTTPSource) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/rates?base=%s&quote=%s",
		h.baseURL, url.QueryEscape(base), url.QueryEscape(quote))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var body struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("rate source response malformed: %w", err)
	}
	return body.Rate, nil
}

// RedisCache backs Cache with Redis and a TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.rdb.Set(ctx, key, value, c.ttl).Err()
}
