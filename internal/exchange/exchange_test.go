package exchange_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/antipr000/NobaServer-sub008/internal/exchange"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type countingSource struct {
	rate    decimal.Decimal
	err     error
	fetches int
}

func (s *countingSource) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	s.fetches++
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.rate, nil
}

type mapCache struct {
	values map[string]string
	getErr error
	setErr error
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]string)}
}

func (c *mapCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key, value string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = value
	return nil
}

func TestGetRateCacheMissPopulatesCache(t *testing.T) {
	source := &countingSource{rate: decimal.RequireFromString("100")}
	cache := newMapCache()
	svc := exchange.NewService(source, cache, quietLogger())
	ctx := context.Background()

	rate, err := svc.GetRate(ctx, "COP", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected rate 100, got %s", rate)
	}
	if cache.values["fxrate:COP:USD"] != "100" {
		t.Fatalf("expected cache populated, got %v", cache.values)
	}

	// Second lookup is served from cache.
	if _, err := svc.GetRate(ctx, "COP", "USD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.fetches != 1 {
		t.Fatalf("expected one source fetch, got %d", source.fetches)
	}
}

func TestGetRateDiscardsCorruptCacheEntry(t *testing.T) {
	source := &countingSource{rate: decimal.RequireFromString("100")}
	cache := newMapCache()
	cache.values["fxrate:COP:USD"] = "not-a-number"
	svc := exchange.NewService(source, cache, quietLogger())

	rate, err := svc.GetRate(context.Background(), "COP", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected source rate, got %s", rate)
	}
	if source.fetches != 1 {
		t.Fatalf("expected fallthrough to source, got %d fetches", source.fetches)
	}
}

func TestGetRateToleratesCacheFailures(t *testing.T) {
	source := &countingSource{rate: decimal.RequireFromString("0.00025")}
	cache := newMapCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	svc := exchange.NewService(source, cache, quietLogger())

	rate, err := svc.GetRate(context.Background(), "COP", "USD")
	if err != nil {
		t.Fatalf("cache failure must degrade to the source, got %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.00025")) {
		t.Fatalf("expected source rate, got %s", rate)
	}
}

func TestGetRateSourceErrorPropagates(t *testing.T) {
	source := &countingSource{err: errors.New("provider down")}
	svc := exchange.NewService(source, newMapCache(), quietLogger())

	if _, err := svc.GetRate(context.Background(), "COP", "USD"); err == nil {
		t.Fatal("expected error when the source fails")
	}
}

func TestGetRateRejectsNonPositiveRate(t *testing.T) {
	source := &countingSource{rate: decimal.Zero}
	svc := exchange.NewService(source, newMapCache(), quietLogger())

	if _, err := svc.GetRate(context.Background(), "COP", "USD"); err == nil {
		t.Fatal("expected error for a non-positive rate")
	}
}

func TestHTTPSourceFetchRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("base") != "COP" || r.URL.Query().Get("quote") != "USD" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rate":"100"}`))
	}))
	defer srv.Close()

	source := exchange.NewHTTPSource(srv.URL)
	rate, err := source.FetchRate(context.Background(), "COP", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected 100, got %s", rate)
	}
}

func TestHTTPSourceNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	source := exchange.NewHTTPSource(srv.URL)
	if _, err := source.FetchRate(context.Background(), "COP", "USD"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
