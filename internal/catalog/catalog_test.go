package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/ariefcatur/go-esim-orders/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const sampleCatalog = `[
  {"slug":"japan","country_code":"JP","operators":[
    {"id":77,"title":"Moshi Moshi","packages":[
      {"id":"moshi-7days-1gb","price":6.5,"day":7,"data":"1 GB"},
      {"id":"moshi-30days-5gb","price":18,"day":30,"data":"5 GB"}
    ]}
  ]}
]`

type countingSource struct {
	calls int
	err   error
	lastC string
	body  string
}

func (s *countingSource) ListCatalog(_ context.Context, _, country string) (json.RawMessage, error) {
	s.calls++
	s.lastC = country
	if s.err != nil {
		return nil, s.err
	}
	if s.body != "" {
		return json.RawMessage(s.body), nil
	}
	return json.RawMessage(sampleCatalog), nil
}

func TestPlanCacheTTL(t *testing.T) {
	src := &countingSource{}
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	start := clk.Now()
	m := metrics.New()
	c := NewPlanCache(src, kv.NewMemory(), clk, 24*time.Hour, m)
	ctx := context.Background()

	got, err := c.Get(ctx, "local", "jp")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)
	require.Equal(t, "JP", src.lastC)
	require.Len(t, got, 1)

	clk.Add(time.Hour)
	again, err := c.Get(ctx, "local", "JP")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)
	require.Equal(t, got[0].Region, again[0].Region)

	clk.Set(start.Add(24*time.Hour + time.Millisecond))
	_, err = c.Get(ctx, "local", "JP")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)

	require.Equal(t, 1.0, testutil.ToFloat64(m.CatalogLookups.WithLabelValues("hit")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CatalogLookups.WithLabelValues("miss")))
}

func TestPlanCacheErrorsNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("upstream 503")}
	store := kv.NewMemory()
	c := NewPlanCache(src, store, clock.NewMock(), 0, nil)
	ctx := context.Background()

	_, err := c.Get(ctx, "global", "")
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	ok, err := store.Exists(ctx, kv.PackagePlansKey("global", ""))
	require.NoError(t, err)
	require.False(t, ok)

	src.err = nil
	_, err = c.Get(ctx, "global", "")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestPlanCacheEmptyResultNotCached(t *testing.T) {
	src := &countingSource{body: `{}`}
	store := kv.NewMemory()
	c := NewPlanCache(src, store, clock.NewMock(), time.Hour, nil)
	ctx := context.Background()

	got, err := c.Get(ctx, "global", "")
	require.NoError(t, err)
	require.Empty(t, got)
	ok, err := store.Exists(ctx, kv.PackagePlansKey("global", ""))
	require.NoError(t, err)
	require.False(t, ok)

	src.body = ""
	got, err = c.Get(ctx, "global", "")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
	require.Len(t, got, 1)
}

func TestPlanCacheInvalidKind(t *testing.T) {
	src := &countingSource{}
	c := NewPlanCache(src, kv.NewMemory(), clock.NewMock(), 0, nil)

	_, err := c.Get(context.Background(), "galactic", "")
	require.ErrorIs(t, err, ErrInvalidKind)
	require.Zero(t, src.calls)
}

func TestNormalize(t *testing.T) {
	regions := Normalize(json.RawMessage(sampleCatalog))
	require.Len(t, regions, 1)
	r := regions[0]
	require.Equal(t, "japan", r.Region)
	require.Len(t, r.Operators, 1)
	require.Equal(t, "77", r.Operators[0].ID)
	require.Equal(t, "Moshi Moshi", r.Operators[0].Title)

	pkgs := r.Operators[0].Packages
	require.Len(t, pkgs, 2)
	require.Equal(t, "moshi-7days-1gb", pkgs[0].ID)
	require.Equal(t, "6.5", pkgs[0].Price.String())
	require.Equal(t, 7, pkgs[0].Days)
	require.Equal(t, "1 GB", pkgs[0].DataAmount)

	require.Empty(t, Normalize(json.RawMessage(`null`)))
}
