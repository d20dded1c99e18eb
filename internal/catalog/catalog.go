// Package catalog serves provider package plans through a read-through cache
// in the durable store.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/ariefcatur/go-esim-orders/internal/metrics"
	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"strings"
	"time"
)

var log = logging.Logger("catalog")

const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidKind        = errors.New("InvalidKind")
	ErrCatalogUnavailable = errors.New("CatalogUnavailable")
)

var kinds = map[string]bool{"global": true, "local": true, "regional": true}

func ValidKind(kind string) bool { return kinds[kind] }

// Source lists the raw plan catalog, one element per region.
type Source interface {
	ListCatalog(ctx context.Context, kind, country string) (json.RawMessage, error)
}

type Package struct {
	ID         string          `json:"id"`
	Price      decimal.Decimal `json:"price"`
	Days       int             `json:"days"`
	DataAmount string          `json:"dataAmount"`
}

type Operator struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Packages []Package `json:"packages"`
}

type Region struct {
	Region    string     `json:"region"`
	Operators []Operator `json:"operators"`
}

type entry struct {
	Data      []Region `json:"data"`
	Timestamp int64    `json:"timestamp"` // unix ms
}

type PlanCache struct {
	src     Source
	store   kv.Store
	clock   clock.Clock
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewPlanCache(src Source, store kv.Store, clk clock.Clock, ttl time.Duration, m *metrics.Metrics) *PlanCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PlanCache{src: src, store: store, clock: clk, ttl: ttl, metrics: m}
}

// Get returns plans for kind, optionally narrowed to a country. Entries
// younger than the TTL are served without calling the provider.
func (c *PlanCache) Get(ctx context.Context, kind, country string) ([]Region, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	country = strings.ToUpper(country)
	key := kv.PackagePlansKey(kind, country)
	now := c.clock.Now()

	var e entry
	ok, err := c.store.Get(ctx, key, &e)
	if err != nil {
		log.Warnw("read cache entry", "key", key, "err", err)
	}
	if ok && err == nil && now.Sub(time.UnixMilli(e.Timestamp)) < c.ttl {
		c.count("hit")
		return e.Data, nil
	}

	c.count("miss")
	raw, err := c.src.ListCatalog(ctx, kind, country)
	if err != nil {
		c.count("error")
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	regions := Normalize(raw)
	if len(regions) == 0 {
		// provider kadang balas 2xx tanpa data, jangan dikunci 24 jam
		log.Warnw("empty catalog, not cached", "key", key)
		return regions, nil
	}
	if err := c.store.Set(ctx, key, entry{Data: regions, Timestamp: now.UnixMilli()}); err != nil {
		log.Warnw("write cache entry", "key", key, "err", err)
	}
	return regions, nil
}

// Normalize reduces the provider payload to the fields clients render.
func Normalize(raw json.RawMessage) []Region {
	out := []Region{}
	gjson.ParseBytes(raw).ForEach(func(_, r gjson.Result) bool {
		reg := Region{Region: r.Get("slug").String(), Operators: []Operator{}}
		r.Get("operators").ForEach(func(_, op gjson.Result) bool {
			o := Operator{ID: op.Get("id").String(), Title: op.Get("title").String(), Packages: []Package{}}
			op.Get("packages").ForEach(func(_, p gjson.Result) bool {
				price, err := decimal.NewFromString(p.Get("price").Raw)
				if err != nil {
					price = decimal.Zero
				}
				o.Packages = append(o.Packages, Package{
					ID:         p.Get("id").String(),
					Price:      price,
					Days:       int(p.Get("day").Int()),
					DataAmount: p.Get("data").String(),
				})
				return true
			})
			reg.Operators = append(reg.Operators, o)
			return true
		})
		out = append(out, reg)
		return true
	})
	return out
}

func (c *PlanCache) count(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CatalogLookups.WithLabelValues(result).Inc()
}
