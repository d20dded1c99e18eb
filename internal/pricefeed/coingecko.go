package pricefeed

import (
	"context"
	"fmt"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko quotes one coin against one fiat currency via /simple/price.
type CoinGecko struct {
	BaseURL    string
	CoinID     string // e.g. "solana"
	VsCurrency string // e.g. "usd"
	HTTP       *http.Client
}

func NewCoinGecko(baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CoinGecko{
		BaseURL:    baseURL,
		CoinID:     "solana",
		VsCurrency: "usd",
		HTTP:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *CoinGecko) Rate(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{"ids": {c.CoinID}, "vs_currencies": {c.VsCurrency}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price status %d", resp.StatusCode)
	}

	v := gjson.GetBytes(body, gjson.Escape(c.CoinID)+"."+gjson.Escape(c.VsCurrency))
	if !v.Exists() || v.Type != gjson.Number {
		return decimal.Zero, fmt.Errorf("price missing for %s/%s", c.CoinID, c.VsCurrency)
	}
	// parse the raw literal, not the float, to keep every digit the feed sent
	return decimal.NewFromString(v.Raw)
}
