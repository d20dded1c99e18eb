// Package airalo talks to the Airalo partner API, which issues eSIM profiles
// and data top-ups. Mock serves the same surface for local runs and tests.
package airalo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"io"
	"net/http"
	"net/url"
	"time"
)

var log = logging.Logger("airalo")

const DefaultBaseURL = "https://sandbox-partners-api.airalo.com/v2"

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client whose requests carry a bearer token obtained
// through the client-credentials exchange and cached in store.
func NewClient(cfg Config, store kv.Store, clk clock.Clock) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	plain := &http.Client{Timeout: 15 * time.Second}
	src := &tokenSource{
		tokenURL:     cfg.BaseURL + "/token",
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		store:        store,
		http:         plain,
		clock:        clk,
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, src),
				Base:   http.DefaultTransport,
			},
		},
	}
}

// ListCatalog returns the raw "data" array of /packages.
func (c *Client) ListCatalog(ctx context.Context, kind, country string) (json.RawMessage, error) {
	q := url.Values{"filter[type]": {kind}, "limit": {"1000"}}
	if country != "" {
		q.Set("filter[country]", country)
	}
	body, err := c.do(ctx, http.MethodGet, "/packages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return rawData(body), nil
}

func (c *Client) Provision(ctx context.Context, packageID string, quantity int) (SIM, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders", map[string]any{
		"package_id":  packageID,
		"quantity":    quantity,
		"type":        "sim",
		"description": fmt.Sprintf("%d x %s", quantity, packageID),
	})
	if err != nil {
		return SIM{}, err
	}
	return firstSIM(body)
}

func (c *Client) TopUp(ctx context.Context, packageID, iccid string) (TopUp, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders/topups", map[string]any{
		"package_id":  packageID,
		"iccid":       iccid,
		"description": "top-up " + packageID,
	})
	if err != nil {
		return TopUp{}, err
	}
	return parseTopUp(body), nil
}

func (c *Client) SIMTopups(ctx context.Context, iccid string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/sims/"+url.PathEscape(iccid)+"/topups", nil)
	if err != nil {
		return nil, err
	}
	return rawData(body), nil
}

func (c *Client) Usage(ctx context.Context, iccid string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/sims/"+url.PathEscape(iccid)+"/usage", nil)
	if err != nil {
		return nil, err
	}
	return rawData(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airalo %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("airalo %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

func apiError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "meta.message").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "message").String()
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

func rawData(body []byte) json.RawMessage {
	d := gjson.GetBytes(body, "data")
	if !d.Exists() {
		return json.RawMessage("null")
	}
	return json.RawMessage(d.Raw)
}

func firstSIM(body []byte) (SIM, error) {
	s := gjson.GetBytes(body, "data.sims.0")
	if !s.Exists() || s.Get("iccid").String() == "" {
		return SIM{}, ErrNoSIM
	}
	return SIM{
		ICCID:           s.Get("iccid").String(),
		QRCode:          s.Get("qrcode").String(),
		QRCodeURL:       s.Get("qrcode_url").String(),
		CreatedAt:       s.Get("created_at").String(),
		AppleInstallURL: s.Get("direct_apple_installation_url").String(),
	}, nil
}

func parseTopUp(body []byte) TopUp {
	d := gjson.GetBytes(body, "data")
	return TopUp{
		ID:          d.Get("id").String(),
		PackageID:   d.Get("package_id").String(),
		Currency:    d.Get("currency").String(),
		Quantity:    int(d.Get("quantity").Int()),
		Description: d.Get("description").String(),
		ESIMType:    d.Get("esim_type").String(),
		Data:        d.Get("data").String(),
		Price:       number(d.Get("price")),
		NetPrice:    number(d.Get("net_price")),
	}
}

func number(r gjson.Result) json.Number {
	if r.Type != gjson.Number {
		return ""
	}
	return json.Number(r.Raw)
}
