package airalo

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/raulk/clock"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// refresh this long before the provider's stated expiry
const tokenSkew = time.Minute

type storedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// tokenSource runs the client-credentials exchange against {base}/token. The
// partner API nests the token under "data", which golang.org/x/oauth2's own
// client-credentials flow cannot parse, so the exchange is done here and the
// result is shared through the durable store across processes.
type tokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	store        kv.Store
	http         *http.Client
	clock        clock.Clock
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func (s *tokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var cached storedToken
	if ok, err := s.store.Get(ctx, kv.KeyProviderToken, &cached); err != nil {
		log.Warnw("read cached token", "err", err)
	} else if ok && cached.AccessToken != "" && s.clock.Now().Add(tokenSkew).Before(cached.ExpiresAt) {
		return &oauth2.Token{AccessToken: cached.AccessToken, TokenType: "Bearer", Expiry: cached.ExpiresAt.Add(-tokenSkew)}, nil
	}

	form := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("token body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, apiError(resp.StatusCode, body)
	}

	access := gjson.GetBytes(body, "data.access_token").String()
	if access == "" {
		return nil, fmt.Errorf("airalo: token response without access_token")
	}
	ttl := time.Duration(gjson.GetBytes(body, "data.expires_in").Int()) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tok := storedToken{AccessToken: access, ExpiresAt: s.clock.Now().Add(ttl)}
	if err := s.store.Set(ctx, kv.KeyProviderToken, tok); err != nil {
		log.Warnw("persist token", "err", err)
	}
	return &oauth2.Token{AccessToken: tok.AccessToken, TokenType: "Bearer", Expiry: tok.ExpiresAt.Add(-tokenSkew)}, nil
}
