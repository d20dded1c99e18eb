package airalo

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"github.com/raulk/clock"
	"github.com/tidwall/gjson"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"
)

//go:embed mockdata/catalog.json
var mockCatalog []byte

var iccidCountryCodes = []string{"001", "310", "440", "234", "208"}

var lpaDomains = []string{"rsp.airalo.com", "smdp.io", "esim.truphone.com", "rsp.gigsky.com"}

// harga top-up per ukuran paket
var topUpPrices = []struct {
	Data  string
	Days  int
	Price float64
}{
	{"1GB", 7, 9.99},
	{"3GB", 15, 19.99},
	{"5GB", 30, 29.99},
	{"10GB", 30, 49.99},
	{"20GB", 30, 79.99},
}

// Mock answers the provider surface in process, with plausible ICCIDs and
// activation codes. It is selected with USE_MOCK_AIRALO.
type Mock struct {
	clock clock.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMock(clk clock.Clock, seed uint64) *Mock {
	return &Mock{clock: clk, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (m *Mock) ListCatalog(_ context.Context, kind, country string) (json.RawMessage, error) {
	switch kind {
	case CatalogGlobal, CatalogRegional:
		return json.RawMessage(gjson.GetBytes(mockCatalog, kind).Raw), nil
	case CatalogLocal:
		if country == "" {
			return json.RawMessage("[]"), nil
		}
		cc := strings.ToUpper(country)
		if p := gjson.GetBytes(mockCatalog, "local."+gjson.Escape(cc)); p.Exists() {
			return json.RawMessage("[" + p.Raw + "]"), nil
		}
		b, err := json.Marshal([]any{m.countryPackage(cc)})
		return b, err
	default:
		return json.RawMessage("[]"), nil
	}
}

func (m *Mock) Provision(_ context.Context, packageID string, quantity int) (SIM, error) {
	if packageID == "" || quantity <= 0 {
		return SIM{}, &APIError{Status: 422, Message: "package_id and quantity are required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	lpa := m.activationCodeLocked()
	return SIM{
		ICCID:           m.iccidLocked(),
		QRCode:          lpa,
		QRCodeURL:       "https://cdn.airalo.com/qr/" + uuid.NewString() + ".png",
		CreatedAt:       m.clock.Now().UTC().Format(time.RFC3339),
		AppleInstallURL: "https://esimsetup.apple.com/esim_qrcode_provisioning?carddata=" + url.QueryEscape(lpa),
	}, nil
}

func (m *Mock) TopUp(_ context.Context, packageID, iccid string) (TopUp, error) {
	if packageID == "" || iccid == "" {
		return TopUp{}, &APIError{Status: 422, Message: "package_id and iccid are required"}
	}
	m.mu.Lock()
	opt := topUpPrices[m.rng.IntN(len(topUpPrices))]
	m.mu.Unlock()
	return TopUp{
		ID:          "topup_" + uuid.NewString(),
		PackageID:   packageID,
		Currency:    "USD",
		Quantity:    1,
		Description: "Top-up " + opt.Data,
		ESIMType:    "data",
		Data:        opt.Data,
		Price:       money(opt.Price),
		NetPrice:    money(opt.Price * 0.9),
	}, nil
}

func (m *Mock) SIMTopups(_ context.Context, iccid string) (json.RawMessage, error) {
	out := make([]map[string]any, 0, len(topUpPrices))
	for _, o := range topUpPrices {
		out = append(out, map[string]any{
			"id":           fmt.Sprintf("topup_%s_%dd", strings.ToLower(o.Data), o.Days),
			"price":        o.Price,
			"amount":       o.Data,
			"day":          o.Days,
			"is_unlimited": false,
			"title":        fmt.Sprintf("%s - %d Days", o.Data, o.Days),
			"data":         o.Data,
			"net_price":    money(o.Price * 0.9),
		})
	}
	return json.Marshal(out)
}

func (m *Mock) Usage(_ context.Context, iccid string) (json.RawMessage, error) {
	const limitMB = 5120
	m.mu.Lock()
	defer m.mu.Unlock()

	days := 5 + m.rng.IntN(10)
	now := m.clock.Now().UTC()
	out := make([]map[string]any, 0, days+1)
	for i := days; i >= 0; i-- {
		daily := 50 + m.rng.IntN(751)
		out = append(out, map[string]any{
			"date":          now.AddDate(0, 0, -i).Format("2006-01-02"),
			"data_usage_mb": daily,
			"data_limit_mb": limitMB,
			"remaining_mb":  max(0, limitMB-daily*(days-i+1)),
		})
	}
	return json.Marshal(out)
}

// 89 + kode negara + jaringan (2) + pelanggan (12)
func (m *Mock) iccidLocked() string {
	var b strings.Builder
	b.WriteString("89")
	b.WriteString(iccidCountryCodes[m.rng.IntN(len(iccidCountryCodes))])
	for range 14 {
		b.WriteByte(byte('0' + m.rng.IntN(10)))
	}
	return b.String()
}

func (m *Mock) activationCodeLocked() string {
	const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	code := make([]byte, 12)
	for i := range code {
		code[i] = alnum[m.rng.IntN(len(alnum))]
	}
	return "LPA:1$" + lpaDomains[m.rng.IntN(len(lpaDomains))] + "$" + string(code)
}

func (m *Mock) countryPackage(cc string) map[string]any {
	slug := strings.ToLower(cc) + "-mobile"
	return map[string]any{
		"slug":         strings.ToLower(cc),
		"country_code": cc,
		"title":        cc,
		"operators": []map[string]any{{
			"id":    3000 + int(cc[0]),
			"type":  "local",
			"title": cc + " Mobile",
			"packages": []map[string]any{
				{"id": slug + "-7days-1gb", "type": "sim", "price": 7.5, "amount": 1024, "day": 7, "title": "1 GB - 7 Days", "data": "1 GB"},
				{"id": slug + "-30days-5gb", "type": "sim", "price": 21, "amount": 5120, "day": 30, "title": "5 GB - 30 Days", "data": "5 GB"},
			},
		}},
	}
}

func money(v float64) json.Number {
	return json.Number(fmt.Sprintf("%.2f", v))
}
