package orders

import (
	"encoding/json"
	"github.com/shopspring/decimal"
	"time"
)

type Kind string

const (
	KindPurchase Kind = "purchase"
	KindTopUp    Kind = "topup"
)

func (k Kind) Valid() bool { return k == KindPurchase || k == KindTopUp }

// FundingProfile is a single-use collection wallet plus the index of orders
// it has funded to completion.
type FundingProfile struct {
	PublicKey     string   `json:"publicKey"`
	PrivateKey    string   `json:"privateKey"`
	OrderIDs      []string `json:"orderIds,omitempty"`
	TopUpOrderIDs []string `json:"topupOrderIds,omitempty"`
}

type Order struct {
	OrderID              string          `json:"orderId"`
	Kind                 Kind            `json:"kind"`
	FundingAddress       string          `json:"ppPublicKey"`
	CatalogItemID        string          `json:"package_id"`
	Quantity             int             `json:"quantity"`
	FiatPrice            decimal.Decimal `json:"package_price"`
	ICCID                string          `json:"iccid,omitempty"`
	PaymentInNativeUnits decimal.Decimal `json:"paymentInSol"`
	Status               Status          `json:"status"` // lihat status.go
	SweepTxID            string          `json:"sweepTxId,omitempty"`
	FulfillmentResult    json.RawMessage `json:"fulfillmentResult,omitempty"`
	ErrorLog             string          `json:"errorLog,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

type CreateRequest struct {
	Kind           Kind
	FundingAddress string
	CatalogItemID  string
	Quantity       int
	FiatPrice      decimal.Decimal
	ICCID          string
}

// View is what Query exposes. Settlement details stay hidden until the
// order is provisioned.
type View struct {
	Order Order
}

func (v View) Full() bool { return v.Order.Status == StatusProvisioned }

func (v View) MarshalJSON() ([]byte, error) {
	if v.Full() {
		return json.Marshal(v.Order)
	}
	return json.Marshal(struct {
		OrderID string `json:"orderId"`
		Status  Status `json:"status"`
	}{v.Order.OrderID, v.Order.Status})
}

// ProfileOrder is one provisioned order in a profile listing. UsageData is
// set for purchases (JSON null when the provider could not be reached),
// TopUp for top-ups.
type ProfileOrder struct {
	OrderID       string          `json:"orderId"`
	CatalogItemID string          `json:"package_id"`
	ICCID         string          `json:"iccid"`
	UsageData     json.RawMessage `json:"usage_data,omitempty"`
	TopUp         json.RawMessage `json:"topup,omitempty"`
}
