package airalo

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SIM is a provisioned eSIM profile.
type SIM struct {
	ICCID           string `json:"iccid"`
	QRCode          string `json:"qrcode"`
	QRCodeURL       string `json:"qrcode_url,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	AppleInstallURL string `json:"direct_apple_installation_url,omitempty"`
}

// TopUp is a data package applied to an existing SIM.
type TopUp struct {
	ID          string      `json:"id"`
	PackageID   string      `json:"package_id"`
	Currency    string      `json:"currency"`
	Quantity    int         `json:"quantity"`
	Description string      `json:"description"`
	ESIMType    string      `json:"esim_type"`
	Data        string      `json:"data"`
	Price       json.Number `json:"price"`
	NetPrice    json.Number `json:"net_price"`
}

// Catalog types accepted by /packages.
const (
	CatalogGlobal   = "global"
	CatalogLocal    = "local"
	CatalogRegional = "regional"
)

var ErrNoSIM = errors.New("airalo: order returned no sims")

// APIError is a non-2xx response from the partner API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airalo: status %d: %s", e.Status, e.Message)
}
