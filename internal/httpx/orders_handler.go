package httpx

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-esim-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

type OrderService interface {
	Create(ctx context.Context, req orders.CreateRequest) (orders.Order, error)
	Query(ctx context.Context, kind orders.Kind, orderID string) (orders.View, error)
	ListByProfile(ctx context.Context, kind orders.Kind, address string) ([]orders.ProfileOrder, error)
}

type ProfileService interface {
	Create(ctx context.Context) (orders.FundingProfile, error)
}

type OrdersHandler struct {
	Orders   OrderService
	Profiles ProfileService
}

type CreateOrderReq struct {
	PPPublicKey  string          `json:"ppPublicKey"`
	ICCID        string          `json:"iccid,omitempty"`
	Quantity     int             `json:"quantity"`
	PackageID    string          `json:"package_id"`
	PackagePrice decimal.Decimal `json:"package_price"`
}

type CreateOrderResp struct {
	OrderID      string          `json:"orderId"`
	PaymentInSol decimal.Decimal `json:"paymentInSol"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/create-payment-profile", h.createProfile)

	r.Post("/order", h.createOrder(orders.KindPurchase))
	r.Get("/order/{orderId}", h.getOrder(orders.KindPurchase))
	r.Post("/topup", h.createOrder(orders.KindTopUp))
	r.Get("/topup/{orderId}", h.getOrder(orders.KindTopUp))

	r.Get("/payment-profile/sim/{ppPublicKey}", h.listProfile(orders.KindPurchase))
	r.Get("/payment-profile/topup/{ppPublicKey}", h.listProfile(orders.KindTopUp))
}

func (h *OrdersHandler) createProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.Create(ctx)
	if err != nil {
		writeFailure(w, r, "failed to create payment profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"publicKey": p.PublicKey})
}

func (h *OrdersHandler) createOrder(kind orders.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateOrderReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if kind == orders.KindPurchase {
			req.ICCID = ""
		}

		// loop order jalan di context milik Machine, bukan request ini
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		o, err := h.Orders.Create(ctx, orders.CreateRequest{
			Kind:           kind,
			FundingAddress: req.PPPublicKey,
			CatalogItemID:  req.PackageID,
			Quantity:       req.Quantity,
			FiatPrice:      req.PackagePrice,
			ICCID:          req.ICCID,
		})
		if err != nil {
			writeFailure(w, r, "failed to create order", err)
			return
		}
		writeJSON(w, http.StatusOK, CreateOrderResp{OrderID: o.OrderID, PaymentInSol: o.PaymentInNativeUnits})
	}
}

func (h *OrdersHandler) getOrder(kind orders.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			writeError(w, http.StatusBadRequest, "missing id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		v, err := h.Orders.Query(ctx, kind, orderID)
		if err != nil {
			writeFailure(w, r, "failed to query order", err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *OrdersHandler) listProfile(kind orders.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := chi.URLParam(r, "ppPublicKey")

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		list, err := h.Orders.ListByProfile(ctx, kind, addr)
		if err != nil {
			writeFailure(w, r, "failed to list orders", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
