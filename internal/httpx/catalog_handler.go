package httpx

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-esim-orders/internal/catalog"
	"github.com/ariefcatur/go-esim-orders/internal/kv"
	"github.com/go-chi/chi/v5"
	"github.com/raulk/clock"
	"net/http"
	"time"
)

type PlanLister interface {
	Get(ctx context.Context, kind, country string) ([]catalog.Region, error)
}

// SIMInfo passes per-SIM lookups through to the provider.
type SIMInfo interface {
	SIMTopups(ctx context.Context, iccid string) (json.RawMessage, error)
	Usage(ctx context.Context, iccid string) (json.RawMessage, error)
}

type CatalogHandler struct {
	Plans PlanLister
	SIMs  SIMInfo
	Store kv.Store
	Clock clock.Clock
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/packages", h.listPackages)
	r.Get("/sim/{iccid}/topups", h.simTopups)
	r.Get("/sim/{iccid}/usage", h.simUsage)
	r.Post("/error", h.logClientError)
}

func (h *CatalogHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter: type")
		return
	}
	if !catalog.ValidKind(kind) {
		writeError(w, http.StatusBadRequest, "invalid package type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	regions, err := h.Plans.Get(ctx, kind, r.URL.Query().Get("country"))
	if err != nil {
		writeFailure(w, r, "failed to retrieve package plans", err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (h *CatalogHandler) simTopups(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, "failed to retrieve SIM top-ups", h.SIMs.SIMTopups)
}

func (h *CatalogHandler) simUsage(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, "failed to retrieve SIM usage", h.SIMs.Usage)
}

func (h *CatalogHandler) passthrough(w http.ResponseWriter, r *http.Request, msg string, fetch func(context.Context, string) (json.RawMessage, error)) {
	iccid := chi.URLParam(r, "iccid")
	if iccid == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter: iccid")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := fetch(ctx, iccid)
	if err != nil {
		writeFailure(w, r, msg, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

type clientErrorReq struct {
	Message string `json:"message"`
}

type clientErrorLog struct {
	Message   string    `json:"message"`
	UserAgent string    `json:"userAgent,omitempty"`
	At        time.Time `json:"at"`
}

func (h *CatalogHandler) logClientError(w http.ResponseWriter, r *http.Request) {
	var req clientErrorReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	now := h.Clock.Now()
	entry := clientErrorLog{Message: req.Message, UserAgent: r.UserAgent(), At: now.UTC()}
	if err := h.Store.Set(ctx, kv.ErrorLogKey(now), entry); err != nil {
		writeFailure(w, r, "failed to process log request", err)
		return
	}
	log.Infow("client error logged", "message", req.Message)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
