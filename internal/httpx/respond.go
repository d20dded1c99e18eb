package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-esim-orders/internal/catalog"
	"github.com/ariefcatur/go-esim-orders/internal/orders"
	logging "github.com/ipfs/go-log/v2"
	"net/http"
)

var log = logging.Logger("httpx")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeFailure maps err onto a status code. Clients only ever see the
// fixed message for that class, never the wrapped chain.
func writeFailure(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	switch {
	case errors.Is(err, orders.ErrProfileNotFound):
		writeError(w, http.StatusBadRequest, "payment profile not found")
	case errors.Is(err, orders.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, catalog.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "invalid package type")
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
