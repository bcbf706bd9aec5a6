package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"btcarena/internal/domain"
	"btcarena/internal/storage"
)

// writeDomainError maps the error taxonomy onto HTTP statuses. Anything
// unknown becomes a 500 with a generic body so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrBelowMinTrade):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientHoldings),
		errors.Is(err, domain.ErrPnLBelowThreshold):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrOrderNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrNicknameTaken),
		errors.Is(err, domain.ErrAlreadyClaimed):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrPriceUnavailable):
		status, msg = http.StatusServiceUnavailable, "price feed unavailable, try again"
	case errors.Is(err, storage.ErrSaveFailed):
		// The command took effect in memory; only durability lagged.
		status, msg = http.StatusServiceUnavailable, "state not persisted yet, retry later"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
