package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/budgetapp/budget-api/internal/services/auth"
	"github.com/budgetapp/budget-api/internal/services/transactions"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

// handleError maps a service error to its HTTP response. Anything it does
// not recognise is logged and reported as 500.
func (s *APIServer) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeError(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, transactions.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, "Category must be 'income' or 'expense'")
	case errors.Is(err, transactions.ErrInvalidPagination):
		writeError(w, http.StatusBadRequest, "skip and limit must not be negative")
	case errors.Is(err, transactions.ErrNotFound):
		writeError(w, http.StatusNotFound, "Transaction not found")
	default:
		s.logger.Error("request failed",
			slog.String("request_id", getRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
