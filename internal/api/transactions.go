package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/gorilla/mux"
)

const defaultListLimit = 100

type CreateTransactionRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Amount      *float64 `json:"amount" validate:"required"`
	Category    *string  `json:"category" validate:"required"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
}

// UpdateTransactionRequest carries only the fields the client sent.
// Description distinguishes an absent key from an explicit null.
type UpdateTransactionRequest struct {
	Title       *string        `json:"title" validate:"omitempty,min=1,max=200"`
	Amount      *float64       `json:"amount"`
	Category    *string        `json:"category"`
	Description nullableString `json:"description" validate:"omitempty,max=500"`
}

type nullableString struct {
	Set   bool
	Null  bool
	Value string
}

func (ns *nullableString) UnmarshalJSON(data []byte) error {
	ns.Set = true
	if bytes.Equal(data, []byte("null")) {
		ns.Null = true
		return nil
	}
	return json.Unmarshal(data, &ns.Value)
}

func (req UpdateTransactionRequest) toUpdate() models.TransactionUpdate {
	upd := models.TransactionUpdate{
		Title:  req.Title,
		Amount: req.Amount,
	}
	if req.Category != nil {
		c := models.Category(*req.Category)
		upd.Category = &c
	}
	if req.Description.Set {
		if req.Description.Null {
			upd.ClearDescription = true
		} else {
			d := req.Description.Value
			upd.Description = &d
		}
	}
	return upd
}

func (s *APIServer) createTransactionHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		var req CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
			return
		}

		t, err := s.transactions.Create(r.Context(), user, models.NewTransaction{
			Title:       req.Title,
			Amount:      *req.Amount,
			Category:    models.Category(*req.Category),
			Description: req.Description,
		})
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, t)
	}
}

func (s *APIServer) listTransactionsHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		query := r.URL.Query()

		skip, err := intQuery(query.Get("skip"), 0)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "skip must be an integer")
			return
		}
		limit, err := intQuery(query.Get("limit"), defaultListLimit)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}

		var category *models.Category
		if c := query.Get("category"); c != "" {
			cat := models.Category(c)
			category = &cat
		}

		list, err := s.transactions.List(r.Context(), user, category, skip, limit)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func (s *APIServer) getTransactionHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		id, ok := transactionID(w, r)
		if !ok {
			return
		}

		t, err := s.transactions.Get(r.Context(), user, id)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func (s *APIServer) updateTransactionHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		id, ok := transactionID(w, r)
		if !ok {
			return
		}

		var req UpdateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
			return
		}

		t, err := s.transactions.Update(r.Context(), user, id, req.toUpdate())
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func (s *APIServer) deleteTransactionHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		id, ok := transactionID(w, r)
		if !ok {
			return
		}

		if err := s.transactions.Delete(r.Context(), user, id); err != nil {
			s.handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *APIServer) summaryHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		summary, err := s.transactions.Summarize(r.Context(), user)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "id must be an integer")
		return 0, false
	}
	return id, true
}

func intQuery(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
