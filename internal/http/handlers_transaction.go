package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

type createTransactionRequest struct {
	AccountID  string `json:"account_id"`
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	OccurredAt  string    `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		Category:    tx.Category,
		AmountCents: tx.Amount.Cents,
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		OccurredAt:  tx.OccurredAt.Format("2006-01-02"),
		CreatedAt:   tx.CreatedAt,
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))

	txs, err := s.store.ListTransactions(r.Context(), accountID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed",
			applog.FieldAccountID, accountID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	occurredAt, err := parseDate(strings.TrimSpace(req.OccurredAt))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid occurred_at date")
		return
	}

	tx := core.Transaction{
		AccountID:  strings.TrimSpace(req.AccountID),
		Category:   sanitizeInput(req.Category),
		Amount:     core.Money{Cents: cents},
		Type:       core.TransactionType(strings.TrimSpace(req.Type)),
		OccurredAt: occurredAt,
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.transactions.CreateTransaction(r.Context(), tx)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create transaction failed",
			applog.FieldAccountID, tx.AccountID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not create transaction")
		return
	}

	s.invalidateReports(created.AccountID)
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tx, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load transaction")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Load first so the report cache can be invalidated per account.
	tx, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load transaction")
		return
	}

	if err := s.transactions.DeleteTransaction(r.Context(), id); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete transaction failed",
			applog.FieldTransactionID, id, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not delete transaction")
		return
	}

	s.invalidateReports(tx.AccountID)
	w.WriteHeader(http.StatusNoContent)
}
