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

type createAccountRequest struct {
	Name           string `json:"name"`
	InitialBalance string `json:"initial_balance"`
	Currency       string `json:"currency"`
}

type accountResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	InitialBalanceCents int64     `json:"initial_balance_cents"`
	InitialBalance      string    `json:"initial_balance"`
	Currency            string    `json:"currency"`
	CategoriesSeeded    bool      `json:"categories_seeded"`
	CreatedAt           time.Time `json:"created_at"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:                  a.ID,
		Name:                a.Name,
		InitialBalanceCents: a.InitialBalance.Cents,
		InitialBalance:      a.InitialBalance.String(),
		Currency:            a.Currency,
		CategoriesSeeded:    a.CategoriesSeeded,
		CreatedAt:           a.CreatedAt,
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListAccounts(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List accounts failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not list accounts")
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := core.Account{
		Name:     sanitizeInput(req.Name),
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if req.InitialBalance != "" {
		cents, err := core.ParseDecimalToCents(req.InitialBalance)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid initial balance")
			return
		}
		a.InitialBalance = core.Money{Cents: cents}
	}
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.accounts.CreateAccount(r.Context(), a)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create account failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(created))
}

// handleDeleteAccount removes an account; transactions, categories,
// and templates cascade with it.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.accounts.DeleteAccount(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete account failed",
			applog.FieldAccountID, id, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not delete account")
		return
	}
	s.invalidateReports(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load account")
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	balance := account.Balance(txs)
	writeJSON(w, http.StatusOK, struct {
		AccountID    string `json:"account_id"`
		BalanceCents int64  `json:"balance_cents"`
		Balance      string `json:"balance"`
		Currency     string `json:"currency"`
	}{
		AccountID:    id,
		BalanceCents: balance.Cents,
		Balance:      balance.String(),
		Currency:     account.Currency,
	})
}

// handleSelectedAccount resolves a stored account id to a live account,
// falling back to the first account when the id is stale.
func (s *Server) handleSelectedAccount(w http.ResponseWriter, r *http.Request) {
	storedID := strings.TrimSpace(r.URL.Query().Get("stored_id"))

	selected, err := s.accounts.ResolveSelected(r.Context(), storedID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not resolve account")
		return
	}
	if selected == nil {
		writeError(w, http.StatusNotFound, "no accounts exist")
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*selected))
}
