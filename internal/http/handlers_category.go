package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

type createCategoryRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Icon      string `json:"icon"`
}

type categoryResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Icon      string `json:"icon,omitempty"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		AccountID: c.AccountID,
		Name:      c.Name,
		Type:      string(c.Type),
		Icon:      c.Icon,
	}
}

func (s *Server) listCategoriesForRequest(w http.ResponseWriter, r *http.Request) ([]core.Category, bool) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return nil, false
	}

	typ, err := parseType(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	cats, err := s.store.ListCategories(r.Context(), accountID, typ)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List categories failed",
			applog.FieldAccountID, accountID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not list categories")
		return nil, false
	}
	return cats, true
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, ok := s.listCategoriesForRequest(w, r)
	if !ok {
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCategoryPicker returns the category list ordered for selection
// lists: Uncategorized pinned first, the rest alphabetical.
func (s *Server) handleCategoryPicker(w http.ResponseWriter, r *http.Request) {
	cats, ok := s.listCategoriesForRequest(w, r)
	if !ok {
		return
	}

	core.SortCategoriesForPicker(cats)

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := core.Category{
		ID:        uuid.NewString(),
		AccountID: strings.TrimSpace(req.AccountID),
		Name:      sanitizeInput(req.Name),
		Type:      core.TransactionType(strings.TrimSpace(req.Type)),
		Icon:      sanitizeInput(req.Icon),
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.InsertCategories(r.Context(), []core.Category{c}); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create category failed",
			applog.FieldAccountID, c.AccountID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not create category")
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
