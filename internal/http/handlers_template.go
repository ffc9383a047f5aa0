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

type templateRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Amount    string `json:"amount"`
	Comment   string `json:"comment"`
	Active    *bool  `json:"active"`
}

type templateResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Comment     string `json:"comment,omitempty"`
	Active      bool   `json:"active"`
}

func toTemplateResponse(rt core.RecurringTemplate) templateResponse {
	resp := templateResponse{
		ID:          rt.ID,
		AccountID:   rt.AccountID,
		Name:        rt.Name,
		Frequency:   string(rt.Frequency),
		StartDate:   rt.StartDate.Format("2006-01-02"),
		AmountCents: rt.Amount.Cents,
		Amount:      rt.Amount.String(),
		Comment:     rt.Comment,
		Active:      rt.Active,
	}
	if !rt.EndDate.IsZero() {
		resp.EndDate = rt.EndDate.Format("2006-01-02")
	}
	return resp
}

// templateFromRequest builds a template from the request body, applied
// over base (the zero value for creation, the stored row for updates).
func templateFromRequest(req templateRequest, base core.RecurringTemplate) (core.RecurringTemplate, error) {
	rt := base

	if v := strings.TrimSpace(req.AccountID); v != "" {
		rt.AccountID = v
	}
	if v := sanitizeInput(req.Name); v != "" {
		rt.Name = v
	}
	if v := strings.TrimSpace(req.Frequency); v != "" {
		rt.Frequency = core.Frequency(v).Normalize()
	}
	if v := strings.TrimSpace(req.StartDate); v != "" {
		start, err := parseDate(v)
		if err != nil {
			return core.RecurringTemplate{}, errors.New("invalid start_date")
		}
		rt.StartDate = start
	}
	if v := strings.TrimSpace(req.EndDate); v != "" {
		end, err := parseDate(v)
		if err != nil {
			return core.RecurringTemplate{}, errors.New("invalid end_date")
		}
		rt.EndDate = end
	}
	if v := strings.TrimSpace(req.Amount); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			return core.RecurringTemplate{}, errors.New("invalid amount")
		}
		rt.Amount = core.Money{Cents: cents}
	}
	if req.Comment != "" {
		rt.Comment = sanitizeInput(req.Comment)
	}
	if req.Active != nil {
		rt.Active = *req.Active
	}

	return rt, rt.Validate()
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	templates, err := s.store.ListTemplates(r.Context(), accountID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List templates failed",
			applog.FieldAccountID, accountID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not list templates")
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for _, rt := range templates {
		out = append(out, toTemplateResponse(rt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	base := core.RecurringTemplate{Active: true}
	rt, err := templateFromRequest(req, base)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rt.ID = uuid.NewString()

	if err := s.store.CreateTemplate(r.Context(), rt); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create template failed",
			applog.FieldAccountID, rt.AccountID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not create template")
		return
	}

	// New templates can change what a report materializes.
	s.invalidateReports(rt.AccountID)
	writeJSON(w, http.StatusCreated, toTemplateResponse(rt))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rt, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load template")
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(rt))
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load template")
		return
	}

	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rt, err := templateFromRequest(req, existing)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rt.ID = existing.ID
	rt.AccountID = existing.AccountID // templates never move between accounts

	if err := s.store.UpdateTemplate(r.Context(), rt); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Update template failed",
			applog.FieldTemplateID, id, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not update template")
		return
	}

	s.invalidateReports(rt.AccountID)
	writeJSON(w, http.StatusOK, toTemplateResponse(rt))
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rt, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load template")
		return
	}

	if err := s.store.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete template")
		return
	}

	s.invalidateReports(rt.AccountID)
	w.WriteHeader(http.StatusNoContent)
}
