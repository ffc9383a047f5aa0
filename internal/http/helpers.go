package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
)

// maxBodySize caps JSON request bodies at 64 KiB.
const maxBodySize = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// parsePeriod builds a period from the period, from, and to query
// parameters. A missing period parameter selects the default window; a
// custom period without both dates stays unset and yields no results.
func parsePeriod(r *http.Request) (core.Period, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("period"))
	if raw == "" {
		return core.DefaultPeriod(), nil
	}

	kind, ok := core.ParsePeriodKind(raw)
	if !ok {
		return core.Period{}, fmt.Errorf("unknown period %q", raw)
	}

	p := core.Period{Kind: kind}
	if kind != core.PeriodCustom {
		return p, nil
	}

	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		from, err := parseDate(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("invalid from date %q", v)
		}
		p.CustomStart = from
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		to, err := parseDate(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("invalid to date %q", v)
		}
		p.CustomEnd = to
	}
	if !p.CustomStart.IsZero() && !p.CustomEnd.IsZero() && p.CustomEnd.Before(p.CustomStart) {
		return core.Period{}, fmt.Errorf("to date precedes from date")
	}
	return p, nil
}

// parseType reads the optional type query parameter, defaulting to expenses.
func parseType(r *http.Request) (core.TransactionType, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("type"))
	if raw == "" {
		return core.Expenses, nil
	}
	t := core.TransactionType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", raw)
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
