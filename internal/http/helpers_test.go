package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"tally/internal/core"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantKind core.PeriodKind
		wantErr  bool
	}{
		{"default", "/report", core.PeriodCurrentMonth, false},
		{"today", "/report?period=today", core.PeriodToday, false},
		{"previous month", "/report?period=previousMonth", core.PeriodPreviousMonth, false},
		{"all time", "/report?period=allTime", core.PeriodAllTime, false},
		{"custom with dates", "/report?period=custom&from=2024-01-01&to=2024-01-31", core.PeriodCustom, false},
		{"custom without dates", "/report?period=custom", core.PeriodCustom, false},
		{"unknown", "/report?period=fortnight", "", true},
		{"bad from", "/report?period=custom&from=01-01-2024", "", true},
		{"to before from", "/report?period=custom&from=2024-02-01&to=2024-01-01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			p, err := parsePeriod(r)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePeriod() error = %v", err)
			}
			if p.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", p.Kind, tt.wantKind)
			}
		})
	}
}

func TestParsePeriodCustomDates(t *testing.T) {
	r := httptest.NewRequest("GET", "/report?period=custom&from=2024-02-01&to=2024-02-29", nil)
	p, err := parsePeriod(r)
	if err != nil {
		t.Fatalf("parsePeriod() error = %v", err)
	}
	if p.Unset() {
		t.Error("period with both dates should not be unset")
	}
	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !p.CustomStart.Equal(wantStart) {
		t.Errorf("CustomStart = %v, want %v", p.CustomStart, wantStart)
	}
}

func TestParseType(t *testing.T) {
	r := httptest.NewRequest("GET", "/report", nil)
	typ, err := parseType(r)
	if err != nil || typ != core.Expenses {
		t.Errorf("parseType() = %q, %v; want expenses, nil", typ, err)
	}

	r = httptest.NewRequest("GET", "/report?type=income", nil)
	typ, err = parseType(r)
	if err != nil || typ != core.Income {
		t.Errorf("parseType() = %q, %v; want income, nil", typ, err)
	}

	r = httptest.NewRequest("GET", "/report?type=transfer", nil)
	if _, err = parseType(r); err == nil {
		t.Error("parseType() should reject unknown types")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"tab\tkept", "tab\tkept"},
		{"null\x00removed", "nullremoved"},
		{"bell\x07gone", "bellgone"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
