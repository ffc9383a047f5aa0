package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	oldID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	defer os.Setenv("GOOGLE_SPREADSHEET_ID", oldID)
	os.Unsetenv("GOOGLE_SPREADSHEET_ID")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	oldVars := map[string]string{
		"GOOGLE_SPREADSHEET_ID":          os.Getenv("GOOGLE_SPREADSHEET_ID"),
		"GOOGLE_SERVICE_ACCOUNT_JSON":    os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		"GOOGLE_SERVICE_ACCOUNT_FILE":    os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		"GOOGLE_APPLICATION_CREDENTIALS": os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
	defer func() {
		for k, v := range oldVars {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	os.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	os.Unsetenv("GOOGLE_SERVICE_ACCOUNT_JSON")
	os.Unsetenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	os.Unsetenv("GOOGLE_APPLICATION_CREDENTIALS")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "sheets service") {
		t.Errorf("expected sheets service error, got: %v", err)
	}
}

func TestClient_AppendValidation(t *testing.T) {
	c := &Client{spreadsheetID: "test"} // svc is nil

	invalid := core.Transaction{
		ID:         "tx-1",
		AccountID:  "acc-1",
		Category:   "   ",
		Amount:     core.Money{Cents: 1000},
		Type:       core.Expenses,
		OccurredAt: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
	}

	_, err := c.Append(context.Background(), invalid)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got: %v", err)
	}
}

func TestClient_RemoveEmptyID(t *testing.T) {
	c := &Client{svc: nil}
	if err := c.Remove(context.Background(), ""); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"", 2023, ""},
		{"My Sheet", 2022, "2022 My Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}
