package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// MaxOccurrencesPerTemplate bounds the cursor walk for a single
// template. A template with an old start date and a fine-grained
// frequency stops generating past this point rather than stalling the
// caller.
const MaxOccurrencesPerTemplate = 2000

// MaterializerStore is the slice of the repository the materializer
// needs. *storage.SQLiteRepository satisfies it.
type MaterializerStore interface {
	ListActiveTemplates(ctx context.Context, accountID string) ([]core.RecurringTemplate, error)
	ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	InsertTransactions(ctx context.Context, txs []core.Transaction) error
}

// Materializer back-fills the transaction occurrences a recurring
// template says should exist by now but do not. Runs are idempotent: an
// occurrence is only created when no transaction with the same calendar
// day, category, and amount exists yet.
type Materializer struct {
	store MaterializerStore
}

func NewMaterializer(store MaterializerStore) *Materializer {
	return &Materializer{store: store}
}

// MaterializeMissedOccurrences walks every active template of the
// account from its start date up to now (and up to its end date when
// one is set) and stages a transaction for each missed occurrence. All
// staged occurrences insert in one batch commit; the run either lands
// whole or not at all. Returns the number of transactions created.
//
// Degenerate templates never fail the run: a non-advancing cursor or a
// hit iteration cap truncates generation for that template with a log
// line, and the remaining templates still process.
func (m *Materializer) MaterializeMissedOccurrences(ctx context.Context, accountID string, now time.Time) (int, error) {
	if m.store == nil {
		return 0, fmt.Errorf("materializer not properly initialized")
	}

	templates, err := m.store.ListActiveTemplates(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}
	if len(templates) == 0 {
		return 0, nil
	}

	existing, err := m.store.ListTransactions(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	var staged []core.Transaction
	for _, tpl := range templates {
		occurrences := m.occurrencesFor(ctx, tpl, existing, staged, now)
		staged = append(staged, occurrences...)
	}

	if len(staged) == 0 {
		return 0, nil
	}

	if err := m.store.InsertTransactions(ctx, staged); err != nil {
		return 0, fmt.Errorf("insert occurrences: %w", err)
	}

	slog.InfoContext(ctx, "Materialized missed occurrences",
		"account_id", accountID,
		"templates", len(templates),
		"created", len(staged))

	return len(staged), nil
}

// occurrencesFor walks one template's cursor and returns the
// transactions to create for it.
func (m *Materializer) occurrencesFor(ctx context.Context, tpl core.RecurringTemplate, existing, staged []core.Transaction, now time.Time) []core.Transaction {
	freq := tpl.Frequency.Normalize()
	if freq == core.None {
		return nil
	}

	var created []core.Transaction
	cursor := tpl.StartDate
	iterations := 0

	for !cursor.After(now) && (tpl.EndDate.IsZero() || !cursor.After(tpl.EndDate)) {
		iterations++
		if iterations > MaxOccurrencesPerTemplate {
			slog.WarnContext(ctx, "Template hit iteration cap, truncating generation",
				"template_id", tpl.ID,
				"name", tpl.Name,
				"cap", MaxOccurrencesPerTemplate)
			break
		}

		if !occurrenceExists(existing, tpl, cursor) && !occurrenceExists(staged, tpl, cursor) && !occurrenceExists(created, tpl, cursor) {
			created = append(created, core.Transaction{
				ID:        uuid.NewString(),
				AccountID: tpl.AccountID,
				Category:  tpl.Name,
				Amount:    tpl.Amount,
				// Occurrences are always recorded as expenses; the
				// template does not carry a polarity here.
				Type:       core.Expenses,
				OccurredAt: cursor,
				CreatedAt:  now,
			})
		}

		next := freq.Next(cursor)
		if !next.After(cursor) {
			slog.WarnContext(ctx, "Template cursor did not advance, aborting",
				"template_id", tpl.ID,
				"name", tpl.Name,
				"frequency", tpl.Frequency,
				"cursor", cursor.Format("2006-01-02"))
			break
		}
		cursor = next
	}

	return created
}

// occurrenceExists checks the idempotence guard: a transaction on the
// same calendar day as the cursor, carrying the template's name as its
// category and the same amount.
func occurrenceExists(txs []core.Transaction, tpl core.RecurringTemplate, day time.Time) bool {
	for _, tx := range txs {
		if tx.Category == tpl.Name && tx.Amount.Cents == tpl.Amount.Cents && tx.SameDay(day) {
			return true
		}
	}
	return false
}
