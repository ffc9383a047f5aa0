package services

import (
	"context"
	"testing"
	"time"

	"tally/internal/core"
)

// fakeStore is an in-memory MaterializerStore.
type fakeStore struct {
	templates []core.RecurringTemplate
	txs       []core.Transaction
	commits   int
}

func (f *fakeStore) ListActiveTemplates(_ context.Context, accountID string) ([]core.RecurringTemplate, error) {
	var out []core.RecurringTemplate
	for _, tpl := range f.templates {
		if tpl.Active && tpl.AccountID == accountID {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range f.txs {
		if accountID == "" || tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTransactions(_ context.Context, txs []core.Transaction) error {
	f.txs = append(f.txs, txs...)
	f.commits++
	return nil
}

func template(name string, freq core.Frequency, start time.Time) core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:        "tpl-" + name,
		AccountID: "acc-1",
		Name:      name,
		Frequency: freq,
		StartDate: start,
		Amount:    core.Money{Cents: 900},
		Active:    true,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMaterializeWeeklyOccurrences(t *testing.T) {
	store := &fakeStore{templates: []core.RecurringTemplate{
		template("Gym", core.Weekly, day(2024, 1, 1)),
	}}
	m := NewMaterializer(store)

	now := day(2024, 1, 29)
	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Jan 1, 8, 15, 22, 29
	if created != 5 {
		t.Fatalf("expected 5 occurrences, got %d", created)
	}
	for _, tx := range store.txs {
		if tx.Category != "Gym" || tx.Amount.Cents != 900 || tx.Type != core.Expenses {
			t.Fatalf("unexpected occurrence: %+v", tx)
		}
	}
	if store.commits != 1 {
		t.Fatalf("expected a single batch commit, got %d", store.commits)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	store := &fakeStore{templates: []core.RecurringTemplate{
		template("Rent", core.Monthly, day(2024, 1, 5)),
	}}
	m := NewMaterializer(store)
	now := day(2024, 4, 10)

	first, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", now)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first != 4 { // Jan, Feb, Mar, Apr
		t.Fatalf("first run: expected 4 occurrences, got %d", first)
	}

	second, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second != 0 {
		t.Fatalf("second run: expected 0 new occurrences, got %d", second)
	}
	if len(store.txs) != 4 {
		t.Fatalf("expected 4 stored transactions, got %d", len(store.txs))
	}
}

func TestMaterializeRespectsEndDate(t *testing.T) {
	tpl := template("Subscription", core.Monthly, day(2024, 1, 1))
	tpl.EndDate = day(2024, 2, 15)
	store := &fakeStore{templates: []core.RecurringTemplate{tpl}}
	m := NewMaterializer(store)

	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 6, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created != 2 { // Jan 1 and Feb 1 only
		t.Fatalf("expected 2 occurrences, got %d", created)
	}
	for _, tx := range store.txs {
		if tx.OccurredAt.After(tpl.EndDate) {
			t.Fatalf("occurrence after end date: %s", tx.OccurredAt)
		}
	}
}

func TestMaterializeSkipsInactiveTemplates(t *testing.T) {
	tpl := template("Paused", core.Daily, day(2024, 1, 1))
	tpl.Active = false
	store := &fakeStore{templates: []core.RecurringTemplate{tpl}}
	m := NewMaterializer(store)

	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 0 {
		t.Fatalf("inactive template generated %d occurrences", created)
	}
}

func TestMaterializeFrequencyNoneGeneratesNothing(t *testing.T) {
	store := &fakeStore{templates: []core.RecurringTemplate{
		template("One-off", core.None, day(2024, 1, 1)),
	}}
	m := NewMaterializer(store)

	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 6, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 0 || len(store.txs) != 0 {
		t.Fatalf("frequency none generated %d occurrences", created)
	}
}

func TestMaterializeUnknownFrequencyFallsBackToMonthly(t *testing.T) {
	store := &fakeStore{templates: []core.RecurringTemplate{
		template("Legacy", core.Frequency("each-moon"), day(2024, 1, 1)),
	}}
	m := NewMaterializer(store)

	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 3, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 3 { // Jan, Feb, Mar — monthly fallback
		t.Fatalf("expected 3 occurrences, got %d", created)
	}
}

func TestMaterializeIterationCap(t *testing.T) {
	// A daily template starting far in the past would generate tens of
	// thousands of occurrences; the cap truncates the walk.
	store := &fakeStore{templates: []core.RecurringTemplate{
		template("Ancient", core.Daily, day(2010, 1, 1)),
	}}
	m := NewMaterializer(store)

	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != MaxOccurrencesPerTemplate {
		t.Fatalf("expected %d occurrences, got %d", MaxOccurrencesPerTemplate, created)
	}
}

func TestMaterializeMonthEndCursorStrictlyIncreasing(t *testing.T) {
	store := &fakeStore{templates: []core.RecurringTemplate{
		template("MonthEnd", core.Monthly, day(2024, 1, 31)),
	}}
	m := NewMaterializer(store)

	if _, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 6, 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(store.txs); i++ {
		if !store.txs[i].OccurredAt.After(store.txs[i-1].OccurredAt) {
			t.Fatalf("occurrence dates not strictly increasing: %s then %s",
				store.txs[i-1].OccurredAt, store.txs[i].OccurredAt)
		}
	}
}

func TestMaterializeManualEntryBlocksDuplicate(t *testing.T) {
	// A manually recorded transaction on the occurrence day with the
	// template's name and amount counts as that occurrence.
	store := &fakeStore{
		templates: []core.RecurringTemplate{
			template("Rent", core.Monthly, day(2024, 1, 5)),
		},
		txs: []core.Transaction{{
			ID:         "manual-1",
			AccountID:  "acc-1",
			Category:   "Rent",
			Amount:     core.Money{Cents: 900},
			Type:       core.Expenses,
			OccurredAt: day(2024, 2, 5),
		}},
	}
	m := NewMaterializer(store)

	created, err := m.MaterializeMissedOccurrences(context.Background(), "acc-1", day(2024, 3, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 2 { // Jan 5 and Mar 5; Feb 5 already covered
		t.Fatalf("expected 2 occurrences, got %d", created)
	}
}
