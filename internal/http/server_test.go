package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

type fakeStore struct {
	txs  []core.Transaction
	cats []core.Category
	tpls []core.RecurringTemplate
	accs []core.Account
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (core.Account, error) {
	for _, a := range f.accs {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, storage.ErrNotFound
}

func (f *fakeStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	for _, tx := range f.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, storage.ErrNotFound
}

func (f *fakeStore) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	if accountID == "" {
		return append([]core.Transaction(nil), f.txs...), nil
	}
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCategories(_ context.Context, accountID string, typ core.TransactionType) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.cats {
		if c.AccountID == accountID && c.Type == typ {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertCategories(_ context.Context, cats []core.Category) error {
	f.cats = append(f.cats, cats...)
	return nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id string) error {
	for i, c := range f.cats {
		if c.ID == id {
			f.cats = append(f.cats[:i], f.cats[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) CreateTemplate(_ context.Context, rt core.RecurringTemplate) error {
	f.tpls = append(f.tpls, rt)
	return nil
}

func (f *fakeStore) GetTemplate(_ context.Context, id string) (core.RecurringTemplate, error) {
	for _, rt := range f.tpls {
		if rt.ID == id {
			return rt, nil
		}
	}
	return core.RecurringTemplate{}, storage.ErrNotFound
}

func (f *fakeStore) ListTemplates(_ context.Context, accountID string) ([]core.RecurringTemplate, error) {
	var out []core.RecurringTemplate
	for _, rt := range f.tpls {
		if rt.AccountID == accountID {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTemplate(_ context.Context, rt core.RecurringTemplate) error {
	for i := range f.tpls {
		if f.tpls[i].ID == rt.ID {
			f.tpls[i] = rt
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) DeleteTemplate(_ context.Context, id string) error {
	for i, rt := range f.tpls {
		if rt.ID == id {
			f.tpls = append(f.tpls[:i], f.tpls[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeAccounts struct {
	store *fakeStore
	next  int
}

func (f *fakeAccounts) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		f.next++
		a.ID = fmt.Sprintf("acc-%d", f.next)
	}
	f.store.accs = append(f.store.accs, a)
	return a, nil
}

func (f *fakeAccounts) ListAccounts(_ context.Context) ([]core.Account, error) {
	return append([]core.Account(nil), f.store.accs...), nil
}

func (f *fakeAccounts) DeleteAccount(_ context.Context, id string) error {
	for i, a := range f.store.accs {
		if a.ID == id {
			f.store.accs = append(f.store.accs[:i], f.store.accs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeAccounts) ResolveSelected(_ context.Context, storedID string) (*core.Account, error) {
	return core.ResolveSelectedAccount(f.store.accs, storedID), nil
}

type fakeTransactions struct {
	store *fakeStore
	next  int
}

func (f *fakeTransactions) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		f.next++
		tx.ID = fmt.Sprintf("tx-%d", f.next)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	f.store.txs = append(f.store.txs, tx)
	return tx, nil
}

func (f *fakeTransactions) DeleteTransaction(_ context.Context, id string) error {
	for i, tx := range f.store.txs {
		if tx.ID == id {
			f.store.txs = append(f.store.txs[:i], f.store.txs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// fakeMaterializer appends staged transactions to the store on the
// first call and reports how many it added.
type fakeMaterializer struct {
	store  *fakeStore
	staged []core.Transaction
	calls  int
}

func (f *fakeMaterializer) MaterializeMissedOccurrences(_ context.Context, accountID string, _ time.Time) (int, error) {
	f.calls++
	created := 0
	for _, tx := range f.staged {
		if tx.AccountID == accountID {
			f.store.txs = append(f.store.txs, tx)
			created++
		}
	}
	f.staged = nil
	return created, nil
}

func newTestServer(t *testing.T, store *fakeStore, m Materializer) *Server {
	t.Helper()
	logger := applog.New(applog.DefaultConfig())
	s := NewServer(":0",
		&fakeAccounts{store: store},
		&fakeTransactions{store: store},
		store, m, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, nil)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestCreateTransaction(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store, nil)

	body := `{"account_id":"acc-1","category":"Food","amount":"12.50","type":"expenses","occurred_at":"2024-06-15"}`
	rec := doRequest(s, http.MethodPost, "/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var resp transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AmountCents != 1250 {
		t.Errorf("AmountCents = %d, want 1250", resp.AmountCents)
	}
	if len(store.txs) != 1 {
		t.Errorf("store has %d transactions, want 1", len(store.txs))
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"bad amount", `{"account_id":"a","category":"Food","amount":"abc","type":"expenses","occurred_at":"2024-06-15"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"account_id":"a","category":"Food","amount":"10","type":"expenses","occurred_at":"15/06/2024"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"account_id":"a","category":"Food","amount":"10","type":"transfer","occurred_at":"2024-06-15"}`, http.StatusUnprocessableEntity},
		{"missing category", `{"account_id":"a","category":"  ","amount":"10","type":"expenses","occurred_at":"2024-06-15"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/transactions", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestReportMaterializesBeforeAggregating(t *testing.T) {
	store := &fakeStore{}
	now := time.Now()
	m := &fakeMaterializer{
		store: store,
		staged: []core.Transaction{{
			ID: "gen-1", AccountID: "acc-1", Category: "Rent",
			Amount: core.Money{Cents: 90000}, Type: core.Expenses,
			OccurredAt: now, CreatedAt: now,
		}},
	}
	s := newTestServer(t, store, m)

	rec := doRequest(s, http.MethodGet, "/report?account_id=acc-1&period=currentMonth", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if m.calls != 1 {
		t.Errorf("materializer calls = %d, want 1", m.calls)
	}
	if resp.Materialized != 1 {
		t.Errorf("Materialized = %d, want 1", resp.Materialized)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Name != "Rent" {
		t.Fatalf("groups = %+v, want single Rent group", resp.Groups)
	}
	if resp.GrandTotalCents != 90000 {
		t.Errorf("GrandTotalCents = %d, want 90000", resp.GrandTotalCents)
	}
}

func TestReportUnsetCustomPeriod(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{{
		ID: "tx-1", AccountID: "acc-1", Category: "Food",
		Amount: core.Money{Cents: 1000}, Type: core.Expenses,
		OccurredAt: time.Now(),
	}}}
	s := newTestServer(t, store, nil)

	// Custom period without dates means the user has not picked them
	// yet; the report must be empty, not all-time.
	rec := doRequest(s, http.MethodGet, "/report?account_id=acc-1&period=custom", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Groups) != 0 {
		t.Errorf("groups = %+v, want empty", resp.Groups)
	}
	if resp.GrandTotalCents != 0 {
		t.Errorf("GrandTotalCents = %d, want 0", resp.GrandTotalCents)
	}
}

func TestReportInvalidPeriod(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, nil)

	rec := doRequest(s, http.MethodGet, "/report?account_id=acc-1&period=fortnight", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReportCacheInvalidatedOnWrite(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store, nil)

	rec := doRequest(s, http.MethodGet, "/report?account_id=acc-1&period=allTime", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := `{"account_id":"acc-1","category":"Food","amount":"20.00","type":"expenses","occurred_at":"2024-06-15"}`
	if rec := doRequest(s, http.MethodPost, "/transactions", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/report?account_id=acc-1&period=allTime", "")
	var resp reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.GrandTotalCents != 2000 {
		t.Errorf("GrandTotalCents after write = %d, want 2000 (stale cache?)", resp.GrandTotalCents)
	}
}

func TestCategoryPickerOrder(t *testing.T) {
	store := &fakeStore{cats: []core.Category{
		{ID: "c1", AccountID: "acc-1", Name: "Transport", Type: core.Expenses},
		{ID: "c2", AccountID: "acc-1", Name: core.Uncategorized, Type: core.Expenses},
		{ID: "c3", AccountID: "acc-1", Name: "Groceries", Type: core.Expenses},
	}}
	s := newTestServer(t, store, nil)

	rec := doRequest(s, http.MethodGet, "/categories/picker?account_id=acc-1&type=expenses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{core.Uncategorized, "Groceries", "Transport"}
	if len(resp) != len(want) {
		t.Fatalf("got %d categories, want %d", len(resp), len(want))
	}
	for i, name := range want {
		if resp[i].Name != name {
			t.Errorf("picker[%d] = %q, want %q", i, resp[i].Name, name)
		}
	}
}

func TestSelectedAccountFallback(t *testing.T) {
	store := &fakeStore{accs: []core.Account{
		{ID: "acc-1", Name: "Checking"},
		{ID: "acc-2", Name: "Savings"},
	}}
	s := newTestServer(t, store, nil)

	// Stale stored id falls back to the first account.
	rec := doRequest(s, http.MethodGet, "/accounts/selected?stored_id=deleted", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "acc-1" {
		t.Errorf("selected account = %q, want acc-1", resp.ID)
	}
}

func TestAccountBalance(t *testing.T) {
	store := &fakeStore{
		accs: []core.Account{{ID: "acc-1", Name: "Checking", InitialBalance: core.Money{Cents: 10000}, Currency: "EUR"}},
		txs: []core.Transaction{
			{ID: "t1", AccountID: "acc-1", Category: "Salary", Amount: core.Money{Cents: 5000}, Type: core.Income, OccurredAt: time.Now()},
			{ID: "t2", AccountID: "acc-1", Category: "Food", Amount: core.Money{Cents: 2000}, Type: core.Expenses, OccurredAt: time.Now()},
		},
	}
	s := newTestServer(t, store, nil)

	rec := doRequest(s, http.MethodGet, "/accounts/acc-1/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BalanceCents != 13000 {
		t.Errorf("BalanceCents = %d, want 13000", resp.BalanceCents)
	}
}

func TestTemplateLifecycle(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store, nil)

	body := `{"account_id":"acc-1","name":"Rent","frequency":"monthly","start_date":"2024-01-01","amount":"950.00"}`
	rec := doRequest(s, http.MethodPost, "/templates", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var created templateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !created.Active {
		t.Error("new template should default to active")
	}

	rec = doRequest(s, http.MethodPut, "/templates/"+created.ID, `{"active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var updated templateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Active {
		t.Error("template should be inactive after update")
	}
	if updated.Name != "Rent" {
		t.Errorf("Name = %q, want Rent (partial update must keep fields)", updated.Name)
	}

	rec = doRequest(s, http.MethodDelete, "/templates/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = doRequest(s, http.MethodGet, "/templates/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, nil)

	rec := doRequest(s, http.MethodDelete, "/transactions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
