package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the single persistent store: accounts,
// transactions, categories, and recurring templates.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- accounts ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, initial_balance_cents, currency, categories_seeded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.InitialBalance.Cents, a.Currency, a.CategoriesSeeded, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account saved", "id", a.ID, "name", a.Name)
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, initial_balance_cents, currency, categories_seeded, created_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, initial_balance_cents, currency, categories_seeded, created_at
		FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes an account and, through the cascade
// constraints, its transactions, categories, and templates.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkCategoriesSeeded(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET categories_seeded = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark categories seeded: %w", err)
	}
	return nil
}

// --- transactions ---

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, category, amount_cents, type, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.Category, tx.Amount.Cents, string(tx.Type), tx.OccurredAt, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"account_id", tx.AccountID,
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents,
		"type", tx.Type)
	return nil
}

// InsertTransactions writes a batch of transactions in a single
// database transaction. The materializer relies on this: a per-account
// run either lands whole or not at all.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, account_id, category, amount_cents, type, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.AccountID, tx.Category, tx.Amount.Cents, string(tx.Type), tx.OccurredAt, tx.CreatedAt); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}

	slog.InfoContext(ctx, "Transaction batch saved", "count", len(txs))
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, category, amount_cents, type, occurred_at, created_at
		FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// ListTransactions returns every transaction of one account, or of all
// accounts when accountID is empty.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	query := `
		SELECT id, account_id, category, amount_cents, type, occurred_at, created_at
		FROM transactions`
	args := []any{}
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY occurred_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPendingSyncTransactions returns transactions not yet mirrored to
// the cloud target, oldest first.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, category, amount_cents, type, occurred_at, created_at
		FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'synced', synced_at = ? WHERE id = ?`,
		time.Now(), id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}

	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

// --- categories ---

func (r *SQLiteRepository) InsertCategories(ctx context.Context, cats []core.Category) error {
	if len(cats) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin category insert: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO categories (id, account_id, name, type, icon)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id, name, type) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare category insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cats {
		if _, err := stmt.ExecContext(ctx, c.ID, c.AccountID, c.Name, string(c.Type), c.Icon); err != nil {
			return fmt.Errorf("insert category %q: %w", c.Name, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit category insert: %w", err)
	}
	return nil
}

// ListCategories returns an account's categories for one type, or for
// both types when typ is empty.
func (r *SQLiteRepository) ListCategories(ctx context.Context, accountID string, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT id, account_id, name, type, icon FROM categories WHERE account_id = ?`
	args := []any{accountID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		var t string
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &t, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(t)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- recurring templates ---

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, rt core.RecurringTemplate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_templates (id, account_id, name, frequency, start_date, end_date, amount_cents, comment, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.AccountID, rt.Name, string(rt.Frequency), rt.StartDate, nullableTime(rt.EndDate),
		rt.Amount.Cents, rt.Comment, rt.Active)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template saved",
		"id", rt.ID, "name", rt.Name, "frequency", rt.Frequency)
	return nil
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, frequency, start_date, end_date, amount_cents, comment, active
		FROM recurring_templates WHERE id = ?`, id)
	return scanTemplate(row)
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context, accountID string) ([]core.RecurringTemplate, error) {
	return r.listTemplates(ctx, accountID, false)
}

// ListActiveTemplates returns only templates whose generation is not
// suspended.
func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context, accountID string) ([]core.RecurringTemplate, error) {
	return r.listTemplates(ctx, accountID, true)
}

func (r *SQLiteRepository) listTemplates(ctx context.Context, accountID string, activeOnly bool) ([]core.RecurringTemplate, error) {
	query := `
		SELECT id, account_id, name, frequency, start_date, end_date, amount_cents, comment, active
		FROM recurring_templates WHERE account_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringTemplate
	for rows.Next() {
		rt, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, rt)
	}
	return templates, rows.Err()
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, rt core.RecurringTemplate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_templates
		SET name = ?, frequency = ?, start_date = ?, end_date = ?, amount_cents = ?, comment = ?, active = ?
		WHERE id = ?`,
		rt.Name, string(rt.Frequency), rt.StartDate, nullableTime(rt.EndDate),
		rt.Amount.Cents, rt.Comment, rt.Active, rt.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.Name, &a.InitialBalance.Cents, &a.Currency, &a.CategoriesSeeded, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var tx core.Transaction
	var t string
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Category, &tx.Amount.Cents, &t, &tx.OccurredAt, &tx.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tx, ErrNotFound
	}
	if err != nil {
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Type = core.TransactionType(t)
	return tx, nil
}

func scanTemplate(row rowScanner) (core.RecurringTemplate, error) {
	var rt core.RecurringTemplate
	var freq string
	var end sql.NullTime
	err := row.Scan(&rt.ID, &rt.AccountID, &rt.Name, &freq, &rt.StartDate, &end, &rt.Amount.Cents, &rt.Comment, &rt.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return rt, ErrNotFound
	}
	if err != nil {
		return rt, fmt.Errorf("scan template: %w", err)
	}
	rt.Frequency = core.Frequency(freq)
	if end.Valid {
		rt.EndDate = end.Time
	}
	return rt, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
