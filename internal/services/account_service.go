package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// AccountService owns account lifecycle: creation with default
// category seeding, deletion with its cascade, and the session's
// selected-account resolution.
type AccountService struct {
	storage *storage.SQLiteRepository
}

func NewAccountService(storage *storage.SQLiteRepository) *AccountService {
	return &AccountService{storage: storage}
}

// CreateAccount persists a new account and seeds its default
// categories.
func (s *AccountService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	if err := s.storage.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	if err := s.EnsureDefaultCategories(ctx, &a); err != nil {
		// The account exists; seeding retries on next use
		slog.ErrorContext(ctx, "Failed to seed default categories",
			"account_id", a.ID, "error", err)
	}

	return a, nil
}

// EnsureDefaultCategories seeds the default category set, including
// the Uncategorized sentinel per type, exactly once per account.
func (s *AccountService) EnsureDefaultCategories(ctx context.Context, a *core.Account) error {
	if a.CategoriesSeeded {
		return nil
	}

	var cats []core.Category
	for _, typ := range []core.TransactionType{core.Income, core.Expenses} {
		cats = append(cats, core.DefaultCategories(a.ID, typ)...)
	}
	for i := range cats {
		cats[i].ID = uuid.NewString()
	}

	if err := s.storage.InsertCategories(ctx, cats); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	if err := s.storage.MarkCategoriesSeeded(ctx, a.ID); err != nil {
		return fmt.Errorf("mark seeded: %w", err)
	}
	a.CategoriesSeeded = true

	slog.InfoContext(ctx, "Seeded default categories",
		"account_id", a.ID, "count", len(cats))
	return nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.storage.ListAccounts(ctx)
}

// DeleteAccount removes the account; its transactions, categories, and
// templates go with it.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	return s.storage.DeleteAccount(ctx, id)
}

// ResolveSelected loads all accounts and maps the session's stored id
// to one of them, falling back to the first account when the id is
// stale.
func (s *AccountService) ResolveSelected(ctx context.Context, storedID string) (*core.Account, error) {
	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return core.ResolveSelectedAccount(accounts, storedID), nil
}
