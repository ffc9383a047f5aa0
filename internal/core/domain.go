package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   TransactionType = "income"
	Expenses TransactionType = "expenses"
)

const (
	None       Frequency = "none"
	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Biweekly   Frequency = "biweekly"
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
)

// Uncategorized is the reserved category name that exists for every
// account and type after seeding.
const Uncategorized = "Uncategorized"

type (
	TransactionType string

	Frequency string

	Account struct {
		ID               string
		Name             string
		InitialBalance   Money
		Currency         string
		CategoriesSeeded bool
		CreatedAt        time.Time
	}

	Transaction struct {
		ID         string
		AccountID  string
		Category   string // denormalized category name, not a foreign key
		Amount     Money  // magnitude; sign is conveyed by Type
		Type       TransactionType
		OccurredAt time.Time
		CreatedAt  time.Time
	}

	Category struct {
		ID        string
		AccountID string
		Name      string
		Type      TransactionType
		Icon      string
	}

	RecurringTemplate struct {
		ID        string
		AccountID string
		Name      string
		Frequency Frequency
		StartDate time.Time
		EndDate   time.Time // zero means open-ended
		Amount    Money
		Comment   string
		Active    bool
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrEmptyName      = errors.New("empty name")
	ErrEmptyCategory  = errors.New("empty category")
	ErrInvalidDate    = errors.New("invalid date")
	ErrEmptyAccountID = errors.New("empty account id")
)

// Valid reports whether the type is one of the two known polarities.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expenses
}

// Normalize maps unrecognized or legacy frequency values to monthly so
// a template with a bad frequency keeps generating on a sane schedule
// instead of failing.
func (f Frequency) Normalize() Frequency {
	switch f {
	case None, Daily, Weekly, Biweekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual:
		return f
	default:
		return Monthly
	}
}

// Next returns the occurrence following t for this frequency, using
// calendar arithmetic: months and years respect month length and leap
// years. None returns t unchanged.
func (f Frequency) Next(t time.Time) time.Time {
	switch f.Normalize() {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Bimonthly:
		return t.AddDate(0, 2, 0)
	case Quarterly:
		return t.AddDate(0, 3, 0)
	case Semiannual:
		return t.AddDate(0, 6, 0)
	case Annual:
		return t.AddDate(1, 0, 0)
	default: // None
		return t
	}
}

func (a Account) Validate() error {
	if len(strings.TrimSpace(a.Name)) == 0 {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("account name too long (max 100 characters)")
	}
	return nil
}

// Balance computes the account balance from its transaction set:
// initial balance plus income minus expenses.
func (a Account) Balance(txs []Transaction) Money {
	cents := a.InitialBalance.Cents
	for _, tx := range txs {
		if tx.AccountID != a.ID {
			continue
		}
		switch tx.Type {
		case Income:
			cents += tx.Amount.Cents
		case Expenses:
			cents -= tx.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

func (tx Transaction) Validate() error {
	if tx.AccountID == "" {
		return ErrEmptyAccountID
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(tx.Category) == "" {
		return ErrEmptyCategory
	}
	if tx.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SameDay reports whether the transaction occurred on the given
// calendar day.
func (tx Transaction) SameDay(day time.Time) bool {
	y1, m1, d1 := tx.OccurredAt.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (c Category) Validate() error {
	if c.AccountID == "" {
		return ErrEmptyAccountID
	}
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if rt.AccountID == "" {
		return ErrEmptyAccountID
	}
	if len(strings.TrimSpace(rt.Name)) == 0 {
		return ErrEmptyName
	}
	if len(rt.Name) > 200 {
		return errors.New("template name too long (max 200 characters)")
	}
	if rt.StartDate.IsZero() {
		return errors.New("invalid start date: " + ErrInvalidDate.Error())
	}
	if !rt.EndDate.IsZero() && rt.EndDate.Before(rt.StartDate) {
		return errors.New("end date must be after start date")
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// DefaultCategories returns the categories seeded into a fresh account
// for the given type. The Uncategorized sentinel is always present.
func DefaultCategories(accountID string, t TransactionType) []Category {
	var names []string
	switch t {
	case Income:
		names = []string{Uncategorized, "Salary", "Gifts", "Interest"}
	default:
		names = []string{Uncategorized, "Groceries", "Housing", "Transport", "Health", "Leisure"}
	}
	cats := make([]Category, len(names))
	for i, name := range names {
		cats[i] = Category{AccountID: accountID, Name: name, Type: t}
	}
	return cats
}

// ResolveSelectedAccount maps the session's stored account id to an
// account. A stale or empty id falls back to the first account, which
// callers rely on after an account deletion. Returns nil when there are
// no accounts at all.
func ResolveSelectedAccount(accounts []Account, storedID string) *Account {
	for i := range accounts {
		if accounts[i].ID == storedID {
			return &accounts[i]
		}
	}
	if len(accounts) > 0 {
		return &accounts[0]
	}
	return nil
}
