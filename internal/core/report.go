package core

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type (
	// CategoryGroup is one row of a period report: every transaction
	// of one category summed up.
	CategoryGroup struct {
		Name    string
		Total   Money
		Count   int
		Percent float64
	}

	// Report is the aggregated view of an account's transactions for
	// one period and polarity.
	Report struct {
		Groups     []CategoryGroup
		GrandTotal Money
	}
)

// BuildReport filters transactions to the given account, type, and
// period window, groups them by category name, and returns the groups
// sorted by total descending with an alphabetical tie-break. Empty
// input is a valid, displayable state, not an error.
//
// An unset custom period yields an empty report: the user has picked
// "custom" but no dates yet.
func BuildReport(txs []Transaction, accountID string, p Period, t TransactionType, now time.Time) Report {
	var report Report
	if p.Unset() {
		return report
	}
	window := p.Range(now)

	totals := make(map[string]*CategoryGroup)
	for _, tx := range txs {
		if !matches(tx, accountID, t, window) {
			continue
		}
		g, ok := totals[tx.Category]
		if !ok {
			g = &CategoryGroup{Name: tx.Category}
			totals[tx.Category] = g
		}
		g.Total.Cents += tx.Amount.Cents
		g.Count++
	}

	for _, g := range totals {
		report.Groups = append(report.Groups, *g)
		report.GrandTotal.Cents += g.Total.Cents
	}
	SortGroupsByTotal(report.Groups)

	// Substitute 1 for an all-zero grand total so the percentage math
	// never divides by zero.
	denom := report.GrandTotal.Cents
	if denom == 0 {
		denom = 1
	}
	for i := range report.Groups {
		report.Groups[i].Percent = float64(report.Groups[i].Total.Cents) / float64(denom) * 100
	}
	return report
}

// CategoryDetail returns the drill-down list for one report group: the
// matching transactions of a single category, newest first.
func CategoryDetail(txs []Transaction, accountID string, p Period, t TransactionType, category string, now time.Time) []Transaction {
	if p.Unset() {
		return nil
	}
	window := p.Range(now)

	var out []Transaction
	for _, tx := range txs {
		if tx.Category != category || !matches(tx, accountID, t, window) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

// SortGroupsByTotal orders report groups by total descending; groups
// with exactly equal totals fall back to collated name order. This is
// the statistics-view contract; the category picker uses
// SortCategoriesForPicker instead. The two orderings stay separate on
// purpose.
func SortGroupsByTotal(groups []CategoryGroup) {
	c := collate.New(language.Und)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Total.Cents != groups[j].Total.Cents {
			return groups[i].Total.Cents > groups[j].Total.Cents
		}
		return c.CompareString(groups[i].Name, groups[j].Name) < 0
	})
}

// SortCategoriesForPicker orders the category badge list for entry
// forms: the Uncategorized sentinel always comes first, the rest is
// alphabetical.
func SortCategoriesForPicker(cats []Category) {
	c := collate.New(language.Und)
	sort.SliceStable(cats, func(i, j int) bool {
		if (cats[i].Name == Uncategorized) != (cats[j].Name == Uncategorized) {
			return cats[i].Name == Uncategorized
		}
		return c.CompareString(cats[i].Name, cats[j].Name) < 0
	})
}

func matches(tx Transaction, accountID string, t TransactionType, window *TimeRange) bool {
	if accountID != "" && tx.AccountID != accountID {
		return false
	}
	if tx.Type != t {
		return false
	}
	if window != nil && !window.Contains(tx.OccurredAt) {
		return false
	}
	return true
}
