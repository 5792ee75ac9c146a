// Package export renders persisted transactions as CSV and computes
// per-category totals for display.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/dvloznov/statement-digitizer/internal/store"
)

// Options controls the CSV shape.
type Options struct {
	// RunningBalance appends a balance column rolled forward row by row
	// from StartingBalance.
	RunningBalance bool

	// StartingBalance is the balance before the first exported row. Only
	// used when RunningBalance is set.
	StartingBalance float64
}

// Write renders the transactions as CSV in the order given. Amounts are
// formatted with two decimals.
func Write(w io.Writer, txs []store.Transaction, opts Options) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "date", "description", "amount", "category", "source_file", "project_name"}
	if opts.RunningBalance {
		header = append(header, "balance")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	balance := opts.StartingBalance
	for _, t := range txs {
		row := []string{
			fmt.Sprintf("%d", t.ID),
			t.Date,
			t.Description,
			fmt.Sprintf("%.2f", t.Amount),
			t.Category,
			t.SourceFile,
			t.ProjectName,
		}
		if opts.RunningBalance {
			balance += t.Amount
			row = append(row, fmt.Sprintf("%.2f", balance))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write row %d: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

// CategoryTotal is one category's summed amount.
type CategoryTotal struct {
	Category string
	Total    float64
}

// Summary sums amounts per category, returned in category name order.
func Summary(txs []store.Transaction) []CategoryTotal {
	totals := make(map[string]float64)
	for _, t := range txs {
		totals[t.Category] += t.Amount
	}

	out := make([]CategoryTotal, 0, len(totals))
	for category, total := range totals {
		out = append(out, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
