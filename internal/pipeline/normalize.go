package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-digitizer/internal/extract"
	"github.com/dvloznov/statement-digitizer/internal/store"
)

// Normalize maps an extracted candidate onto an unpersisted transaction. The
// withdrawal/deposit pair collapses into one signed amount (deposit minus
// withdrawal); the category defaults to the sentinel and the project is left
// empty.
func Normalize(c extract.Candidate) store.Transaction {
	return store.Transaction{
		Date:        c.Date,
		Description: c.Description,
		Amount:      coerceNumber(c.Deposit) - coerceNumber(c.Withdrawal),
		Category:    store.UncategorizedName,
		SourceFile:  c.SourceFile,
	}
}

// coerceNumber turns a raw JSON value into a float64. Anything that is not a
// number - absent fields, nulls, non-numeric strings - coerces to 0 rather
// than failing; the model cannot be trusted to honor the field shape.
func coerceNumber(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
