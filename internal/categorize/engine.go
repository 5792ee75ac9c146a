// Package categorize assigns categories to transactions. A keyword rule pass
// runs first; when no rule matches, the engine falls back to a majority vote
// over previously categorized transactions with the exact same description.
package categorize

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-digitizer/internal/store"
)

// Store is the slice of the persistence layer the engine needs. The engine
// only ever mutates the category column of existing rows; it never creates or
// deletes transactions.
type Store interface {
	ListRules(ctx context.Context) ([]store.Rule, error)
	ListAll(ctx context.Context) ([]store.Transaction, error)
	HistoryCategory(ctx context.Context, description string) (string, error)
	UpdateCategoriesBatch(ctx context.Context, updates []store.CategoryUpdate) (int, error)
}

// Prediction is the outcome of one categorization attempt. The zero value
// means no signal: no rule matched and no history exists.
type Prediction struct {
	Category    string
	Explanation string
}

// Engine predicts categories from rules and history.
type Engine struct {
	store Store
}

// NewEngine creates an engine over the given store.
func NewEngine(s Store) *Engine {
	return &Engine{store: s}
}

// Predict returns the category for a description, trying rules first and
// history second. Rules are evaluated in keyword-lexicographic order so that
// overlapping keywords resolve the same way every run.
func (e *Engine) Predict(ctx context.Context, description string) (Prediction, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return Prediction{}, fmt.Errorf("categorize: list rules: %w", err)
	}

	if p, ok := matchRule(rules, description); ok {
		return p, nil
	}

	// History matches the exact description, case-sensitive and untrimmed.
	category, err := e.store.HistoryCategory(ctx, description)
	if err != nil {
		return Prediction{}, fmt.Errorf("categorize: history lookup: %w", err)
	}
	if category != "" {
		return Prediction{Category: category, Explanation: "History"}, nil
	}

	return Prediction{}, nil
}

// ApplyAutoCategorization predicts a category for every uncategorized
// transaction and applies all resulting updates in one batch write. All
// predictions run against a snapshot taken before any update: a transaction
// categorized earlier in the pass never feeds the history lookup of a later
// one, so results do not depend on row order.
func (e *Engine) ApplyAutoCategorization(ctx context.Context) (int, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("categorize: list rules: %w", err)
	}
	snapshot, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("categorize: snapshot transactions: %w", err)
	}

	history := historyFromSnapshot(snapshot)

	var updates []store.CategoryUpdate
	for _, tx := range snapshot {
		if tx.Category != store.UncategorizedName {
			continue
		}
		p, ok := predictFromSnapshot(rules, history, tx.Description)
		if !ok {
			continue
		}
		updates = append(updates, store.CategoryUpdate{ID: tx.ID, Category: p.Category})
	}

	changed, err := e.store.UpdateCategoriesBatch(ctx, updates)
	if err != nil {
		return 0, fmt.Errorf("categorize: apply updates: %w", err)
	}
	return changed, nil
}

// matchRule returns the first rule (in the given order) whose keyword occurs
// as a case-insensitive substring of the trimmed description.
func matchRule(rules []store.Rule, description string) (Prediction, bool) {
	haystack := strings.ToLower(strings.TrimSpace(description))
	for _, r := range rules {
		if strings.Contains(haystack, strings.ToLower(r.Keyword)) {
			return Prediction{
				Category:    r.CategoryName,
				Explanation: "Rule: " + r.Keyword,
			}, true
		}
	}
	return Prediction{}, false
}

// historyFromSnapshot counts categories per exact description, skipping
// uncategorized rows.
func historyFromSnapshot(txs []store.Transaction) map[string]map[string]int {
	history := make(map[string]map[string]int)
	for _, tx := range txs {
		if tx.Category == store.UncategorizedName {
			continue
		}
		counts := history[tx.Description]
		if counts == nil {
			counts = make(map[string]int)
			history[tx.Description] = counts
		}
		counts[tx.Category]++
	}
	return history
}

// predictFromSnapshot mirrors Predict but resolves history against the
// in-memory snapshot instead of the live store. Ties break by category name
// ascending, matching the store's history query.
func predictFromSnapshot(rules []store.Rule, history map[string]map[string]int, description string) (Prediction, bool) {
	if p, ok := matchRule(rules, description); ok {
		return p, true
	}

	counts := history[description]
	if len(counts) == 0 {
		return Prediction{}, false
	}

	best := ""
	bestCount := 0
	for category, n := range counts {
		if n > bestCount || (n == bestCount && category < best) {
			best = category
			bestCount = n
		}
	}
	return Prediction{Category: best, Explanation: "History"}, true
}
