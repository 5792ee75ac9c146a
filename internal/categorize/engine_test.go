package categorize

import (
	"context"
	"testing"

	"github.com/dvloznov/statement-digitizer/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTx(t *testing.T, s *store.Store, date, description string, amount float64, category string) {
	t.Helper()
	_, err := s.InsertBatch(context.Background(), []store.Transaction{{
		Date:        date,
		Description: description,
		Amount:      amount,
		Category:    category,
		SourceFile:  "test.jpg",
	}})
	if err != nil {
		t.Fatalf("inserting transaction: %v", err)
	}
}

func TestPredict_RuleBeatsHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.AddRule(ctx, "Uber", "Travel"); err != nil {
		t.Fatalf("adding rule: %v", err)
	}
	// History says Meals, but the rule pass runs first.
	insertTx(t, s, "2024-01-01", "UBER EATS 123", -15, "Meals")
	insertTx(t, s, "2024-01-02", "UBER EATS 123", -18, "Meals")

	e := NewEngine(s)
	p, err := e.Predict(ctx, "UBER EATS 123")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Category != "Travel" {
		t.Errorf("category = %q, want Travel", p.Category)
	}
	if p.Explanation != "Rule: Uber" {
		t.Errorf("explanation = %q, want %q", p.Explanation, "Rule: Uber")
	}
}

func TestPredict_OverlappingRulesResolveInKeywordOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.AddRule(ctx, "Uber", "Travel"); err != nil {
		t.Fatalf("adding rule: %v", err)
	}
	if _, err := s.AddRule(ctx, "Eats", "Meals"); err != nil {
		t.Fatalf("adding rule: %v", err)
	}

	// Both keywords occur in the description; "Eats" sorts before "Uber"
	// so it wins, every run.
	e := NewEngine(s)
	p, err := e.Predict(ctx, "UBER EATS 123")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Category != "Meals" || p.Explanation != "Rule: Eats" {
		t.Errorf("got (%q, %q), want (Meals, Rule: Eats)", p.Category, p.Explanation)
	}
}

func TestPredict_HistoryMajority(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insertTx(t, s, "2024-01-01", "AIRPORT CAFE", -9, "Meals")
	insertTx(t, s, "2024-01-02", "AIRPORT CAFE", -11, "Meals")
	insertTx(t, s, "2024-01-03", "AIRPORT CAFE", -30, "Travel")

	e := NewEngine(s)
	p, err := e.Predict(ctx, "AIRPORT CAFE")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Category != "Meals" || p.Explanation != "History" {
		t.Errorf("got (%q, %q), want (Meals, History)", p.Category, p.Explanation)
	}
}

func TestPredict_NoSignal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	e := NewEngine(s)
	p, err := e.Predict(ctx, "NEVER SEEN BEFORE")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p != (Prediction{}) {
		t.Errorf("got %+v, want zero prediction", p)
	}
}

func TestPredict_HistoryIsExactMatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insertTx(t, s, "2024-01-01", "COFFEE SHOP", -4.5, "Meals")

	e := NewEngine(s)
	p, err := e.Predict(ctx, "coffee shop")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p != (Prediction{}) {
		t.Errorf("case-insensitive history match: got %+v, want zero prediction", p)
	}
}

func TestApplyAutoCategorization(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.AddRule(ctx, "Uber", "Travel"); err != nil {
		t.Fatalf("adding rule: %v", err)
	}
	// History signal for RENT PAYMENT.
	insertTx(t, s, "2023-12-01", "RENT PAYMENT", -1200, "Rent")

	// Three uncategorized rows: one rule-matched, one history-matched, one
	// with no signal at all.
	insertTx(t, s, "2024-01-05", "UBER TRIP HELSINKI", -23, store.UncategorizedName)
	insertTx(t, s, "2024-01-06", "RENT PAYMENT", -1200, store.UncategorizedName)
	insertTx(t, s, "2024-01-07", "MYSTERY VENDOR", -7, store.UncategorizedName)

	e := NewEngine(s)
	changed, err := e.ApplyAutoCategorization(ctx)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	byDesc := map[string]string{}
	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	for _, tx := range all {
		if tx.Category != store.UncategorizedName {
			continue
		}
		byDesc[tx.Description] = tx.Category
	}
	if len(byDesc) != 1 {
		t.Errorf("uncategorized rows after apply: %v, want only MYSTERY VENDOR", byDesc)
	}
	if _, ok := byDesc["MYSTERY VENDOR"]; !ok {
		t.Errorf("MYSTERY VENDOR should remain uncategorized, got %v", byDesc)
	}

	want := map[string]string{
		"UBER TRIP HELSINKI": "Travel",
		"RENT PAYMENT":       "Rent",
	}
	for _, tx := range all {
		if wantCat, ok := want[tx.Description]; ok && tx.Date >= "2024-01-01" {
			if tx.Category != wantCat {
				t.Errorf("%s categorized as %q, want %q", tx.Description, tx.Category, wantCat)
			}
		}
	}

	// Running again changes nothing.
	changed, err = e.ApplyAutoCategorization(ctx)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if changed != 0 {
		t.Errorf("second apply changed %d rows, want 0", changed)
	}
}

func TestApply_SnapshotIsolatesHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.AddRule(ctx, "Acme", "Software"); err != nil {
		t.Fatalf("adding rule: %v", err)
	}

	// Two identical uncategorized rows and no prior history. Both must be
	// resolved against the pre-pass snapshot: the first row's new category
	// never feeds the second row's history lookup mid-pass.
	insertTx(t, s, "2024-02-01", "ACME CORP INV 1", -99, store.UncategorizedName)
	insertTx(t, s, "2024-02-02", "ACME CORP INV 1", -99, store.UncategorizedName)

	e := NewEngine(s)
	changed, err := e.ApplyAutoCategorization(ctx)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}
}

func TestHistoryFromSnapshot_SkipsUncategorized(t *testing.T) {
	history := historyFromSnapshot([]store.Transaction{
		{Description: "COFFEE SHOP", Category: "Meals"},
		{Description: "COFFEE SHOP", Category: store.UncategorizedName},
		{Description: "COFFEE SHOP", Category: "Meals"},
		{Description: "GAS STATION", Category: "Utilities"},
	})

	if got := history["COFFEE SHOP"]["Meals"]; got != 2 {
		t.Errorf("COFFEE SHOP count = %d, want 2", got)
	}
	if _, ok := history["COFFEE SHOP"][store.UncategorizedName]; ok {
		t.Error("uncategorized rows must not count as history")
	}
	if got := history["GAS STATION"]["Utilities"]; got != 1 {
		t.Errorf("GAS STATION count = %d, want 1", got)
	}
}

func TestPredictFromSnapshot_TieBreaksByName(t *testing.T) {
	history := map[string]map[string]int{
		"SPLIT VENDOR": {"Travel": 2, "Meals": 2},
	}

	p, ok := predictFromSnapshot(nil, history, "SPLIT VENDOR")
	if !ok {
		t.Fatal("expected a history prediction")
	}
	if p.Category != "Meals" {
		t.Errorf("category = %q, want the alphabetically first of the tied pair", p.Category)
	}
}
