package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-digitizer/internal/categorize"
	"github.com/dvloznov/statement-digitizer/internal/config"
	"github.com/dvloznov/statement-digitizer/internal/export"
	"github.com/dvloznov/statement-digitizer/internal/logger"
	"github.com/dvloznov/statement-digitizer/internal/store"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "categorize":
		runCategorize(log)
	case "export":
		runExport(log)
	case "categories":
		runCategories(log)
	case "rules":
		runRules(log)
	case "balance":
		runBalance(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Digitizer CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  categorize  Auto-categorize uncategorized transactions from rules and history")
	fmt.Println("  export      Export transactions as CSV")
	fmt.Println("  categories  Manage categories (list, add, delete, rename)")
	fmt.Println("  rules       Manage keyword rules (list, add, delete)")
	fmt.Println("  balance     Get or set the starting balance")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openStore loads config and opens the database, honoring an optional -db
// override already parsed into dbPath.
func openStore(log zerolog.Logger, dbPath string) *store.Store {
	cfg := config.Load(log)
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Could not open database")
	}
	return s
}

func runCategorize(log zerolog.Logger) {
	fs := flag.NewFlagSet("categorize", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	fs.Parse(os.Args[2:])

	s := openStore(log, *dbPath)
	defer s.Close()
	ctx := logger.WithContext(context.Background(), log)

	changed, err := categorize.NewEngine(s).ApplyAutoCategorization(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Auto-categorization failed")
	}

	remaining, err := s.ListUncategorized(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not list uncategorized transactions")
	}
	fmt.Printf("Categorized %d transactions; %d remain uncategorized.\n", changed, len(remaining))
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	outPath := fs.String("out", "", "Output file (defaults to stdout)")
	withBalance := fs.Bool("balance", false, "Include a running balance column")
	summary := fs.Bool("summary", false, "Print per-category totals instead of CSV")
	fs.Parse(os.Args[2:])

	s := openStore(log, *dbPath)
	defer s.Close()
	ctx := context.Background()

	txs, err := s.ListAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not list transactions")
	}

	if *summary {
		for _, ct := range export.Summary(txs) {
			fmt.Printf("%-24s %12.2f\n", ct.Category, ct.Total)
		}
		return
	}

	opts := export.Options{RunningBalance: *withBalance}
	if *withBalance {
		opts.StartingBalance, err = s.StartingBalance(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read starting balance")
		}
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *outPath).Msg("Could not create output file")
		}
		defer f.Close()
		out = f
	}

	if err := export.Write(out, txs, opts); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	if *outPath != "" {
		fmt.Printf("Exported %d transactions to %s\n", len(txs), *outPath)
	}
}

func runCategories(log zerolog.Logger) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	add := fs.String("add", "", "Add a category with this name")
	del := fs.String("delete", "", "Delete the category with this name")
	renameID := fs.Int64("rename-id", 0, "ID of the category to rename (use with -to)")
	renameTo := fs.String("to", "", "New name for the category being renamed")
	fs.Parse(os.Args[2:])

	s := openStore(log, *dbPath)
	defer s.Close()
	ctx := context.Background()

	switch {
	case *add != "":
		id, err := s.AddCategory(ctx, *add)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not add category")
		}
		fmt.Printf("Added category %q (id %d).\n", *add, id)
	case *del != "":
		if err := s.DeleteCategory(ctx, *del); err != nil {
			log.Fatal().Err(err).Msg("Could not delete category")
		}
		fmt.Printf("Deleted category %q.\n", *del)
	case *renameID != 0:
		if *renameTo == "" {
			log.Fatal().Msg("Error: -to is required with -rename-id")
		}
		if err := s.RenameCategory(ctx, *renameID, *renameTo); err != nil {
			log.Fatal().Err(err).Msg("Could not rename category")
		}
		fmt.Printf("Renamed category %d to %q.\n", *renameID, *renameTo)
	default:
		categories, err := s.ListCategories(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not list categories")
		}
		for _, c := range categories {
			fmt.Printf("%4d  %s\n", c.ID, c.Name)
		}
	}
}

func runRules(log zerolog.Logger) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	keyword := fs.String("add", "", "Add a rule for this keyword (use with -category)")
	category := fs.String("category", "", "Category the new rule assigns")
	del := fs.Int64("delete", 0, "Delete the rule with this id")
	fs.Parse(os.Args[2:])

	s := openStore(log, *dbPath)
	defer s.Close()
	ctx := context.Background()

	switch {
	case *keyword != "":
		if *category == "" {
			log.Fatal().Msg("Error: -category is required with -add")
		}
		id, err := s.AddRule(ctx, *keyword, *category)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not add rule")
		}
		fmt.Printf("Added rule %d: %q -> %s\n", id, *keyword, *category)
	case *del != 0:
		if err := s.DeleteRule(ctx, *del); err != nil {
			log.Fatal().Err(err).Msg("Could not delete rule")
		}
		fmt.Printf("Deleted rule %d.\n", *del)
	default:
		rules, err := s.ListRules(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not list rules")
		}
		for _, r := range rules {
			fmt.Printf("%4d  %-20q -> %s\n", r.ID, r.Keyword, r.CategoryName)
		}
	}
}

func runBalance(log zerolog.Logger) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite database path")
	fs.Parse(os.Args[2:])

	s := openStore(log, *dbPath)
	defer s.Close()
	ctx := context.Background()

	if fs.NArg() > 0 {
		v, err := strconv.ParseFloat(fs.Arg(0), 64)
		if err != nil {
			log.Fatal().Str("value", fs.Arg(0)).Msg("Starting balance must be a number")
		}
		if err := s.SetStartingBalance(ctx, v); err != nil {
			log.Fatal().Err(err).Msg("Could not set starting balance")
		}
		fmt.Printf("Starting balance set to %.2f\n", v)
		return
	}

	v, err := s.StartingBalance(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read starting balance")
	}
	fmt.Printf("Starting balance: %.2f\n", v)
}
