package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobreach/internal/history"
	"github.com/amishk599/jobreach/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the processing ledger (TUI)",
	Long:  "Opens a split view of every recorded application, email and prospect.",
	RunE:  runHistory,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Ledger subcommands",
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check <key>",
	Short: "Report whether a target was already processed",
	Long:  "The key is a job title, a company name or a URL. Matching is exact.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerCheck,
}

var ledgerImportCmd = &cobra.Command{
	Use:   "import <json-ledger>",
	Short: "Copy a JSON ledger into the SQLite ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerImport,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerCheckCmd)
	ledgerCmd.AddCommand(ledgerImportCmd)
}

func openLedger() (ledger.Ledger, func() error) {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)
	l, closer, err := ledger.Open(cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		logger.Error("failed to open ledger", "path", cfg.Ledger.Path, "error", err)
		os.Exit(1)
	}
	return l, closer
}

func runHistory(cmd *cobra.Command, args []string) error {
	l, closer := openLedger()
	defer closer()

	entries, err := l.Load()
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("Ledger is empty. Run `jobreach run --mode ...` first.")
		return nil
	}
	return history.Run(entries)
}

func runLedgerCheck(cmd *cobra.Command, args []string) error {
	l, closer := openLedger()
	defer closer()

	key := args[0]
	dup, err := l.IsDuplicate(key)
	if err != nil {
		return fmt.Errorf("checking ledger: %w", err)
	}
	if !dup {
		fmt.Printf("%q has not been processed\n", key)
		return nil
	}

	entries, err := l.Load()
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}
	fmt.Printf("%q was already processed:\n", key)
	for _, e := range entries {
		if e.Matches(key) {
			fmt.Printf("  %s  %-10s %-9s %s\n", e.Date, e.Type, e.ActionTaken, e.Target)
		}
	}
	return nil
}

func runLedgerImport(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)
	if cfg.Ledger.Backend != ledger.BackendSQLite {
		printErr("ledger.backend is %q; set it to \"sqlite\" to import", cfg.Ledger.Backend)
		os.Exit(1)
	}

	src := args[0]
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if mustAbs(src) == mustAbs(cfg.Ledger.Path) {
		return fmt.Errorf("source and destination are the same file")
	}

	db, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("opening sqlite ledger: %w", err)
	}
	defer db.Close()

	n, err := db.ImportJSON(ledger.NewJSONLedger(src))
	if err != nil {
		return fmt.Errorf("importing %s: %w", src, err)
	}
	logger.Info("ledger imported", "entries", n, "from", src, "to", cfg.Ledger.Path)
	return nil
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
