package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List configured job boards and company directories",
	Long:  "Reads the config and prints the job boards and prospecting sources it defines.",
	RunE:  runBoards,
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}

func runBoards(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	fmt.Printf("%-25s %-12s %-25s %s\n", "Company", "ATS", "Board", "Status")
	fmt.Println(strings.Repeat("─", 72))

	enabled, disabled := 0, 0
	for _, b := range cfg.Search.Boards {
		status := "enabled"
		if !b.Enabled {
			status = "disabled"
			disabled++
		} else {
			enabled++
		}
		fmt.Printf("%-25s %-12s %-25s %s\n", b.Name, b.ATS, b.BoardToken, status)
	}
	fmt.Printf("\nTotal: %d boards (%d enabled, %d disabled)\n", len(cfg.Search.Boards), enabled, disabled)

	if len(cfg.Prospect.Directories) == 0 && cfg.Prospect.SeedFile == "" {
		return nil
	}
	fmt.Println("\nProspecting sources:")
	for _, d := range cfg.Prospect.Directories {
		fmt.Printf("  directory  %s\n", d.URL)
	}
	if cfg.Prospect.SeedFile != "" {
		fmt.Printf("  seed file  %s\n", cfg.Prospect.SeedFile)
	}
	return nil
}
