package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobreach/internal/secrets"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage credentials in the OS keychain",
	Long: "Stored credentials are referenced from the config as \"keyring:<account>\",\n" +
		"for example api_key: keyring:groq.",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store a credential read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretDelete,
}

func init() {
	rootCmd.AddCommand(secretCmd)
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stderr, "Secret for %q: ", args[0])
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading secret: %w", err)
	}
	if err := secrets.Set(args[0], strings.TrimSpace(line)); err != nil {
		return fmt.Errorf("storing secret: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\nstored; reference it as %s%s\n", secrets.Prefix, args[0])
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	if err := secrets.Delete(args[0]); err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
