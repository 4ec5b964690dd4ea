package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobreach/internal/llm"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "LLM provider subcommands",
}

var providersTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a tiny prompt to every configured provider",
	Long:  "Calls each provider directly, bypassing failover, and reports latency or the error.",
	RunE:  runProvidersTest,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersTestCmd)
}

func runProvidersTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := llm.Build(ctx, cfg.LLM.Providers, &http.Client{Timeout: cfg.LLM.Timeout})
	if err != nil {
		logger.Error("no usable provider", "error", err)
		os.Exit(1)
	}

	req := llm.Request{
		Messages:  []llm.Message{llm.User("Reply with the single word OK.")},
		MaxTokens: 5,
	}

	failed := 0
	fmt.Printf("%-20s %-8s %s\n", "Provider", "Status", "Detail")
	fmt.Println(strings.Repeat("─", 60))
	for i := 0; i < registry.Len(); i++ {
		p := registry.At(i)
		start := time.Now()
		reply, err := p.Complete(ctx, req)
		if err != nil {
			failed++
			fmt.Printf("%-20s %-8s %v\n", p.Name(), "error", err)
			continue
		}
		fmt.Printf("%-20s %-8s %s in %s\n", p.Name(), "ok", strings.TrimSpace(reply), time.Since(start).Round(time.Millisecond))
	}

	fmt.Printf("\n%d of %d providers reachable\n", registry.Len()-failed, registry.Len())
	return nil
}
