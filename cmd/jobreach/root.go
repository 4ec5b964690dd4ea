package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/amishk599/jobreach/internal/config"
	"github.com/amishk599/jobreach/internal/notifier"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobreach",
	Short: "Job search on autopilot",
	Long: "jobreach scores job postings and companies against your profile, then applies,\n" +
		"sends cold emails with a tailored CV, or prospects companies that are not hiring.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBREACH_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: --config > JOBREACH_CONFIG > ./config.yaml. The default file may
// be missing, in which case environment defaults apply.
func loadConfig(flagValue string) (*config.Config, error) {
	path, explicit := config.ResolvePath(flagValue)
	return config.Load(path, explicit)
}

// mustLoadConfig exits with status 1 on a configuration error.
func mustLoadConfig(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) notifier.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Debug("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
