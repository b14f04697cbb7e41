package cli

import (
	"fmt"
	"os"

	"github.com/marisel-vam/ai-inbox-zero/internal/api/middleware"
	"github.com/marisel-vam/ai-inbox-zero/internal/config"
	"github.com/marisel-vam/ai-inbox-zero/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	log           *zap.SugaredLogger
	apiKeyManager *middleware.APIKeyManager
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inbox-zero",
	Short: "AI inbox triage service",
	Long: `Inbox Zero scans an email inbox, classifies each message with an
AI provider (falling back to local heuristics), drafts replies, and runs
autopilot rules against the results.

Examples:
  inbox-zero scan                # scan and classify unread mail
  inbox-zero automate            # run autopilot rules on processed mail
  inbox-zero analytics --days 7  # show daily processing counters
  inbox-zero key show            # show the current API key
  inbox-zero key reset           # rotate the API key`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	var err error
	log, err = logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(automateCmd)
	rootCmd.AddCommand(analyticsCmd)
}
