package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/app"
	"github.com/marisel-vam/ai-inbox-zero/internal/automation"
	"github.com/spf13/cobra"
)

var automateDryRun bool

// automateCmd runs autopilot rules against processed messages
var automateCmd = &cobra.Command{
	Use:   "automate",
	Short: "Run autopilot rules on processed mail",
	Long: `Evaluate the configured rules (archive newsletters, delete spam,
auto-reply to important mail) against stored classification results and
apply the first matching action per message.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := app.Build(ctx, db, cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		rules := automation.Config{
			ArchiveNewsletters: cfg.ArchiveNewsletters,
			DeleteSpam:         cfg.DeleteSpam,
			AutoReplyImportant: cfg.AutoReplyImportant,
			CautionMode:        cfg.CautionMode || automateDryRun,
		}

		if automateDryRun {
			fmt.Println("Caution mode: replies will not be sent.")
		}

		result, err := deps.Engine.Run(ctx, rules)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: automation failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Archived: %d  Deleted: %d  Replied: %d  Skipped: %d  Failed: %d\n",
			result.Archived, result.Deleted, result.Replied, result.Skipped, result.Failed)
		fmt.Printf("Elapsed:  %s\n", result.Elapsed.Round(time.Millisecond))

		if len(result.Actions) > 0 {
			fmt.Println("\nActions:")
			for _, action := range result.Actions {
				fmt.Printf("  %-10s %-20s %s\n", action.Action, action.MessageID, action.Reason)
			}
		}
	},
}

func init() {
	automateCmd.Flags().BoolVar(&automateDryRun, "caution", false, "evaluate rules but never send replies")
}
