package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/marisel-vam/ai-inbox-zero/internal/store"
	"github.com/spf13/cobra"
)

var analyticsDays int

// analyticsCmd prints daily processing counters
var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show daily processing counters",
	Run: func(cmd *cobra.Command, args []string) {
		gateway := store.NewGateway(db, store.DefaultRetryPolicy(cfg.StoreMaxRetries), log)

		summary, daily, err := gateway.AggregateRange(context.Background(), analyticsDays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load analytics: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Last %d days\n\n", analyticsDays)
		fmt.Printf("Emails processed: %d\n", summary.TotalEmails)
		fmt.Printf("  Important:      %d\n", summary.ImportantCount)
		fmt.Printf("  Personal:       %d\n", summary.PersonalCount)
		fmt.Printf("  Newsletter:     %d\n", summary.NewsletterCount)
		fmt.Printf("  Spam:           %d\n", summary.SpamCount)
		fmt.Printf("Replies sent:     %d\n", summary.RepliesSent)
		fmt.Printf("Archived:         %d\n", summary.EmailsArchived)
		fmt.Printf("Deleted:          %d\n", summary.EmailsDeleted)

		if len(daily) > 0 {
			fmt.Println("\nPer day:")
			fmt.Printf("  %-12s %7s %9s %8s %8s %8s\n", "date", "total", "important", "replies", "archived", "deleted")
			for _, day := range daily {
				fmt.Printf("  %-12s %7d %9d %8d %8d %8d\n",
					day.Date, day.TotalEmails, day.ImportantCount,
					day.RepliesSent, day.EmailsArchived, day.EmailsDeleted)
			}
		}
	},
}

func init() {
	analyticsCmd.Flags().IntVarP(&analyticsDays, "days", "d", 7, "number of days to include")
}
