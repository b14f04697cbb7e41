package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/app"
	"github.com/spf13/cobra"
)

var scanMaxBatch int

// scanCmd scans the inbox and classifies unread messages
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan and classify unread mail",
	Long: `Fetch unread messages from the configured mailbox, classify each
one, and store the results. Ctrl-C stops the scan; messages already
processed stay stored and appear in the partial summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := app.Build(ctx, db, cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		maxBatch := scanMaxBatch
		if maxBatch <= 0 {
			maxBatch = cfg.ScanBatchSize
		}

		fmt.Printf("Scanning up to %d unread messages...\n\n", maxBatch)

		summary, err := deps.Orchestrator.Scan(ctx, maxBatch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
			os.Exit(1)
		}

		if ctx.Err() != nil {
			fmt.Println("Scan interrupted; partial results below.")
			fmt.Println()
		}

		fmt.Printf("Total unread:    %d\n", summary.Total)
		fmt.Printf("Processed:       %d\n", summary.Processed)
		fmt.Printf("Already known:   %d\n", summary.Cached)
		fmt.Printf("Heuristic only:  %d\n", summary.Fallback)
		fmt.Printf("Errors:          %d\n", summary.Errors)
		fmt.Printf("Replies drafted: %d\n", summary.RepliesDrafted)
		fmt.Printf("Elapsed:         %s\n", summary.Elapsed.Round(time.Millisecond))

		if len(summary.Categories) > 0 {
			fmt.Println("\nBy category:")
			for category, count := range summary.Categories {
				fmt.Printf("  %-12s %d\n", category, count)
			}
		}
		if len(summary.Priorities) > 0 {
			fmt.Println("\nBy priority:")
			for priority, count := range summary.Priorities {
				fmt.Printf("  %-12s %d\n", priority, count)
			}
		}
	},
}

func init() {
	scanCmd.Flags().IntVarP(&scanMaxBatch, "max", "m", 0, "maximum messages to process (default: config scan_batch_size)")
}
