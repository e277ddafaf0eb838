// Package sync implements the one-shot contact sync command.
package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caselink/contactsync/internal/app"
	"github.com/caselink/contactsync/internal/conf"
	syncengine "github.com/caselink/contactsync/internal/sync"
)

// Command creates the sync command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		incremental bool
		sinceHours  int
		dryRun      bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one contact sync pass against the provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := syncengine.Options{Mode: syncengine.ModeFull, DryRun: dryRun}
			if incremental {
				opts.Mode = syncengine.ModeIncremental
				if sinceHours > 0 {
					opts.Since = time.Now().Add(-time.Duration(sinceHours) * time.Hour)
				}
			}

			a.Orchestrator.Subscribe(func(p syncengine.Progress) {
				fmt.Fprintf(os.Stderr, "processed %d/%d (created %d, updated %d, skipped %d, errors %d)\n",
					p.Processed, p.Total, p.Created, p.Updated, p.Skipped, p.Errored)
			})

			result, err := a.Orchestrator.SyncContacts(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			printResult(result)
			if !result.Success {
				return fmt.Errorf("%d clients failed to sync", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "Only sync clients updated since the lookback window")
	cmd.Flags().IntVar(&sinceHours, "since-hours", 24, "Lookback window in hours for incremental sync")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every step except the remote writes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the sync result as JSON")

	return cmd
}

func printResult(result *syncengine.Result) {
	fmt.Printf("sync %s (%s", result.Mode, result.Duration().Round(time.Millisecond))
	if result.DryRun {
		fmt.Print(", dry run")
	}
	fmt.Println(")")
	fmt.Printf("  clients processed: %d\n", result.ClientsProcessed)
	fmt.Printf("  contacts created:  %d\n", result.TotalContactsCreated)
	fmt.Printf("  contacts updated:  %d\n", result.TotalContactsUpdated)
	fmt.Printf("  contacts skipped:  %d\n", result.TotalContactsSkipped)
	fmt.Printf("  client errors:     %d\n", len(result.Errors))
	for _, clientErr := range result.Errors {
		fmt.Printf("    - %s (id %d): %s\n", clientErr.ClientName, clientErr.ClientID, clientErr.Error)
	}
}
