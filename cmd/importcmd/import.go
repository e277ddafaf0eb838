// Package importcmd implements the communications import command.
package importcmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caselink/contactsync/internal/app"
	"github.com/caselink/contactsync/internal/conf"
)

// Command creates the import command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		sinceHours int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import provider call and message events into the communication log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			var since time.Time
			if sinceHours > 0 {
				since = time.Now().Add(-time.Duration(sinceHours) * time.Hour)
			}

			result, err := a.Importer.Import(cmd.Context(), since)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			fmt.Printf("import since %s\n", result.Since.Format(time.RFC3339))
			fmt.Printf("  calls seen:         %d\n", result.CallsSeen)
			fmt.Printf("  conversations seen: %d\n", result.ConversationsSeen)
			fmt.Printf("  records created:    %d\n", result.Created)
			fmt.Printf("  records updated:    %d\n", result.Updated)
			fmt.Printf("  clients created:    %d\n", result.ClientsCreated)
			for _, msg := range result.Errors {
				fmt.Printf("    - %s\n", msg)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d events failed to import", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sinceHours, "since-hours", 0, "Lookback window in hours (0 uses the configured default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the import result as JSON")

	return cmd
}
