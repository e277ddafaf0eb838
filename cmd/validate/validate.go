// Package validate implements the configuration and connectivity check
// command.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caselink/contactsync/internal/app"
	"github.com/caselink/contactsync/internal/conf"
)

// Command creates the validate command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and connectivity to the provider and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.ValidateSettings(settings); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Println("configuration: ok")

			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.Ping(); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}
			fmt.Println("database: ok")

			if err := a.Client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("provider unreachable: %w", err)
			}
			fmt.Println("provider API: ok")

			numbers, err := a.Client.ListPhoneNumbers(cmd.Context())
			if err == nil {
				fmt.Printf("workspace phone numbers: %d\n", len(numbers))
			}
			return nil
		},
	}
	return cmd
}
