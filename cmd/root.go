// Package cmd assembles the contactsync command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caselink/contactsync/cmd/importcmd"
	"github.com/caselink/contactsync/cmd/serve"
	synccmd "github.com/caselink/contactsync/cmd/sync"
	"github.com/caselink/contactsync/cmd/validate"
	"github.com/caselink/contactsync/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contactsync",
		Short: "Sync a legal-practice client directory into a telephony CRM",
		Long: `contactsync mirrors practice client records into a third-party
telephony/CRM provider as callable contacts, de-duplicating against the
remote contact set, and imports the provider's call and message events back
into the practice communication log.`,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		synccmd.Command(settings),
		importcmd.Command(settings),
		serve.Command(settings),
		validate.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
