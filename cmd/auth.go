package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Saijash84/CalMate/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize calmate to use a Google Calendar",
		Long: fmt.Sprintf(`Bootstrap the Google OAuth token used by the calendar provider.

Set %s and %s, run "calmate auth url", open the printed URL,
approve access and pass the code shown to "calmate auth save <code>".
Tokens are stored per account in the user cache directory.`, google.EnvClientID, google.EnvClientSecret),
	}
	cmd.PersistentFlags().StringVar(&account, "account", google.DefaultAccount, "Account name the token is stored under")

	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print the Google consent URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv(google.EnvClientID) == "" {
				return fmt.Errorf("%s is not set", google.EnvClientID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Open this URL, approve access and copy the code:")
			fmt.Fprintln(cmd.OutOrStdout(), google.GetAuthURLForAccount(account))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save <code>",
		Short: "Exchange an authorization code and store the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := google.SaveTokenForAccount(cmd.Context(), account, args[0]); err != nil {
				return fmt.Errorf("failed to save token for account %s: %w", account, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved for account %s.\n", account)
			return nil
		},
	})

	return cmd
}
