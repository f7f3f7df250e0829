package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthorizeCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Begin or complete the OAuth authorization",
		Long: `Without flags, print the provider authorization URL to open in a
browser. After approving access, the provider redirects to the configured
redirect URI with a one-time code; pass it back with --code to exchange it
for a token record. When the daemon is running, the redirect is handled
automatically by its HTTP front door instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if code == "" {
				fmt.Printf("Open this URL in a browser to authorize access:\n\n  %s\n\n", a.manager.AuthURL())
				fmt.Println("Then re-run with --code <one-time code> to complete the exchange.")
				return nil
			}

			record, err := a.manager.Exchange(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Printf("authorization complete for account %s, token valid until %s\n",
				record.AccountID, record.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "one-time authorization code from the provider redirect")
	return cmd
}
