package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcoppola/dropforward/internal/token"
)

func newRefreshCmd() *cobra.Command {
	var discard bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the persisted OAuth token once",
		Long: `Load the persisted token record, refresh the access token against the
provider, and write the updated record back. An already-expired record is
rejected without a network call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.manager.Refresh(cmd.Context(), "")
			if err != nil {
				if discard && (errors.Is(err, token.ErrRefresh) || errors.Is(err, token.ErrTokenExpired)) {
					if derr := a.manager.Discard(); derr != nil {
						return fmt.Errorf("refresh failed (%w) and record could not be discarded: %w", err, derr)
					}
					return fmt.Errorf("refresh failed, record discarded, re-authorization required: %w", err)
				}
				return err
			}

			fmt.Printf("token refreshed, valid until %s\n", record.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&discard, "discard", false, "discard the token record when the provider rejects the refresh")
	return cmd
}
