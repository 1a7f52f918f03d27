package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/ident/internal/ident/app"
)

func (c *cli) credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Administer user credentials",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "suspend <username>",
			Short: "Block every login of an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withAdmin(func(a *app.Admin) error {
					if err := a.Credentials.Suspend(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s suspended\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reinstate <username>",
			Short: "Lift a suspension or lockout",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withAdmin(func(a *app.Admin) error {
					if err := a.Credentials.Reinstate(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s reinstated\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
