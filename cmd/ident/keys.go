package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/ident/internal/ident/app"
)

func (c *cli) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage persistent signing keys",
		Long: "Manage persistent signing keys. A running server picks changes up on its " +
			"next housekeeping run.",
	}
	cmd.AddCommand(c.keysRotateCmd(), c.keysListCmd(), c.keysRetireCmd())
	return cmd
}

func (c *cli) keysRotateCmd() *cobra.Command {
	var retire bool
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Generate a new signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				keys, err := a.KeyService()
				if err != nil {
					return err
				}
				res, err := keys.Rotate(cmd.Context(), retire)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "new key %s, expires %s\n", res.NewKey.Kid, res.NewKey.ExpiresAt.Format(time.RFC3339))
				for _, kid := range res.RetiredKids {
					fmt.Fprintf(out, "retired %s\n", kid)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&retire, "retire-existing", false, "stop signing with every other key")
	return cmd
}

func (c *cli) keysRetireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retire <kid>",
		Short: "Stop signing with a key; it stays published until it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				keys, err := a.KeyService()
				if err != nil {
					return err
				}
				if err := keys.Retire(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retired %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published signing keys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				keys, err := a.KeyService()
				if err != nil {
					return err
				}
				list, err := keys.List(cmd.Context())
				if err != nil {
					return err
				}
				now := time.Now()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KID\tSTATE\tCREATED\tEXPIRES")
				for _, k := range list {
					state := "retired"
					if k.IsActive(now) {
						state = "active"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.Kid, state, k.CreatedAt.Format(time.RFC3339), k.ExpiresAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}
