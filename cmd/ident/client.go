package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/ident/internal/ident/app"
	"github.com/aussiebroadwan/ident/internal/ident/service"
)

func (c *cli) clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage OAuth2 clients",
	}
	cmd.AddCommand(c.clientCreateCmd(), c.clientSecretCmd(), c.clientDeleteCmd(), c.clientListCmd())
	return cmd
}

func (c *cli) clientCreateCmd() *cobra.Command {
	var (
		name         string
		redirectURI  string
		confidential bool
		expiresIn    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client; confidential clients get their first secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				st, secret, err := a.Clients.Create(cmd.Context(), service.CreateClientParams{
					Name:            name,
					RedirectURI:     redirectURI,
					Confidential:    confidential,
					SecretExpiresAt: expiry(expiresIn),
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "client_id:     %s\n", st.ID)
				if secret != "" {
					fmt.Fprintf(out, "client_secret: %s\n", secret)
					fmt.Fprintln(out, "The secret is shown once; store it now.")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "the single registered redirect URI")
	cmd.Flags().BoolVar(&confidential, "confidential", false, "issue a client secret")
	cmd.Flags().DurationVar(&expiresIn, "secret-expires-in", 0, "secret lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("redirect-uri")
	return cmd
}

func (c *cli) clientSecretCmd() *cobra.Command {
	var expiresIn time.Duration
	cmd := &cobra.Command{
		Use:   "secret <client-id>",
		Short: "Add a secret to a client; existing secrets stay valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				secret, err := a.Clients.GenerateSecret(cmd.Context(), args[0], expiry(expiresIn))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "client_secret: %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "secret lifetime, 0 for no expiry")
	return cmd
}

func (c *cli) clientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id>",
		Short: "Delete a client; its tokens stop refreshing immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				if err := a.Clients.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "client %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) clientListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withAdmin(func(a *app.Admin) error {
				clients, err := a.Clients.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tREDIRECT URI")
				for _, cl := range clients {
					kind := "public"
					if len(cl.Secrets) > 0 {
						kind = "confidential"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cl.ID, cl.Name, kind, cl.RedirectURI)
				}
				return w.Flush()
			})
		},
	}
}

func expiry(d time.Duration) *time.Time {
	if d <= 0 {
		return nil
	}
	t := time.Now().Add(d).UTC()
	return &t
}
