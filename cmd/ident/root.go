package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/ident/internal/ident/app"
)

// cli holds what the subcommands share: the loaded configuration and the
// flag overrides applied on top of it.
type cli struct {
	envFile  string
	database string
	cfg      app.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "ident",
		Short:         "Credential and token authority: OAuth2, OpenID Connect, MFA",
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "load settings from this file before the environment (default .env)")
	root.PersistentFlags().StringVar(&c.database, "database", "", "SQLite database file (env IDENT_DATABASE_FILE)")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.clientCmd(),
		c.credentialCmd(),
		c.keysCmd(),
	)
	return root
}

func (c *cli) load() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}
	c.cfg = app.LoadConfig()
	if c.database != "" {
		c.cfg.DatabaseFile = c.database
	}
	return nil
}

// withAdmin opens the admin services for the duration of fn.
func (c *cli) withAdmin(fn func(a *app.Admin) error) error {
	a, err := app.NewAdmin(c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
