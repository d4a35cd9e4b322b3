package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dragonbytelabs/dz/internal/cli/ui"
	"github.com/dragonbytelabs/dz/internal/store"
)

func newMigrateCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back and inspect the schema migrations embedded in dz.

The server applies pending migrations on startup; these commands are for
operating on the schema without starting it.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := g.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				n, err := db.Migrate(cmd.Context())
				if err != nil {
					return reported(cmd.ErrOrStderr(), ui.MigrationFailed(err.Error(), g.noColor), err)
				}
				out := cmd.OutOrStdout()
				if n == 0 {
					fmt.Fprintln(out, "No pending migrations")
					return nil
				}
				ui.Success(out, fmt.Sprintf("Applied %d migration(s)", n), g.noColor)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := g.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				m, err := db.Rollback(cmd.Context())
				if errors.Is(err, store.ErrNoMigrations) {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations to roll back")
					return nil
				}
				if err != nil {
					return reported(cmd.ErrOrStderr(), ui.MigrationFailed(err.Error(), g.noColor), err)
				}
				ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Rolled back %d_%s", m.Version, m.Name), g.noColor)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := g.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				st, err := db.MigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				t := ui.NewTable(out, g.noColor, "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, m := range st.Applied {
					t.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "applied", m.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, m := range st.Pending {
					t.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "pending", "")
				}
				t.Render()
				fmt.Fprintln(out)
				fmt.Fprintln(out, st.Summary())
				return nil
			},
		},
	)
	return cmd
}
