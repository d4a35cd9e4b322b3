package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dragonbytelabs/dz/internal/cli/ui"
	"github.com/dragonbytelabs/dz/internal/themes"
)

func (g *globals) themes() (*themes.Manager, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	logger, err := g.log()
	if err != nil {
		return nil, err
	}
	return themes.NewManager(cfg.Resolve(cfg.Content.ThemesPath), logger.Named("themes"))
}

// installedTheme returns a not-found message with suggestions when name is
// not installed
func (g *globals) installedTheme(cmd *cobra.Command, m *themes.Manager, name string) error {
	if m.Exists(name) {
		return nil
	}
	list, err := m.List("")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(list))
	for _, t := range list {
		names = append(names, t.Name)
	}
	msg := ui.NotFound("theme", name, ui.Suggest(name, names), "dz theme list", g.noColor)
	return reported(cmd.ErrOrStderr(), msg, themes.ErrNotFound)
}

func newThemeCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Manage site themes",
	}

	add := &cobra.Command{
		Use:   "add <source>",
		Short: "Add a theme from a git URL or a local directory",
		Long: `Add a theme from a git URL or a local directory.

Git sources are shallow-cloned and their .git folder removed. The theme name
is the last path element of the source. A theme must contain index.html.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.themes()
			if err != nil {
				return err
			}
			source := args[0]
			verb := "Copying"
			if themes.IsGitURL(source) {
				verb = "Cloning"
			}
			var name string
			err = ui.WithSpinner(cmd.OutOrStdout(), fmt.Sprintf("%s theme %s", verb, themes.NameFromSource(source)), g.noColor, func() error {
				var err error
				name, err = m.Add(cmd.Context(), source, g.clone)
				return err
			})
			if err != nil {
				return err
			}
			dir, _ := m.Dir(name)
			fmt.Fprintf(cmd.OutOrStdout(), "Theme '%s' added to %s\n", name, dir)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List installed themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.themes()
			if err != nil {
				return err
			}
			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			active, err := db.GetActiveTheme(cmd.Context())
			if err != nil {
				return err
			}

			installed, err := m.List(active)
			if err != nil {
				return err
			}
			if len(installed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No themes installed")
				return nil
			}
			t := ui.NewTable(cmd.OutOrStdout(), g.noColor, "NAME", "ACTIVE", "VERSION", "DESCRIPTION")
			for _, th := range installed {
				var version, desc string
				if th.Manifest != nil {
					version, desc = th.Manifest.Version, th.Manifest.Description
				}
				t.AddRow(th.Name, yesNo(th.Active), version, desc)
			}
			t.Render()
			return nil
		},
	}

	activate := &cobra.Command{
		Use:   "activate <name>",
		Short: "Serve an installed theme at the site root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.themes()
			if err != nil {
				return err
			}
			if err := g.installedTheme(cmd, m, args[0]); err != nil {
				return err
			}
			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SetActiveTheme(cmd.Context(), args[0]); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Activated theme "+args[0], g.noColor)
			return nil
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate",
		Short: "Serve the admin application at the site root again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SetActiveTheme(cmd.Context(), ""); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Theme deactivated", g.noColor)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete an installed theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			m, err := g.themes()
			if err != nil {
				return err
			}
			if err := g.installedTheme(cmd, m, name); err != nil {
				return err
			}
			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			active, err := db.GetActiveTheme(cmd.Context())
			if err != nil {
				return err
			}
			if active == name {
				return errors.New("theme " + name + " is active; deactivate it first")
			}
			if err := m.Remove(name); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Removed theme "+name, g.noColor)
			return nil
		},
	}

	cmd.AddCommand(add, list, activate, deactivate, remove)
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
