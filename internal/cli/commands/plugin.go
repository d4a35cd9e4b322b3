package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dragonbytelabs/dz/internal/app"
	"github.com/dragonbytelabs/dz/internal/cli/ui"
	"github.com/dragonbytelabs/dz/internal/plugins"
	"github.com/dragonbytelabs/dz/internal/store"
)

// pluginCatalog opens the database with a row for every built-in plugin
func (g *globals) pluginCatalog(ctx context.Context) (*store.DB, error) {
	db, err := g.openMigrated(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range app.BuiltinPlugins() {
		if _, err := db.EnsurePlugin(ctx, plugins.Model(p)); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func newPluginCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage plugins",
		Long: `Manage the plugin catalog.

Status changes made here take effect the next time the server starts; use the
admin application to toggle plugins on a running server.`,
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a plugin to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !plugins.ValidName(name) {
				return fmt.Errorf("%w: %q", plugins.ErrInvalidName, name)
			}
			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := db.AddPlugin(cmd.Context(), name); err != nil {
				if errors.Is(err, store.ErrUniqueViolation) {
					return fmt.Errorf("plugin %q already exists", name)
				}
				return err
			}
			ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Plugin %q added", name), g.noColor)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalogued plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := g.pluginCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.ListPlugins(cmd.Context())
			if err != nil {
				return err
			}
			builtin := map[string]bool{}
			for _, p := range app.BuiltinPlugins() {
				builtin[p.Name()] = true
			}
			t := ui.NewTable(cmd.OutOrStdout(), g.noColor, "NAME", "DISPLAY NAME", "VERSION", "ACTIVE", "BUILT IN")
			for _, p := range rows {
				t.AddRow(p.Name, p.DisplayName, p.Version, yesNo(p.IsActive), yesNo(builtin[p.Name]))
			}
			t.Render()
			return nil
		},
	}

	setActive := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := args[0]
				db, err := g.pluginCatalog(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				err = db.SetPluginActive(cmd.Context(), name, active)
				if errors.Is(err, store.ErrNotFound) {
					rows, lerr := db.ListPlugins(cmd.Context())
					if lerr != nil {
						return lerr
					}
					names := make([]string, 0, len(rows))
					for _, p := range rows {
						names = append(names, p.Name)
					}
					return reported(cmd.ErrOrStderr(), ui.NotFound("plugin", name, ui.Suggest(name, names), "dz plugin list", g.noColor), err)
				}
				if err != nil {
					return err
				}
				ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Plugin %q %sd", name, use), g.noColor)
				return nil
			},
		}
	}

	cmd.AddCommand(
		add,
		list,
		setActive("enable", "Mark a plugin active", true),
		setActive("disable", "Mark a plugin inactive", false),
	)
	return cmd
}
