package commands

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/dragonbytelabs/dz/internal/app"
	"github.com/dragonbytelabs/dz/internal/cli/ui"
)

type route struct {
	method  string
	pattern string
}

// collectRoutes flattens the router, dropping chi's trailing "/*" on mounted
// subrouters
func collectRoutes(r chi.Routes) ([]route, error) {
	var out []route
	err := chi.Walk(r, func(method, pattern string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		pattern = strings.ReplaceAll(pattern, "/*/", "/")
		if len(pattern) > 1 {
			pattern = strings.TrimSuffix(pattern, "/")
		}
		out = append(out, route{method: method, pattern: pattern})
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].pattern != out[j].pattern {
			return out[i].pattern < out[j].pattern
		}
		return out[i].method < out[j].method
	})
	return out, err
}

func newRoutesCommand(g *globals) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the HTTP routes the server would register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			logger, err := g.log()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger, app.Options{SkipBootstrap: true})
			if err != nil {
				return err
			}
			defer a.Close()

			routes, err := collectRoutes(a.Routes())
			if err != nil {
				return err
			}
			t := ui.NewTable(cmd.OutOrStdout(), g.noColor, "METHOD", "PATH")
			for _, r := range routes {
				if strings.HasPrefix(r.pattern, prefix) {
					t.AddRow(r.method, r.pattern)
				}
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only show paths starting with this prefix")
	return cmd
}
