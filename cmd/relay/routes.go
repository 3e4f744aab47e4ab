package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitalvas/relay/mux"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table built from the configuration",
		Long: `Print every entry of the route table in dispatch order: middleware,
handlers and mounted routers, indented by mount depth.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			router, err := newRouter(cfg, slog.New(slog.DiscardHandler), nil)
			if err != nil {
				return err
			}

			return printRoutes(cmd.OutOrStdout(), router)
		},
	}
}

func printRoutes(w io.Writer, r *mux.Router) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tMETHOD\tPATTERN")

	err := r.Walk(func(info mux.RouteInfo) error {
		method := info.Method
		if method == "" {
			method = "*"
		}

		pattern := info.Pattern
		if pattern == "" {
			pattern = "/"
		}

		_, err := fmt.Fprintf(tw, "%s%s\t%s\t%s\n", strings.Repeat("  ", info.Depth), info.Kind, method, pattern)
		return err
	})
	if err != nil {
		return err
	}

	return tw.Flush()
}
