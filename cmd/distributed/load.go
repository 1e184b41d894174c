package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-distributed/config"
	"github.com/wippyai/wasm-distributed/errors"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		manifest  string
		output    string
		noInstall bool
	)
	cmd := &cobra.Command{
		Use:   "load [location...]",
		Short: "Load bundles, install them into a console host and report the result.",
		Example: `  distributed load https://cdn.example.com/widgets.umd.wasm
  distributed load -f modules.yaml -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			locs := args
			var provide map[string]any
			if manifest != "" {
				m, err := config.LoadManifest(manifest)
				if err != nil {
					return err
				}
				locs = append(locs, m.Modules...)
				provide = m.Provide
			}
			if len(locs) == 0 {
				return errors.InvalidInput(errors.PhaseConfig, "no bundle locations given")
			}

			host := newConsoleHost(a.logger)
			s, err := a.newSession(ctx, host)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close(ctx) }()

			if len(provide) > 0 {
				if err := s.Provide(provide); err != nil {
					return err
				}
			}

			procs, err := s.LoadAll(ctx, locs)
			if err != nil {
				return err
			}
			if !noInstall {
				for _, p := range procs {
					if err := p.Install(ctx, host); err != nil {
						return err
					}
				}
				c, d := host.installed()
				a.logger.Info("bundles installed", zap.Int("components", c), zap.Int("directives", d))
			}

			out, err := renderModules(output, summarize(s))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVarP(&manifest, "file", "f", "", "manifest listing bundle locations")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json, yaml)")
	cmd.Flags().BoolVar(&noInstall, "no-install", false, "load and register without installing")
	return cmd
}
