package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/store"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the bundle cache.",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List cached bundles.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.requireCache()
			if err != nil {
				return err
			}
			entries, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cacheTable(entries))
			return err
		},
	}

	rm := &cobra.Command{
		Use:   "rm <sri...>",
		Short: "Remove cached bundles by digest.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.requireCache()
			if err != nil {
				return err
			}
			for _, sri := range args {
				if err := c.Delete(cmd.Context(), sri); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(ls, rm)
	return cmd
}

func (a *app) requireCache() (*store.Store, error) {
	if a.cache == nil {
		return nil, errors.InvalidInput(errors.PhaseCache, "no cache configured, set --cache or DISTRIBUTED_CACHE_PATH")
	}
	return a.cache, nil
}
