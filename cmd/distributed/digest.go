package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-distributed/integrity"
	"github.com/wippyai/wasm-distributed/location"
)

func newDigestCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "digest <file...>",
		Short: "Print the SRI digest of bundle files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sri := integrity.Digest(data)
				if write {
					if err := os.WriteFile(path+location.SidecarExt, []byte(sri+"\n"), 0o644); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sri, path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "also write the .sri sidecar next to each file")
	return cmd
}
