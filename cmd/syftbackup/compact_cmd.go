package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact <out>",
		Short: "Fold a chain's signatures into one signature set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			at, err := parseAt(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			svc, err := openService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			chain, err := svc.Compact(cmd.Context(), args[0], at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d generations into %s\n", green("compacted"), 1+len(chain.Incrementals), args[0])
			return nil
		},
	}
	cmd.Flags().String("at", "", "compact the chain at or before this RFC3339 time (default now)")
	return cmd
}
