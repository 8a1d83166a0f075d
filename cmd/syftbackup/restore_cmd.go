package main

import (
	"fmt"
	"time"

	"github.com/openmined/syftbackup/internal/backup"
	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <dest>",
		Short: "Rebuild the source folder from the stored generations",
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
			include, _ := cmd.Flags().GetStringSlice("include")
			keepDeleted, _ := cmd.Flags().GetBool("keep-deleted")
			cmd.SilenceUsage = true

			showHeader(cmd, "restore")
			svc, err := openService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			chain, err := svc.Restore(cmd.Context(), args[0], backup.RestoreOptions{
				At:          at,
				Include:     include,
				KeepDeleted: keepDeleted,
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", red("restore failed:"), err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s as of %s (%d incremental generations)\n",
				green("restored"), args[0], chain.Latest().Time.Local().Format(time.RFC3339), len(chain.Incrementals))
			return nil
		},
	}
	cmd.Flags().String("at", "", "restore the state at or before this RFC3339 time (default now)")
	cmd.Flags().StringSlice("include", nil, "only restore files matching this doublestar pattern (repeatable)")
	cmd.Flags().Bool("keep-deleted", false, "also restore files deleted in later generations")
	return cmd
}

func parseAt(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("at")
	if raw == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", raw, err)
	}
	return at, nil
}
