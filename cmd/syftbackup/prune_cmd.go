package main

import (
	"fmt"
	"time"

	"github.com/openmined/syftbackup/internal/backup"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old generation chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			keep, _ := cmd.Flags().GetInt("keep-full")
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if keep < 0 || olderThan < 0 {
				return fmt.Errorf("--keep-full and --older-than must not be negative")
			}

			opts := backup.PruneOptions{KeepFull: keep, DryRun: dryRun}
			if olderThan > 0 {
				opts.OlderThan = time.Now().Add(-olderThan)
			}
			cmd.SilenceUsage = true

			svc, err := openService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Prune(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			verb := red("removed")
			if dryRun {
				verb = cyan("would remove")
			}
			for _, g := range res.Removed {
				fmt.Fprintf(w, "%s\n", verb)
				printGeneration(w, g)
			}
			fmt.Fprintf(w, "%s %d generations, %d chains kept\n", green("pruned"), len(res.Removed), res.Kept)
			return nil
		},
	}
	cmd.Flags().Int("keep-full", 0, "keep only the newest N chains")
	cmd.Flags().Duration("older-than", 0, "remove chains whose latest generation is older than this")
	cmd.Flags().Bool("dry-run", false, "only report what would be removed")
	return cmd
}
