package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftbackup/internal/backup"
	"github.com/openmined/syftbackup/internal/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Store a new generation of the source folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			full, _ := cmd.Flags().GetBool("full")

			showHeader(cmd, "backup")
			bar := newScanBar()
			svc, err := openService(cfg, backup.WithProgress(func(rel string, size int64) {
				bar.Describe(rel)
				bar.Add64(size)
			}))
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Backup(cmd.Context(), backup.BackupOptions{Full: full})
			bar.Finish()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", red("backup failed:"), err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s, #%d)\n", green("stored"), res.SignatureName, res.ID.Kind, res.Seq)
			fmt.Fprintf(out, "  examined  %d files, %s\n", res.Stats.ExaminedFiles, humanize.Bytes(uint64(res.Stats.ExaminedBytes)))
			fmt.Fprintf(out, "  new       %d files, %s\n", res.Stats.NewFiles, humanize.Bytes(uint64(res.Stats.NewBytes)))
			fmt.Fprintf(out, "  modified  %d files, %s in deltas\n", res.Stats.ModifiedFiles, humanize.Bytes(uint64(res.Stats.DeltaBytes)))
			fmt.Fprintf(out, "  deleted   %d files, %d folders\n", res.Stats.DeletedFiles, res.Stats.DeletedFolders)
			if !res.Stats.HasChanges() {
				fmt.Fprintln(out, gray("  no changes since the previous generation"))
			}
			return nil
		},
	}
	cmd.Flags().Bool("full", false, "force a full generation")
	return cmd
}

func openService(cfg *config.Config, opts ...backup.Option) (*backup.Service, error) {
	svc, err := backup.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := svc.Open(); err != nil {
		return nil, err
	}
	return svc, nil
}

// newScanBar is a byte counting spinner; the total is unknown while scanning.
func newScanBar() *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(65),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(isatty.IsTerminal(os.Stderr.Fd())),
	)
}
