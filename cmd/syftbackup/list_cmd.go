package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/openmined/syftbackup/internal/backup"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the restorable generation chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			cmd.SilenceUsage = true

			svc, err := openService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			chains, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(chains)
			}
			printChains(cmd.OutOrStdout(), chains)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print JSON")
	return cmd
}

func printChains(w io.Writer, chains []backup.ChainInfo) {
	if len(chains) == 0 {
		fmt.Fprintln(w, gray("no generations"))
		return
	}
	for i, chain := range chains {
		fmt.Fprintf(w, "%s %d\n", cyan("chain"), i+1)
		printGeneration(w, chain.Full)
		for _, inc := range chain.Incrementals {
			printGeneration(w, inc)
		}
	}
}

func printGeneration(w io.Writer, g backup.GenerationInfo) {
	line := fmt.Sprintf("  %-4s %s  %s", g.Kind, g.Time.Local().Format("2006-01-02 15:04:05"), gray(humanize.Time(g.Time)))
	if g.Stats != nil {
		line += fmt.Sprintf("  #%d  %d files  +%d ~%d -%d  %s",
			g.Seq,
			g.Stats.ExaminedFiles,
			g.Stats.NewFiles,
			g.Stats.ModifiedFiles,
			g.Stats.DeletedFiles,
			humanize.Bytes(uint64(g.Stats.NewBytes+g.Stats.DeltaBytes)),
		)
	}
	fmt.Fprintln(w, line)
}
