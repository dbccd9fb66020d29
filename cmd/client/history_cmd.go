package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/openmined/skywriter/internal/client/history"
	"github.com/openmined/skywriter/internal/utils"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.HistoryPath == "" {
				return fmt.Errorf("history is disabled, set history_path")
			}

			path, err := utils.ResolvePath(cfg.HistoryPath)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			h, err := history.Open(path)
			if err != nil {
				return err
			}
			defer h.Close()

			passes, err := h.Recent(limit)
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), passes)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of passes to show")
	return cmd
}

func printHistory(w io.Writer, passes []*history.Pass) {
	if len(passes) == 0 {
		fmt.Fprintln(w, gray("no passes recorded"))
		return
	}

	for _, p := range passes {
		status := green("OK")
		if p.Failed > 0 {
			status = red("FAILED")
		}

		fmt.Fprintf(w, "#%-4d %-6s %s  pushed %d  pulled %d  unchanged %d  skipped %d  failed %d  %s in %s\n",
			p.ID,
			status,
			gray(humanize.Time(p.StartedAt)),
			p.Pushed, p.Pulled, p.Unchanged, p.Skipped, p.Failed,
			humanize.Bytes(uint64(p.Bytes)),
			p.Duration,
		)

		for _, f := range p.Failures {
			fmt.Fprintf(w, "      %s %s <-> %s: %s\n", red(f.Action), f.LocalPath, f.RemotePath, f.Error)
		}
	}
}
