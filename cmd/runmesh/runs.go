package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/runmesh"
	"github.com/hupe1980/runmesh/run"
	"github.com/hupe1980/runmesh/tool"
)

var statusColors = map[run.Status]color.Attribute{
	run.StatusCompleted: color.FgGreen,
	run.StatusError:     color.FgRed,
	run.StatusKilled:    color.FgYellow,
}

func newRunsCmd(o *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs, newest first",
		Long: `List runs swept into the archive. Only the sqlite archive driver
keeps runs across processes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := o.load()
			if err != nil {
				return err
			}

			store, err := runmesh.NewArchive(cfg.Archive)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			recs, err := store.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No archived runs.")
				return nil
			}

			for _, rec := range recs {
				status := fmt.Sprintf("%-9s", rec.Status)
				if attr, ok := statusColors[rec.Status]; ok {
					status = color.New(attr).Sprint(status)
				}
				fmt.Fprintf(out, "%s  %s  %-10s  %-12s  %s\n",
					rec.RunID, status, rec.Strategy, rec.Label, rec.ResultPreview)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", tool.DefaultHistoryLimit, "Maximum number of runs")

	return cmd
}
