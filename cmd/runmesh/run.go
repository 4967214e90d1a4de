package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/runmesh/tool"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	var (
		strategy string
		agents   []string
		extra    string
		label    string
	)

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one orchestration task and print its outcome",
		Example: `  runmesh run "Summarize the release notes"
  runmesh run "Review this design" --strategy fan-out --agents researcher,critic
  runmesh run "Draft and polish a README" --strategy pipeline --agents writer,editor`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rm, _, _, err := o.mesh(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rm.Close(ctx) }()

			in := map[string]any{
				"task":     strings.Join(args, " "),
				"strategy": strategy,
			}
			if len(agents) > 0 {
				in["agents"] = agents
			}
			if extra != "" {
				in["context"] = extra
			}
			if label != "" {
				in["label"] = label
			}

			res := rm.Call(ctx, tool.OrchestrateName, in)
			if !res.OK {
				return fmt.Errorf("%s: %s", res.Error.Code, res.Error.Message)
			}

			out := cmd.OutOrStdout()
			printStatus(out, "✓", fmt.Sprintf("%s run completed", strategy), color.FgGreen)

			data, err := json.MarshalIndent(res.Data, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "auto", "Strategy: auto, fan-out or pipeline")
	cmd.Flags().StringSliceVarP(&agents, "agents", "a", nil, "Agent ids (required for fan-out and pipeline)")
	cmd.Flags().StringVar(&extra, "context", "", "Extra context passed to every agent")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Run label")

	return cmd
}
