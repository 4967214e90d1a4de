package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/runmesh/agent"
)

func newAgentsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := o.load()
			if err != nil {
				return err
			}

			catalog, err := agent.LoadCatalog(cfg.Agents.File)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if catalog.Len() == 0 {
				fmt.Fprintf(out, "No agents in %s.\n", cfg.Agents.File)
				return nil
			}

			faint := color.New(color.Faint)
			for _, spec := range catalog.List() {
				line := fmt.Sprintf("%-16s %s", spec.ID, spec.Role)
				if spec.Provider != "" {
					line += fmt.Sprintf(" [%s]", spec.Provider)
				}
				if !spec.Enabled {
					fmt.Fprintln(out, faint.Sprint(line+" (disabled)"))
					continue
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
