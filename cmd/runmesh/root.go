package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/runmesh"
	"github.com/hupe1980/runmesh/config"
	"github.com/hupe1980/runmesh/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "runmesh",
		Short: "Multi-agent orchestration over LLM providers",
		Long: `runmesh dispatches tasks to a catalog of LLM agents.

Strategies:
- auto:     a routing call picks one agent, or none
- fan-out:  all named agents answer in parallel
- pipeline: each agent refines the previous output

Agents are read from the YAML file named by agents.file in the config.
Provider keys come from ANTHROPIC_API_KEY / OPENAI_API_KEY or the config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (YAML)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newAgentsCmd(opts),
		newRunsCmd(opts),
	)

	return cmd
}

func (o *rootOptions) load() (*config.Config, *logging.RunMeshLogger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, runmesh.NewLogger(cfg.Log), nil
}

func (o *rootOptions) mesh(ctx context.Context) (*runmesh.RunMesh, *config.Config, *logging.RunMeshLogger, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}

	rm, err := runmesh.FromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	return rm, cfg, logger, nil
}

// printStatus prints a status line with a coloured symbol.
func printStatus(w io.Writer, symbol, message string, attr color.Attribute) {
	fmt.Fprintf(w, "%s %s\n", color.New(attr).Sprint(symbol), message)
}
