package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seantiz/conductor/internal/config"
	"github.com/seantiz/conductor/internal/runner"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	serve := newServeCommand(opts)
	root := &cobra.Command{
		Use:           "conductor",
		Short:         "Run end-to-end test scenarios on demand",
		Long:          "conductor admits test executions, runs them under a global concurrency cap and streams their output over server-sent events.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json)")

	root.AddCommand(serve)
	root.AddCommand(newProjectsCommand(opts))
	root.AddCommand(newHistoryCommand(opts))
	return root
}

// buildRunners registers one command runner per configured entry.
func buildRunners(cfg config.Config) (*runner.Registry, error) {
	reg := runner.NewRegistry(cfg.DefaultRunner)
	for name, commandLine := range cfg.Runners {
		cmd, err := runner.NewCommand(commandLine, "")
		if err != nil {
			return nil, fmt.Errorf("runner %q: %w", name, err)
		}
		reg.Register(name, cmd)
	}
	return reg, nil
}
