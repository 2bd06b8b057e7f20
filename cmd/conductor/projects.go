package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/seantiz/conductor/internal/catalog"
	"github.com/seantiz/conductor/internal/config"
	"github.com/seantiz/conductor/internal/model"
)

func newProjectsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects, scenarios and environments from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cmd.ErrOrStderr(), slog.LevelWarn)
			cat, err := catalog.NewFS(cfg.ApplicationsDir, logger)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			projects := cat.Projects()
			if len(projects) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no projects under %s\n", cfg.ApplicationsDir)
				return nil
			}
			renderProjects(cmd.OutOrStdout(), projects)
			return nil
		},
	}
}

// renderProjects prints one row per scenario.
func renderProjects(w io.Writer, projects []model.Project) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Project", "Scenario", "File", "Tags", "Runner", "Environments"})

	for _, p := range projects {
		envs := make([]string, len(p.Environments))
		for i, e := range p.Environments {
			envs[i] = e.ID
		}
		if len(p.Scenarios) == 0 {
			t.AppendRow(table.Row{p.Name, "-", "-", "-", "-", strings.Join(envs, ", ")})
			continue
		}
		for _, s := range p.Scenarios {
			runnerName := s.Runner
			if runnerName == "" {
				runnerName = "default"
			}
			t.AppendRow(table.Row{p.Name, s.ID, s.File, strings.Join(s.Tags, ", "), runnerName, strings.Join(envs, ", ")})
		}
		t.AppendSeparator()
	}
	t.Render()
}

