package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/seantiz/conductor/internal/model"
	"github.com/seantiz/conductor/internal/store"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the execution history",
	}
	cmd.AddCommand(newHistoryListCommand(opts))
	cmd.AddCommand(newHistoryExportCommand(opts))
	cmd.AddCommand(newHistoryClearCommand(opts))
	return cmd
}

// openHistory opens the configured history store.
func openHistory(opts *rootOptions) (*store.SQLiteStore, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteStore(cfg.DBPath, cfg.HistoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return s, nil
}

func newHistoryListCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			renderHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 60, "number of records to show (max 500)")
	return cmd
}

func newHistoryExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full retained history as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := store.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			return store.Export(w, f, records)
		},
	}
	cmd.Flags().StringVar(&format, "format", store.FormatCSV, "export format: csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newHistoryClearCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every history record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count history: %w", err)
			}
			if err := s.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d records\n", n)
			return nil
		},
	}
}

// renderHistory prints records newest first.
func renderHistory(w io.Writer, records []model.HistoryRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Execution", "Project", "Scenario", "Environment", "Status", "Exit", "Duration", "Finished"})

	for _, r := range records {
		exit := "-"
		if r.ExitCode != nil {
			exit = strconv.Itoa(*r.ExitCode)
		}
		duration := "-"
		if r.DurationMS != nil {
			duration = (time.Duration(*r.DurationMS) * time.Millisecond).String()
		}
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{r.ExecutionID, r.ProjectName, r.ScenarioName, r.EnvironmentName, r.Status, exit, duration, finished})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(records)})
	t.Render()
}
