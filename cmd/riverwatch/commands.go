package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"RiverWatch/internal/app"
	"RiverWatch/internal/config"
	"RiverWatch/internal/logging"
	"RiverWatch/internal/usecase"
)

// errNothingNew makes `run --exit-code` exit 1 without printing an error.
var errNothingNew = errors.New("no new bulletins")

func loadConfig(path string) config.Config {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func openApp(configPath string, output string) (*app.Application, error) {
	cfg := loadConfig(configPath)
	if output != "" {
		cfg.Output.Kind = output
	}
	logger := logging.NewWriter(os.Stderr, cfg.Logging.Level)

	return app.New(cfg, logger)
}

func runCmd(configPath *string) *cobra.Command {
	var (
		output   string
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check the page once and write new bulletins",
		Long: `Fetch the page, report bulletins newer than the stored watermark and
advance the watermark.

Output kinds:
  csv     new_river_articles_YYYYMMDD.csv, only written when something is new
  notice  fixed notification text file, empty when nothing is new

With --exit-code the command exits 1 when nothing new was found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp(*configPath, output)
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Run(cmd.Context())
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), result)
			if exitCode && !result.HasNew {
				return errNothingNew
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "artifact kind: csv or notice (default from config)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit 1 when no new bulletins were found")
	return cmd
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored watermark and recent executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp(*configPath, "")
			if err != nil {
				return err
			}
			defer application.Close()

			st := application.Status(cmd.Context())
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)

			bold.Fprintf(out, "Watermark state (%s)\n", application.StatePath())
			fmt.Fprintf(out, "  source:          %s\n", st.SourceURL)
			fmt.Fprintf(out, "  last date value: %d\n", st.LastDateValue)
			fmt.Fprintf(out, "  last run:        %s\n", st.LastRun)
			fmt.Fprintf(out, "  total found:     %d\n", st.TotalSeen)
			fmt.Fprintf(out, "  total new:       %d\n", st.TotalNew)

			if len(st.History) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			bold.Fprintln(out, "Execution history")
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tFOUND\tNEW")
			for _, h := range st.History {
				fmt.Fprintf(w, "%s\t%d\t%d\n", h.Timestamp, h.Found, h.New)
			}
			return w.Flush()
		},
	}
}

func historyCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded in the SQLite ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp(*configPath, "")
			if err != nil {
				return err
			}
			defer application.Close()

			runs, err := application.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSHAPE\tFOUND\tNEW\tWATERMARK\tRUN")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Shape, r.Found, r.New, r.Watermark, r.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func printResult(out io.Writer, result usecase.Result) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	if result.FetchErr != nil {
		yellow.Fprintf(out, "⚠ page could not be fetched: %v\n", result.FetchErr)
	}

	fmt.Fprintf(out, "previous watermark: %d, current: %d, bulletins on page: %d\n",
		result.PreviousWatermark, result.Watermark, result.Found)

	if !result.HasNew {
		fmt.Fprintln(out, "no new bulletins")
		return
	}

	green.Fprintf(out, "%d new bulletin(s)\n", len(result.Fresh))
	for _, b := range result.Fresh {
		fmt.Fprintf(out, "%s - %s\nURL: %s\n\n", b.DateText, b.Title, b.URL)
	}
	if result.Artifact.Path != "" {
		fmt.Fprintf(out, "artifact: %s\n", result.Artifact.Path)
	}
}
