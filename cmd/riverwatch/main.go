package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "riverwatch",
		Short: "Watch a river-information page for new bulletins",
		Long: `riverwatch checks the prefectural river-information page, compares the
listed bulletins against the last seen date and writes only the new ones
as a CSV export or a notification text file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (default $RIVERWATCH_CONFIG)")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(statusCmd(&configPath))
	rootCmd.AddCommand(historyCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errNothingNew) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
