package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ashureev/analyst-labs/internal/profile"
	"github.com/ashureev/analyst-labs/internal/prompt"
)

var showSample bool

var profileCmd = &cobra.Command{
	Use:   "profile [file.csv...]",
	Short: "Print the data profile of each CSV file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProfile,
}

func init() {
	profileCmd.Flags().BoolVar(&showSample, "sample", false, "also print the first rows as JSON records")
}

func runProfile(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		table, err := profile.ParseCSV(f)
		_ = f.Close()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			failed++
			continue
		}

		fmt.Fprintf(out, "== %s ==\n%s\n", filepath.Base(path), profile.Summary(profile.Build(table)))
		if showSample {
			sample, err := profile.SampleRecords(table, prompt.SampleSize)
			if err != nil {
				return fmt.Errorf("sample %s: %w", path, err)
			}
			fmt.Fprintf(out, "\nSample:\n%s\n", sample)
		}
		fmt.Fprintln(out)
	}
	if failed == len(args) {
		return fmt.Errorf("no file could be parsed")
	}
	return nil
}
