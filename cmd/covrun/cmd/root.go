package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "covrun",
	Short: "Near-zero-overhead coverage instrumentation demo",
	Long: `covrun wires the Driver (internal/driver) around a small demo
program and reports the coverage produced by running it, exercising the
same Instrument/Run/GetCoverage pipeline an embedding host would drive.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "coverage",
		Title: "Coverage",
	})

	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().Bool("branch", false, "track branch coverage in addition to line coverage")
	rootCmd.PersistentFlags().Bool("immediate", false, "arm immediate single-byte probe removal")
	rootCmd.PersistentFlags().Int("d-miss-threshold", -2, "D-misses before requesting a deinstrument round (-1 remove-only, -2 never-remove)")
	rootCmd.PersistentFlags().String("out", "", "write the coverage report to this path instead of stdout")
}
