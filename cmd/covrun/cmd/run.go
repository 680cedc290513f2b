package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
	"github.com/plasma-umass/slipcover/internal/driver"
	"github.com/plasma-umass/slipcover/internal/hostvm"
	"github.com/plasma-umass/slipcover/internal/replacer"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run <n>",
	GroupID: "coverage",
	Short:   "Run a program with n and print its coverage report.",
	Long: `run instruments a program — by default the built-in demo (total
= 0; while n>0 { total += n; n -= 1 }; return total), or the script named
by --script — executes it with the given integer n, and prints the
resulting coverage report as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("script", "", "path to a script to run instead of the built-in demo program")
}

func runRun(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid argument %q: must be an integer", args[0])
	}

	d, err := driver.New(configFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("configuring driver: %w", err)
	}

	code, err := loadProgram(cmd)
	if err != nil {
		return err
	}

	instrumented, err := d.InstrumentCode(code, nil)
	if err != nil {
		return fmt.Errorf("instrumenting demo program: %w", err)
	}

	result, err := hostvm.Run(instrumented, n)
	if err != nil {
		return fmt.Errorf("running demo program: %w", err)
	}
	cmd.Printf("result: %v\n", result)

	if d.PendingDeinstrument() {
		root := &moduleRoot{code: instrumented}
		if err := d.DeinstrumentSeen([]replacer.Root{root}); err != nil {
			return fmt.Errorf("deinstrument round: %w", err)
		}
	}

	report := d.GetCoverage()
	rendered, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling coverage report: %w", err)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		cmd.Println(string(rendered))
		return nil
	}
	return os.WriteFile(outPath, rendered, 0o644)
}

// loadProgram returns the CodeUnit to run: the built-in demo program, or
// the --script path compiled via hostvm.Compile if one was given.
func loadProgram(cmd *cobra.Command) (*bytecode.CodeUnit, error) {
	path, _ := cmd.Flags().GetString("script")
	if path == "" {
		return demoProgram(), nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	code, err := hostvm.Compile(path, string(source))
	if err != nil {
		return nil, fmt.Errorf("compiling script %s: %w", path, err)
	}
	return code, nil
}

func configFromFlags(cmd *cobra.Command) covcfg.Config {
	branch, _ := cmd.Flags().GetBool("branch")
	immediate, _ := cmd.Flags().GetBool("immediate")
	threshold, _ := cmd.Flags().GetInt("d-miss-threshold")
	return covcfg.Config{Branch: branch, Immediate: immediate, DMissThreshold: threshold}
}
