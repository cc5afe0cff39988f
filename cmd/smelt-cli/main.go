package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

type rootOptions struct {
	Verbose    int
	TargetFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "smelt",
		Short: "Lower dynamic-value operations to machine-level graphs",
		Long: `smelt reads .mg files describing operations on dynamically typed
values and lowers each function to an explicit machine-level graph:
guarded numeric conversions, type tests, boxing and unboxing, and
structured allocation, with deoptimization exits where a speculation
can fail.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(opts.Verbose, nil)
		},
	}

	cmd.PersistentFlags().IntVarP(&opts.Verbose, "verbose", "v", 0, "log verbosity (0-2)")
	cmd.PersistentFlags().StringVar(&opts.TargetFile, "target", "", "YAML target description (overrides any target block)")

	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newLowerCommand(opts))
	cmd.AddCommand(newRunCommand(opts))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
