package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"smelt/internal/errors"
	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/lower"
	"smelt/internal/target"
)

var cliLog = commonlog.GetLogger("smelt.cli")

func newLowerCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lower <file.mg>",
		Short: "Lower every function and print the resulting graphs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(rootOpts, args[0])
		},
		SilenceUsage: true,
	}
}

func runLower(opts *rootOptions, path string) error {
	startTime := time.Now()
	session := uuid.NewString()
	cliLog.Debugf("lowering session %s: %s", session, path)

	res, source, err := loadFile(opts, path)
	if err != nil {
		return err
	}

	reporter := errors.NewErrorReporter(path, source)
	if len(res.Errors) > 0 {
		fmt.Print(reporter.FormatErrors(res.Errors))
		return fmt.Errorf("%d error(s)", len(res.Errors))
	}

	h := buildHeap(res.Target)
	failed := 0
	for _, fn := range res.Functions {
		g, diags := lower.LowerFunction(fn, res.Target, h.Factory())
		if len(diags) > 0 {
			fmt.Print(reporter.FormatErrors(diags))
			failed += len(diags)
			continue
		}
		fmt.Printf("fn %s:\n%s\n", fn.Name, graph.Print(g))
	}

	if failed > 0 {
		color.Red("Lowering failed after %s", formatDuration(time.Since(startTime)))
		return fmt.Errorf("%d error(s)", failed)
	}
	color.Green("Successfully lowered %s (target %s) in %s",
		path, res.Target, formatDuration(time.Since(startTime)))
	return nil
}

// buildHeap creates the constant pool the lowered graphs reference. Only the
// 64-bit object model is simulated, so 32-bit targets borrow a 64-bit pool:
// its references are opaque addresses as far as lowering is concerned, but
// evaluation stays 64-bit only.
func buildHeap(cfg target.Config) *heap.Heap {
	if cfg.Is64() {
		return heap.New(cfg)
	}
	pool := target.Default64()
	pool.ByteOrder = cfg.ByteOrder
	return heap.New(pool)
}
