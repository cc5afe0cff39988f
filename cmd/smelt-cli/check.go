package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"smelt/internal/errors"
	"smelt/internal/lower"
	"smelt/internal/parser"
	"smelt/internal/target"
)

func newCheckCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.mg>",
		Short: "Validate a file without emitting graphs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0])
		},
		SilenceUsage: true,
	}
}

func runCheck(opts *rootOptions, path string) error {
	startTime := time.Now()

	res, source, err := loadFile(opts, path)
	if err != nil {
		return err
	}

	reporter := errors.NewErrorReporter(path, source)
	diags := res.Errors
	for _, fn := range res.Functions {
		diags = append(diags, lower.Check(fn, res.Target)...)
	}

	if len(diags) > 0 {
		fmt.Print(reporter.FormatErrors(diags))
		color.Red("Check failed after %s", formatDuration(time.Since(startTime)))
		return fmt.Errorf("%d error(s)", len(diags))
	}

	color.Green("Successfully checked %s (%d function(s), target %s) in %s",
		path, len(res.Functions), res.Target, formatDuration(time.Since(startTime)))
	return nil
}

// loadFile parses and converts one source file, applying the --target
// override when set.
func loadFile(opts *rootOptions, path string) (*parser.Result, string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	res, err := parser.ParseString(path, string(source))
	if err != nil {
		return nil, "", err
	}

	if opts.TargetFile != "" {
		cfg, err := target.Load(opts.TargetFile)
		if err != nil {
			return nil, "", err
		}
		res.Target = cfg
	}
	return res, string(source), nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
