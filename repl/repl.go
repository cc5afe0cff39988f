// Package repl implements an interactive loop for experimenting with the
// lowering pass: each line is parsed as a full program and every function in
// it is lowered and printed.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"smelt/internal/errors"
	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/lower"
	"smelt/internal/parser"
	"smelt/internal/target"
)

const PROMPT = ">> "

func Start(in io.Reader) {
	scanner := bufio.NewScanner(in)
	h := heap.New(target.Default64())

	for {
		fmt.Print(PROMPT)
		scanned := scanner.Scan()
		if !scanned {
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		res, err := parser.ParseString("repl", line)
		if err != nil {
			continue // the parser already printed a caret diagnostic
		}

		reporter := errors.NewErrorReporter("repl", line)
		if len(res.Errors) > 0 {
			fmt.Print(reporter.FormatErrors(res.Errors))
			continue
		}

		for _, fn := range res.Functions {
			g, diags := lower.LowerFunction(fn, res.Target, h.Factory())
			if len(diags) > 0 {
				fmt.Print(reporter.FormatErrors(diags))
				continue
			}
			fmt.Printf("fn %s:\n%s\n", fn.Name, graph.Print(g))
		}
	}
}
