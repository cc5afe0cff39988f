package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/lower"
	"smelt/internal/mid"
)

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.mg> <function> [arg...]",
		Short: "Lower one function and evaluate it on the simulated heap",
		Long: `Lower one function and evaluate it against a simulated heap.

Untagged arguments are plain numeric literals. Tagged arguments use one
of the forms: true, false, hole, smi:N, num:F, bigint:N, str:TEXT.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(rootOpts, args[0], args[1], args[2:])
		},
		SilenceUsage: true,
	}
}

func runEvaluate(opts *rootOptions, path, name string, rawArgs []string) error {
	res, _, err := loadFile(opts, path)
	if err != nil {
		return err
	}
	if err := lower.LowerError(res.Errors); err != nil {
		return err
	}
	if !res.Target.Is64() {
		return fmt.Errorf("run needs a 64-bit target (have %s)", res.Target)
	}

	var fn *mid.Function
	for _, f := range res.Functions {
		if f.Name == name {
			fn = f
			break
		}
	}
	if fn == nil {
		return fmt.Errorf("no function named %q in %s", name, path)
	}
	if len(rawArgs) != len(fn.Params) {
		return fmt.Errorf("%s takes %d argument(s), got %d", name, len(fn.Params), len(rawArgs))
	}

	h := heap.New(res.Target)
	g, diags := lower.LowerFunction(fn, res.Target, h.Factory())
	if err := lower.LowerError(diags); err != nil {
		return err
	}

	args := make([]graph.Slot, len(rawArgs))
	for i, raw := range rawArgs {
		slot, err := parseArg(h, fn.Params[i], raw)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		args[i] = slot
	}

	result, err := graph.Run(g, h, args...)
	if err != nil {
		return err
	}
	if result.Deopted {
		color.Yellow("deoptimized: %s", result.Reason)
		return nil
	}
	fmt.Println(formatResult(h, result))
	return nil
}

func parseArg(h *heap.Heap, p mid.Param, raw string) (graph.Slot, error) {
	if !p.Tagged {
		if p.Rep == mid.RepFloat64 {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return graph.Slot{}, fmt.Errorf("bad float64 literal %q", raw)
			}
			return graph.Float64Slot(f), nil
		}
		// Accept either sign; the word is reinterpreted per the operation.
		if v, err := strconv.ParseInt(raw, 0, 64); err == nil {
			return graph.Word64Slot(uint64(v)), nil
		}
		v, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return graph.Slot{}, fmt.Errorf("bad integer literal %q", raw)
		}
		return graph.Word64Slot(v), nil
	}

	switch raw {
	case "true":
		return graph.TaggedSlot(uint64(h.Factory().TrueRef())), nil
	case "false":
		return graph.TaggedSlot(uint64(h.Factory().FalseRef())), nil
	case "hole":
		return graph.TaggedSlot(uint64(h.Factory().TheHoleRef())), nil
	}

	kind, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return graph.Slot{}, fmt.Errorf("bad tagged literal %q", raw)
	}
	switch kind {
	case "smi":
		v, err := strconv.ParseInt(rest, 0, 64)
		if err != nil {
			return graph.Slot{}, fmt.Errorf("bad smi literal %q", raw)
		}
		return graph.TaggedSlot(h.SmiTag(v)), nil
	case "num":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return graph.Slot{}, fmt.Errorf("bad number literal %q", raw)
		}
		return graph.TaggedSlot(uint64(h.NewHeapNumber(f))), nil
	case "bigint":
		v, err := strconv.ParseInt(rest, 0, 64)
		if err != nil {
			return graph.Slot{}, fmt.Errorf("bad bigint literal %q", raw)
		}
		if v < 0 {
			return graph.TaggedSlot(uint64(h.NewBigInt(true, uint64(-v)))), nil
		}
		return graph.TaggedSlot(uint64(h.NewBigInt(false, uint64(v)))), nil
	case "str":
		return graph.TaggedSlot(uint64(h.NewSeqOneByteString([]byte(rest)))), nil
	}
	return graph.Slot{}, fmt.Errorf("bad tagged literal %q", raw)
}

func formatResult(h *heap.Heap, r graph.Result) string {
	switch r.Rep {
	case graph.RepFloat64:
		return fmt.Sprintf("float64 %v", r.Val.F)
	case graph.RepWord32:
		return fmt.Sprintf("word32 %d (unsigned %d)", int32(uint32(r.Val.W)), uint32(r.Val.W))
	case graph.RepWord64, graph.RepWordPtr:
		return fmt.Sprintf("word64 %d (unsigned %d)", int64(r.Val.W), r.Val.W)
	}
	return "tagged " + formatTagged(h, r.Val.W)
}

func formatTagged(h *heap.Heap, w uint64) string {
	if h.IsSmi(w) {
		return fmt.Sprintf("smi %d", h.SmiUntag(w))
	}
	ref := heap.Ref(w)
	f := h.Factory()
	switch ref {
	case f.TrueRef():
		return "true"
	case f.FalseRef():
		return "false"
	case f.TheHoleRef():
		return "hole"
	case f.EmptyFixedArrRef():
		return "fixed_array[]"
	}
	m := h.MapOf(ref)
	if hn, ok := f.MapNamed("heap_number_map"); ok && m == hn {
		return fmt.Sprintf("number %v", h.NumberValue(ref))
	}
	if bi, ok := f.MapNamed("bigint_map"); ok && m == bi {
		neg, mag := h.BigIntValue(ref)
		if neg {
			return fmt.Sprintf("bigint -%d", mag)
		}
		return fmt.Sprintf("bigint %d", mag)
	}
	if s, ok := h.StringContent(ref); ok {
		return fmt.Sprintf("string %q", s)
	}
	return fmt.Sprintf("object @%#x", w)
}
