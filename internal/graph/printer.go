package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Printer renders a lowered graph as deterministic text, for dumps and golden
// tests.
type Printer struct {
	out strings.Builder
}

// Print returns the textual form of the graph.
func Print(g *Graph) string {
	p := &Printer{}
	p.printGraph(g)
	return p.out.String()
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) printGraph(g *Graph) {
	params := make([]string, len(g.Params))
	for i, v := range g.Params {
		params[i] = fmt.Sprintf("%s: %s", v, v.Rep)
	}
	p.writeLine("graph(%s) {", strings.Join(params, ", "))
	for _, b := range g.Blocks {
		if b != g.Entry && len(b.Preds) == 0 {
			// Unreachable label that was never jumped to.
			continue
		}
		p.printBlock(b)
	}
	p.writeLine("}")
}

func (p *Printer) printBlock(b *Block) {
	header := fmt.Sprintf("b%d", b.ID)
	if len(b.Params) > 0 {
		params := make([]string, len(b.Params))
		for i, v := range b.Params {
			params[i] = fmt.Sprintf("%s: %s", v, v.Rep)
		}
		header += "(" + strings.Join(params, ", ") + ")"
	}
	if b.Loop {
		header += " [loop]"
	}
	p.writeLine("%s:", header)
	for _, instr := range b.Instrs {
		p.writeLine("  %s", formatInstr(instr))
	}
	if b.Term != nil {
		p.writeLine("  %s", formatInstr(b.Term))
	}
}

func formatValues(vals []*Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func formatEdge(e Edge) string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("b%d", e.Target.ID)
	}
	return fmt.Sprintf("b%d(%s)", e.Target.ID, formatValues(e.Args))
}

func formatSlot(base, index *Value, offset int32, log2 uint8) string {
	s := base.String()
	if offset != 0 {
		s += fmt.Sprintf("%+d", offset)
	}
	if index != nil {
		s += fmt.Sprintf("+%s<<%d", index, log2)
	}
	return s
}

func formatInstr(instr Instruction) string {
	switch op := instr.(type) {
	case *ConstantOp:
		if op.IsRef {
			return fmt.Sprintf("%s = heap_constant %s", op.Out, op.Ref.Name)
		}
		switch op.Out.Rep {
		case RepFloat64:
			return fmt.Sprintf("%s = float64_constant %s", op.Out,
				strconv.FormatFloat(op.Float, 'g', -1, 64))
		case RepWord64:
			return fmt.Sprintf("%s = word64_constant %d", op.Out, op.Word)
		case RepWordPtr:
			return fmt.Sprintf("%s = wordptr_constant %d", op.Out, int64(op.Word))
		default:
			return fmt.Sprintf("%s = word32_constant %d", op.Out, int32(uint32(op.Word)))
		}
	case *PureOp:
		return fmt.Sprintf("%s = %s %s", op.Out, op.Kind, formatValues(op.Args))
	case *CheckedAddOp:
		return fmt.Sprintf("%s, %s = int32_add_check_overflow %s, %s",
			op.OutVal, op.OutOvf, op.Left, op.Right)
	case *LoadOp:
		return fmt.Sprintf("%s = load.%s %s", op.Out, op.Rep,
			formatSlot(op.Base, op.Index, op.Offset, op.ElementSizeLog2))
	case *StoreOp:
		barrier := "none"
		if op.Barrier == FullWriteBarrier {
			barrier = "full"
		}
		return fmt.Sprintf("store.%s %s, %s barrier=%s", op.Rep,
			formatSlot(op.Base, op.Index, op.Offset, op.ElementSizeLog2),
			op.Val, barrier)
	case *AllocateOp:
		return fmt.Sprintf("%s = allocate %s %s", op.Out, op.Size, op.Hint)
	case *CallBuiltinOp:
		return fmt.Sprintf("%s = call %s(%s)", op.Out, op.Builtin, formatValues(op.Args))
	case *DeoptimizeIfOp:
		name := "deoptimize_if"
		if op.Negated {
			name = "deoptimize_if_not"
		}
		return fmt.Sprintf("%s %s reason=%s fs=%s feedback=%q",
			name, op.Cond, op.Reason, op.FrameState, op.Feedback.Token)
	case *GotoTerminator:
		return fmt.Sprintf("goto %s", formatEdge(op.Dest))
	case *BranchTerminator:
		return fmt.Sprintf("branch %s -> %s, %s", op.Cond,
			formatEdge(op.IfTrue), formatEdge(op.IfFalse))
	case *ReturnTerminator:
		if op.Val == nil {
			return "return"
		}
		return fmt.Sprintf("return %s", op.Val)
	}
	return "<unknown>"
}
