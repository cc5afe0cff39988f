package lower

import (
	"fmt"

	"smelt/internal/errors"
	"smelt/internal/graph"
	"smelt/internal/mid"
	"smelt/internal/target"
)

// Check validates a function's lowering requests against the target before
// any code is emitted. A clean result guarantees the reducer's own assertions
// cannot fire.
func Check(fn *mid.Function, cfg target.Config) []errors.CompilerError {
	c := &checker{cfg: cfg, reps: make(map[mid.ValueRef]graph.RegisterRep)}
	for _, p := range fn.Params {
		if _, dup := c.reps[p.Name]; dup {
			c.errorf(errors.ErrorDuplicateDefinition, mid.Position{},
				"parameter %s declared twice", p.Name)
			continue
		}
		c.reps[p.Name] = paramRep(p)
	}
	for _, st := range fn.Stmts {
		if _, dup := c.reps[st.Dest]; dup {
			c.errorf(errors.ErrorDuplicateDefinition, st.Pos, "%s defined twice", st.Dest)
			continue
		}
		c.checkNode(st)
	}
	if fn.Ret == "" {
		c.errs = append(c.errs, errors.CompilerError{
			Level: errors.Error, Code: errors.ErrorMissingResult,
			Message: "function has no result value",
		})
	} else if _, ok := c.reps[fn.Ret]; !ok {
		c.errorf(errors.ErrorMissingResult, mid.Position{},
			"result value %s is not defined", fn.Ret)
	}
	return c.errs
}

type checker struct {
	cfg  target.Config
	reps map[mid.ValueRef]graph.RegisterRep
	errs []errors.CompilerError
}

func (c *checker) errorf(code string, pos mid.Position, format string, args ...any) {
	c.errs = append(c.errs, errors.CompilerError{
		Level:    errors.Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: pos,
	})
}

func paramRep(p mid.Param) graph.RegisterRep {
	if p.Tagged {
		return graph.RepTagged
	}
	switch p.Rep {
	case mid.RepWord64:
		return graph.RepWord64
	case mid.RepWordPtr:
		return graph.RepWordPtr
	case mid.RepFloat64:
		return graph.RepFloat64
	}
	return graph.RepWord32
}

// operand verifies one input exists and has the expected representation.
func (c *checker) operand(st mid.Stmt, ref mid.ValueRef, want graph.RegisterRep) bool {
	got, ok := c.reps[ref]
	if !ok {
		c.errorf(errors.ErrorUndefinedValue, st.Pos, "%s uses undefined value %s", st.Dest, ref)
		return false
	}
	if got != want {
		c.errorf(errors.ErrorRepMismatch, st.Pos,
			"%s needs a %s operand, %s is %s", st.Dest, want, ref, got)
		return false
	}
	return true
}

func (c *checker) checkNode(st mid.Stmt) {
	switch n := st.Node.(type) {
	case *mid.ChangeOrDeopt:
		in, out := conversionReps(n.Kind)
		c.operand(st, n.Input, in)
		c.define(st.Dest, out)
		if (n.Kind == mid.ChangeInt64ToInt32 || n.Kind == mid.ChangeUint64ToInt32 ||
			n.Kind == mid.ChangeUint64ToInt64 || n.Kind == mid.ChangeFloat64ToInt64) && !c.cfg.Is64() {
			c.errorf(errors.ErrorTargetTooNarrow, st.Pos,
				"%s conversion needs a 64-bit target", n.Kind)
		}

	case *mid.TypeTest:
		c.operand(st, n.Input, graph.RepTagged)
		if n.Kind == mid.TestBigInt64 && !c.cfg.Is64() {
			c.errorf(errors.ErrorTargetTooNarrow, st.Pos, "bigint64 test needs a 64-bit target")
		}
		if n.Assumption == mid.AssumeBigInt &&
			n.Kind != mid.TestBigInt && n.Kind != mid.TestBigInt64 {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"bigint assumption only serves bigint tests, not %s", n.Kind)
		}
		c.define(st.Dest, graph.RepWord32)

	case *mid.Box:
		c.checkBox(st, n)
		c.define(st.Dest, graph.RepTagged)

	case *mid.Unbox:
		c.operand(st, n.Input, graph.RepTagged)
		c.checkUnbox(st, n)

	case *mid.UnboxOrDeopt:
		c.operand(st, n.Input, graph.RepTagged)
		c.checkUnboxOrDeopt(st, n)

	case *mid.NewConsString:
		c.operand(st, n.Length, graph.RepWord32)
		c.operand(st, n.First, graph.RepTagged)
		c.operand(st, n.Second, graph.RepTagged)
		c.define(st.Dest, graph.RepTagged)

	case *mid.NewArray:
		c.operand(st, n.Length, graph.RepWordPtr)
		c.define(st.Dest, graph.RepTagged)

	case *mid.ArrayMinMax:
		c.operand(st, n.Array, graph.RepTagged)
		c.define(st.Dest, graph.RepTagged)

	case *mid.LoadFieldByIndex:
		c.operand(st, n.Object, graph.RepTagged)
		c.operand(st, n.Index, graph.RepWord32)
		c.define(st.Dest, graph.RepTagged)

	default:
		c.errorf(errors.ErrorParse, st.Pos, "%s binds an unknown node kind %T", st.Dest, st.Node)
	}
}

func (c *checker) define(ref mid.ValueRef, rep graph.RegisterRep) {
	c.reps[ref] = rep
}

func conversionReps(kind mid.ChangeKind) (in, out graph.RegisterRep) {
	switch kind {
	case mid.ChangeUint32ToInt32:
		return graph.RepWord32, graph.RepWord32
	case mid.ChangeInt64ToInt32, mid.ChangeUint64ToInt32:
		return graph.RepWord64, graph.RepWord32
	case mid.ChangeUint64ToInt64:
		return graph.RepWord64, graph.RepWord64
	case mid.ChangeFloat64ToInt32:
		return graph.RepFloat64, graph.RepWord32
	default:
		return graph.RepFloat64, graph.RepWord64
	}
}

func (c *checker) checkBox(st mid.Stmt, n *mid.Box) {
	inRep := map[mid.InputRep]graph.RegisterRep{
		mid.RepWord32:  graph.RepWord32,
		mid.RepWord64:  graph.RepWord64,
		mid.RepFloat64: graph.RepFloat64,
	}
	want, ok := inRep[n.Rep]
	if !ok {
		c.errorf(errors.ErrorRepMismatch, st.Pos, "%s cannot box a %s value", st.Dest, n.Rep)
		return
	}
	c.operand(st, n.Input, want)

	wordInterp := n.Interpretation == mid.InterpretSigned || n.Interpretation == mid.InterpretUnsigned
	switch n.Kind {
	case mid.BoxBigInt:
		if !c.cfg.Is64() {
			c.errorf(errors.ErrorTargetTooNarrow, st.Pos, "bigint boxing needs a 64-bit target")
		}
		if n.Rep != mid.RepWord64 || !wordInterp {
			c.errorf(errors.ErrorBadInterpretation, st.Pos,
				"bigint boxing takes a signed or unsigned word64")
		}
	case mid.BoxNumber:
		if n.Rep != mid.RepFloat64 && !wordInterp {
			c.errorf(errors.ErrorBadInterpretation, st.Pos,
				"number boxing of a word takes a signed or unsigned interpretation")
		}
		if n.Rep == mid.RepWord64 && !c.cfg.Is64() {
			c.errorf(errors.ErrorTargetTooNarrow, st.Pos, "word64 number boxing needs a 64-bit target")
		}
	case mid.BoxHeapNumber:
		if n.Rep != mid.RepFloat64 {
			c.errorf(errors.ErrorRepMismatch, st.Pos, "heap number boxing takes a float64")
		}
	case mid.BoxSmi, mid.BoxBoolean:
		if n.Rep != mid.RepWord32 {
			c.errorf(errors.ErrorRepMismatch, st.Pos, "%s boxing takes a word32", n.Kind)
		}
	case mid.BoxString:
		if n.Rep != mid.RepWord32 {
			c.errorf(errors.ErrorRepMismatch, st.Pos, "string boxing takes a word32")
		}
		if n.Interpretation != mid.InterpretCharCode && n.Interpretation != mid.InterpretCodePoint {
			c.errorf(errors.ErrorBadInterpretation, st.Pos,
				"string boxing takes a char code or code point interpretation")
		}
	}
}

func (c *checker) checkUnbox(st mid.Stmt, n *mid.Unbox) {
	switch n.Kind {
	case mid.UnboxInt32:
		if n.Assumption == mid.FromObject {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"int32 unboxing takes the smi or number-or-oddball assumption")
		}
		c.define(st.Dest, graph.RepWord32)
	case mid.UnboxInt64:
		if n.Assumption == mid.FromObject {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"int64 unboxing takes the smi or number-or-oddball assumption")
		}
		if !c.cfg.Is64() {
			c.errorf(errors.ErrorTargetTooNarrow, st.Pos, "int64 unboxing needs a 64-bit target")
		}
		c.define(st.Dest, graph.RepWord64)
	case mid.UnboxUint32:
		if n.Assumption != mid.FromNumberOrOddball {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"uint32 unboxing takes the number-or-oddball assumption")
		}
		c.define(st.Dest, graph.RepWord32)
	case mid.UnboxBit:
		if n.Assumption != mid.FromObject {
			c.errorf(errors.ErrorBadAssumption, st.Pos, "bit unboxing takes the object assumption")
		}
		c.define(st.Dest, graph.RepWord32)
	}
}

func (c *checker) checkUnboxOrDeopt(st mid.Stmt, n *mid.UnboxOrDeopt) {
	switch n.To {
	case mid.ToInt32:
		if n.From != mid.KindSmi && n.From != mid.KindNumber {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"guarded int32 unboxing takes a smi or number claim, not %s", n.From)
		}
		c.define(st.Dest, graph.RepWord32)
	case mid.ToInt64:
		if n.From != mid.KindNumber {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"guarded int64 unboxing takes the number claim, not %s", n.From)
		}
		if !c.cfg.Is64() {
			c.errorf(errors.ErrorTargetTooNarrow, st.Pos, "guarded int64 unboxing needs a 64-bit target")
		}
		c.define(st.Dest, graph.RepWord64)
	case mid.ToFloat64:
		switch n.From {
		case mid.KindNumber, mid.KindNumberOrBoolean, mid.KindNumberOrOddball:
		default:
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"guarded float64 unboxing takes a numeric claim, not %s", n.From)
		}
		c.define(st.Dest, graph.RepFloat64)
	case mid.ToArrayIndex:
		if n.From != mid.KindNumberOrString {
			c.errorf(errors.ErrorBadAssumption, st.Pos,
				"array index unboxing takes the number-or-string claim, not %s", n.From)
		}
		if c.cfg.Is64() {
			c.define(st.Dest, graph.RepWord64)
		} else {
			c.define(st.Dest, graph.RepWord32)
		}
	}
}
