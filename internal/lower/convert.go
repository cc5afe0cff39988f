package lower

import (
	"math"

	"smelt/internal/graph"
	"smelt/internal/mid"
)

// LowerChangeOrDeopt narrows or widens a numeric representation. Every lossy
// case is guarded; the guard's failure is a deoptimization edge, never a
// silently truncated result.
func (r *Reducer) LowerChangeOrDeopt(n *mid.ChangeOrDeopt, input *graph.Value) *graph.Value {
	a := r.a
	fs := graph.FrameState{ID: n.FrameState}
	fb := graph.Feedback{Token: n.Feedback}

	switch n.Kind {
	case mid.ChangeUint32ToInt32:
		assert(input.Rep == graph.RepWord32, "uint32_to_int32 takes a word32, got %s", input.Rep)
		inRange := a.Uint32LessThanOrEqual(input, a.Word32Constant(math.MaxInt32))
		a.DeoptimizeIfNot(inRange, fs, graph.DeoptLostPrecision, fb)
		return input

	case mid.ChangeInt64ToInt32:
		assert(input.Rep == graph.RepWord64, "int64_to_int32 takes a word64, got %s", input.Rep)
		low := a.TruncateWord64ToWord32(input)
		exact := a.Word64Equal(a.ChangeInt32ToInt64(low), input)
		a.DeoptimizeIfNot(exact, fs, graph.DeoptLostPrecision, fb)
		return low

	case mid.ChangeUint64ToInt32:
		assert(input.Rep == graph.RepWord64, "uint64_to_int32 takes a word64, got %s", input.Rep)
		inRange := a.Uint64LessThanOrEqual(input, a.Word64Constant(math.MaxInt32))
		a.DeoptimizeIfNot(inRange, fs, graph.DeoptLostPrecision, fb)
		return a.TruncateWord64ToWord32(input)

	case mid.ChangeUint64ToInt64:
		assert(input.Rep == graph.RepWord64, "uint64_to_int64 takes a word64, got %s", input.Rep)
		inRange := a.Uint64LessThanOrEqual(input, a.Word64Constant(math.MaxInt64))
		a.DeoptimizeIfNot(inRange, fs, graph.DeoptLostPrecision, fb)
		return input

	case mid.ChangeFloat64ToInt32:
		assert(input.Rep == graph.RepFloat64, "float64_to_int32 takes a float64, got %s", input.Rep)
		return r.changeFloat64ToInt32OrDeopt(input, fs, n.MinusZero, fb)

	case mid.ChangeFloat64ToInt64:
		assert(input.Rep == graph.RepFloat64, "float64_to_int64 takes a float64, got %s", input.Rep)
		return r.changeFloat64ToInt64OrDeopt(input, fs, n.MinusZero, fb)
	}
	panic("lower: unknown conversion kind")
}

// changeFloat64ToInt32OrDeopt truncates toward zero and verifies the
// truncation was exact by widening it back. The truncation primitive's result
// is undefined on overflow and NaN, which is fine: any such input fails the
// round-trip compare and takes the deopt edge before the value is used.
func (r *Reducer) changeFloat64ToInt32OrDeopt(input *graph.Value, fs graph.FrameState,
	mode mid.MinusZeroMode, fb graph.Feedback) *graph.Value {
	a := r.a
	truncated := a.TruncateFloat64ToInt32(input)
	exact := a.Float64Equal(a.ChangeInt32ToFloat64(truncated), input)
	a.DeoptimizeIfNot(exact, fs, graph.DeoptLostPrecisionOrNaN, fb)
	if mode == mid.CheckForMinusZero {
		// -0.0 truncates to 0; only the sign bit of the input tells it apart
		// from +0.0.
		a.If(a.Word32Equal(truncated, a.Word32Constant(0)))
		negative := a.Int32LessThan(a.Float64ExtractHighWord32(input), a.Word32Constant(0))
		a.DeoptimizeIf(negative, fs, graph.DeoptMinusZero, fb)
		a.EndIf()
	}
	return truncated
}

func (r *Reducer) changeFloat64ToInt64OrDeopt(input *graph.Value, fs graph.FrameState,
	mode mid.MinusZeroMode, fb graph.Feedback) *graph.Value {
	a := r.a
	truncated := a.TruncateFloat64ToInt64(input)
	exact := a.Float64Equal(a.ChangeInt64ToFloat64(truncated), input)
	a.DeoptimizeIfNot(exact, fs, graph.DeoptLostPrecisionOrNaN, fb)
	if mode == mid.CheckForMinusZero {
		a.If(a.Word64Equal(truncated, a.Word64Constant(0)))
		negative := a.Int32LessThan(a.Float64ExtractHighWord32(input), a.Word32Constant(0))
		a.DeoptimizeIf(negative, fs, graph.DeoptMinusZero, fb)
		a.EndIf()
	}
	return truncated
}
