package lower

import (
	"smelt/internal/graph"
	"smelt/internal/layout"
	"smelt/internal/mid"
)

// LowerUnbox converts a dynamic value back to a raw machine value with no
// runtime checks: the stated assumption has already been proven by the
// requester, so a violating input is that requester's bug, not a guard case.
func (r *Reducer) LowerUnbox(n *mid.Unbox, input *graph.Value) *graph.Value {
	a := r.a
	assert(input.Rep == graph.RepTagged, "unboxing takes a dynamic value, got %s", input.Rep)

	switch n.Kind {
	case mid.UnboxBit:
		assert(n.Assumption == mid.FromObject, "bit unboxing takes the object assumption")
		return a.TaggedEqual(input, a.HeapConstant(r.f.TrueValue()))

	case mid.UnboxInt32:
		switch n.Assumption {
		case mid.FromSmi:
			return r.untagSmi(input)
		case mid.FromNumberOrOddball:
			return r.unboxNumberOrOddball(input, graph.RepWord32)
		}

	case mid.UnboxInt64:
		assert(a.Target.Is64(), "int64 unboxing needs a 64-bit target")
		switch n.Assumption {
		case mid.FromSmi:
			return a.ChangeInt32ToInt64(r.untagSmi(input))
		case mid.FromNumberOrOddball:
			return r.unboxNumberOrOddball(input, graph.RepWord64)
		}

	case mid.UnboxUint32:
		assert(n.Assumption == mid.FromNumberOrOddball,
			"uint32 unboxing takes the number-or-oddball assumption")
		done := a.Label(graph.RepWord32)
		boxed := a.Label()
		a.GotoIfNot(r.isSmi(input), boxed)
		a.Goto(done, r.untagSmi(input))
		a.Bind(boxed)
		payload := r.loadField(input, layout.FieldHeapNumberValue())
		a.Goto(done, a.TruncateFloat64ToUint32(payload))
		return a.Bind1(done)
	}
	panic("lower: malformed unboxing request")
}

// unboxNumberOrOddball branches on the tag: inline integers untag directly,
// heap inputs load the float payload and truncate. The truncation here
// reinterprets, it does not round; it is only valid because the requester
// proved the payload exactly integral.
func (r *Reducer) unboxNumberOrOddball(input *graph.Value, rep graph.RegisterRep) *graph.Value {
	a := r.a
	done := a.Label(rep)
	boxed := a.Label()
	a.GotoIfNot(r.isSmi(input), boxed)
	untagged := r.untagSmi(input)
	if rep == graph.RepWord64 {
		a.Goto(done, a.ChangeInt32ToInt64(untagged))
	} else {
		a.Goto(done, untagged)
	}
	a.Bind(boxed)
	// Oddballs keep their numeric payload at the same offset as the float
	// box, so one load serves both.
	payload := r.loadField(input, layout.FieldHeapNumberValue())
	if rep == graph.RepWord64 {
		a.Goto(done, a.TruncateFloat64ToInt64(payload))
	} else {
		a.Goto(done, a.TruncateFloat64ToInt32(payload))
	}
	return a.Bind1(done)
}

// LowerUnboxOrDeopt converts a dynamic value to a raw machine value behind
// runtime guards. A value violating the claimed kind takes a deoptimization
// edge; there is no error return.
func (r *Reducer) LowerUnboxOrDeopt(n *mid.UnboxOrDeopt, input *graph.Value) *graph.Value {
	a := r.a
	assert(input.Rep == graph.RepTagged, "guarded unboxing takes a dynamic value, got %s", input.Rep)
	fs := graph.FrameState{ID: n.FrameState}
	fb := graph.Feedback{Token: n.Feedback}

	switch n.To {
	case mid.ToInt32:
		if n.From == mid.KindSmi {
			a.DeoptimizeIfNot(r.isSmi(input), fs, graph.DeoptNotASmi, fb)
			return r.untagSmi(input)
		}
		assert(n.From == mid.KindNumber, "int32 guarded unboxing takes a smi or number claim")
		done := a.Label(graph.RepWord32)
		boxed := a.Label()
		a.GotoIfNot(r.isSmi(input), boxed)
		a.Goto(done, r.untagSmi(input))
		a.Bind(boxed)
		payload := r.heapObjectToFloat64OrDeopt(input, mid.KindNumber, fs, fb)
		a.Goto(done, r.changeFloat64ToInt32OrDeopt(payload, fs, n.MinusZero, fb))
		return a.Bind1(done)

	case mid.ToInt64:
		assert(a.Target.Is64(), "int64 guarded unboxing needs a 64-bit target")
		assert(n.From == mid.KindNumber, "int64 guarded unboxing takes a number claim")
		done := a.Label(graph.RepWord64)
		boxed := a.Label()
		a.GotoIfNot(r.isSmi(input), boxed)
		a.Goto(done, a.ChangeInt32ToInt64(r.untagSmi(input)))
		a.Bind(boxed)
		payload := r.heapObjectToFloat64OrDeopt(input, mid.KindNumber, fs, fb)
		a.Goto(done, r.changeFloat64ToInt64OrDeopt(payload, fs, n.MinusZero, fb))
		return a.Bind1(done)

	case mid.ToFloat64:
		assert(n.From == mid.KindNumber || n.From == mid.KindNumberOrBoolean ||
			n.From == mid.KindNumberOrOddball,
			"float64 guarded unboxing takes a numeric claim, got %s", n.From)
		done := a.Label(graph.RepFloat64)
		boxed := a.Label()
		a.GotoIfNot(r.isSmi(input), boxed)
		a.Goto(done, a.ChangeInt32ToFloat64(r.untagSmi(input)))
		a.Bind(boxed)
		a.Goto(done, r.heapObjectToFloat64OrDeopt(input, n.From, fs, fb))
		return a.Bind1(done)

	case mid.ToArrayIndex:
		assert(n.From == mid.KindNumberOrString,
			"array index unboxing takes the number-or-string claim, got %s", n.From)
		return r.lowerToArrayIndex(n, input, fs, fb)
	}
	panic("lower: malformed guarded unboxing request")
}

// heapObjectToFloat64OrDeopt verifies the heap object carries a float payload
// for the claimed kind and loads it. Booleans and other oddballs share the
// payload offset with the float box.
func (r *Reducer) heapObjectToFloat64OrDeopt(input *graph.Value, from mid.ObjectKind,
	fs graph.FrameState, fb graph.Feedback) *graph.Value {
	a := r.a
	m := r.loadMap(input)
	isNumber := a.TaggedEqual(m, a.HeapConstant(r.f.HeapNumberMap()))
	switch from {
	case mid.KindNumber:
		a.DeoptimizeIfNot(isNumber, fs, graph.DeoptNotAHeapNumber, fb)
	case mid.KindNumberOrBoolean:
		isBoolean := a.TaggedEqual(m, a.HeapConstant(r.f.BooleanMap()))
		a.DeoptimizeIfNot(a.Word32Or(isNumber, isBoolean), fs,
			graph.DeoptNotANumberOrBoolean, fb)
	case mid.KindNumberOrOddball:
		instanceType := r.loadInstanceType(m)
		isOddball := a.Word32Equal(instanceType, a.Word32Constant(layout.OddballType))
		a.DeoptimizeIfNot(a.Word32Or(isNumber, isOddball), fs,
			graph.DeoptNotANumberOrOddball, fb)
	default:
		assert(false, "no float payload for claim %s", from)
	}
	return r.loadField(input, layout.FieldHeapNumberValue())
}

// lowerToArrayIndex accepts an inline integer, an exactly integral float in
// the safe-integer range, or a canonical numeric string. Everything else
// deopts.
func (r *Reducer) lowerToArrayIndex(n *mid.UnboxOrDeopt, input *graph.Value,
	fs graph.FrameState, fb graph.Feedback) *graph.Value {
	a := r.a
	if !a.Target.Is64() {
		return r.lowerToArrayIndex32(n, input, fs, fb)
	}

	done := a.Label(graph.RepWord64)
	boxed := a.Label()
	a.GotoIfNot(r.isSmi(input), boxed)
	a.Goto(done, a.ChangeInt32ToInt64(r.untagSmi(input)))

	a.Bind(boxed)
	m := r.loadMap(input)
	notNumber := a.Label()
	a.GotoIfNot(a.TaggedEqual(m, a.HeapConstant(r.f.HeapNumberMap())), notNumber)
	payload := r.loadField(input, layout.FieldHeapNumberValue())
	index := a.TruncateFloat64ToInt64(payload)
	exact := a.Float64Equal(a.ChangeInt64ToFloat64(index), payload)
	a.DeoptimizeIfNot(exact, fs, graph.DeoptLostPrecisionOrNaN, fb)
	if n.MinusZero == mid.CheckForMinusZero {
		a.If(a.Word64Equal(index, a.Word64Constant(0)))
		negative := a.Int32LessThan(a.Float64ExtractHighWord32(payload), a.Word32Constant(0))
		a.DeoptimizeIf(negative, fs, graph.DeoptMinusZero, fb)
		a.EndIf()
	}
	// Strictly inside the exactly representable magnitude range.
	below := a.Int64LessThan(index, a.Word64Constant(layout.MaxSafeInteger+1))
	above := a.Int64LessThan(a.Word64Constant(negInt64(layout.MaxSafeInteger+1)), index)
	a.DeoptimizeIfNot(a.Word32And(below, above), fs, graph.DeoptNotAnArrayIndex, fb)
	a.Goto(done, index)

	a.Bind(notNumber)
	instanceType := r.loadInstanceType(m)
	isString := a.Uint32LessThan(instanceType, a.Word32Constant(layout.FirstNonstringType))
	a.DeoptimizeIfNot(isString, fs, graph.DeoptNotAString, fb)
	parsed := a.CallBuiltin(graph.BuiltinStringToArrayIndex, graph.RepWord64, input)
	a.DeoptimizeIf(a.Int64LessThan(parsed, a.Word64Constant(0)), fs,
		graph.DeoptNotAnArrayIndex, fb)
	a.Goto(done, parsed)
	return a.Bind1(done)
}

// lowerToArrayIndex32 is the word32 rendition for 32-bit targets. Every safe
// index already fits 32 bits there, so the round-trip guard subsumes the
// magnitude bound.
func (r *Reducer) lowerToArrayIndex32(n *mid.UnboxOrDeopt, input *graph.Value,
	fs graph.FrameState, fb graph.Feedback) *graph.Value {
	a := r.a
	done := a.Label(graph.RepWord32)
	boxed := a.Label()
	a.GotoIfNot(r.isSmi(input), boxed)
	a.Goto(done, r.untagSmi(input))

	a.Bind(boxed)
	m := r.loadMap(input)
	notNumber := a.Label()
	a.GotoIfNot(a.TaggedEqual(m, a.HeapConstant(r.f.HeapNumberMap())), notNumber)
	payload := r.loadField(input, layout.FieldHeapNumberValue())
	a.Goto(done, r.changeFloat64ToInt32OrDeopt(payload, fs, n.MinusZero, fb))

	a.Bind(notNumber)
	instanceType := r.loadInstanceType(m)
	isString := a.Uint32LessThan(instanceType, a.Word32Constant(layout.FirstNonstringType))
	a.DeoptimizeIfNot(isString, fs, graph.DeoptNotAString, fb)
	parsed := a.CallBuiltin(graph.BuiltinStringToArrayIndex, graph.RepWord32, input)
	a.DeoptimizeIf(a.Int32LessThan(parsed, a.Word32Constant(0)), fs,
		graph.DeoptNotAnArrayIndex, fb)
	a.Goto(done, parsed)
	return a.Bind1(done)
}

func negInt64(v int64) uint64 { return uint64(-v) }
