package lower

import (
	"smelt/internal/graph"
	"smelt/internal/layout"
	"smelt/internal/mid"
	"smelt/internal/target"
)

// LowerBox converts a raw machine value into the dynamic value encoding:
// inline-tagged when the value fits the small-integer range, heap-boxed
// otherwise.
func (r *Reducer) LowerBox(n *mid.Box, input *graph.Value) *graph.Value {
	switch n.Kind {
	case mid.BoxBigInt:
		return r.lowerBoxBigInt(n, input)
	case mid.BoxNumber:
		return r.lowerBoxNumber(n, input)
	case mid.BoxHeapNumber:
		assert(input.Rep == graph.RepFloat64, "heap number boxing takes a float64, got %s", input.Rep)
		return r.allocateHeapNumber(input)
	case mid.BoxSmi:
		// The caller guarantees the value is in range; no overflow path.
		assert(input.Rep == graph.RepWord32, "smi boxing takes a word32, got %s", input.Rep)
		return r.tagSmi(input)
	case mid.BoxBoolean:
		return r.lowerBoxBoolean(input)
	case mid.BoxString:
		return r.lowerBoxString(n, input)
	}
	panic("lower: unknown boxing kind")
}

func (r *Reducer) lowerBoxBigInt(n *mid.Box, input *graph.Value) *graph.Value {
	a := r.a
	assert(a.Target.Is64(), "bigint boxing needs a 64-bit target")
	assert(input.Rep == graph.RepWord64, "bigint boxing takes a word64, got %s", input.Rep)
	assert(n.Interpretation == mid.InterpretSigned || n.Interpretation == mid.InterpretUnsigned,
		"bigint boxing takes a signed or unsigned word")

	done := a.Label(graph.RepTagged)
	nonzero := a.Label()
	a.GotoIfNot(a.Word64Equal(input, a.Word64Constant(0)), nonzero)
	a.Goto(done, r.allocateBigInt(nil, nil))

	a.Bind(nonzero)
	if n.Interpretation == mid.InterpretSigned {
		// Sign and magnitude without branching: the arithmetic shift
		// replicates the sign bit, and (v ^ m) - m negates iff m is all ones.
		signMask := a.Word64Sar(input, a.Word64Constant(63))
		signBit := a.TruncateWord64ToWord32(a.Word64Shr(input, a.Word64Constant(63)))
		magnitude := a.Word64Sub(a.Word64Xor(input, signMask), signMask)
		bitfield := a.Word32Or(a.Word32Constant(layout.BigIntLengthEncode(1)), signBit)
		a.Goto(done, r.allocateBigInt(bitfield, magnitude))
	} else {
		bitfield := a.Word32Constant(layout.BigIntLengthEncode(1))
		a.Goto(done, r.allocateBigInt(bitfield, input))
	}
	return a.Bind1(done)
}

func (r *Reducer) lowerBoxNumber(n *mid.Box, input *graph.Value) *graph.Value {
	a := r.a
	switch n.Rep {
	case mid.RepWord32:
		assert(input.Rep == graph.RepWord32, "word32 number boxing takes a word32, got %s", input.Rep)
		switch n.Interpretation {
		case mid.InterpretSigned:
			return r.tagSmiOrBoxInt32(input)
		case mid.InterpretUnsigned:
			done := a.Label(graph.RepTagged)
			box := a.Label()
			inRange := a.Uint32LessThanOrEqual(input,
				a.Word32Constant(uint32(a.Target.SmiMaxValue())))
			a.GotoIfNot(inRange, box)
			a.Goto(done, r.tagSmi(input))
			a.Bind(box)
			a.Goto(done, r.allocateHeapNumber(a.ChangeUint32ToFloat64(input)))
			return a.Bind1(done)
		}
		panic("lower: word32 number boxing takes a signed or unsigned word")

	case mid.RepWord64:
		assert(a.Target.Is64(), "word64 number boxing needs a 64-bit target")
		assert(input.Rep == graph.RepWord64, "word64 number boxing takes a word64, got %s", input.Rep)
		switch n.Interpretation {
		case mid.InterpretSigned:
			done := a.Label(graph.RepTagged)
			box := a.Label()
			low := a.TruncateWord64ToWord32(input)
			fits := a.Word64Equal(a.ChangeInt32ToInt64(low), input)
			a.GotoIfNot(fits, box)
			a.Goto(done, r.tagSmiOrBoxInt32(low))
			a.Bind(box)
			a.Goto(done, r.allocateHeapNumber(a.ChangeInt64ToFloat64(input)))
			return a.Bind1(done)
		case mid.InterpretUnsigned:
			done := a.Label(graph.RepTagged)
			box := a.Label()
			inRange := a.Uint64LessThanOrEqual(input, a.Word64Constant(uint64(a.Target.SmiMaxValue())))
			a.GotoIfNot(inRange, box)
			a.Goto(done, r.tagSmi(a.TruncateWord64ToWord32(input)))
			a.Bind(box)
			a.Goto(done, r.allocateHeapNumber(a.ChangeUint64ToFloat64(input)))
			return a.Bind1(done)
		}
		panic("lower: word64 number boxing takes a signed or unsigned word")

	case mid.RepFloat64:
		assert(input.Rep == graph.RepFloat64, "float64 number boxing takes a float64, got %s", input.Rep)
		return r.lowerBoxNumberFloat64(input, n.MinusZero)
	}
	panic("lower: unknown number boxing representation")
}

// tagSmiOrBoxInt32 prefers the inline encoding. With a 31-bit payload the
// tag-and-shift doubles the value, so a checked add of the value to itself
// detects the values that do not fit and routes them to a float box.
func (r *Reducer) tagSmiOrBoxInt32(input *graph.Value) *graph.Value {
	a := r.a
	if a.Target.SmiValuesAre32Bits() {
		return r.tagSmi(input)
	}
	done := a.Label(graph.RepTagged)
	box := a.Label()
	sum, overflow := a.Int32AddCheckOverflow(input, input)
	a.GotoIf(overflow, box)
	a.Goto(done, a.BitcastWordPtrToTagged(a.ChangeInt32ToIntPtr(sum)))
	a.Bind(box)
	a.Goto(done, r.allocateHeapNumber(a.ChangeInt32ToFloat64(input)))
	return a.Bind1(done)
}

// lowerBoxNumberFloat64 tags exactly integral in-range floats inline and
// boxes everything else. Checking for minus zero means -0.0 must box: the
// inline encoding of 0 cannot carry the sign.
func (r *Reducer) lowerBoxNumberFloat64(input *graph.Value, mode mid.MinusZeroMode) *graph.Value {
	a := r.a
	done := a.Label(graph.RepTagged)
	box := a.Label()

	truncated := a.TruncateFloat64ToInt32(input)
	exact := a.Float64Equal(a.ChangeInt32ToFloat64(truncated), input)
	a.GotoIfNot(exact, box)
	if mode == mid.CheckForMinusZero {
		a.If(a.Word32Equal(truncated, a.Word32Constant(0)))
		negative := a.Int32LessThan(a.Float64ExtractHighWord32(input), a.Word32Constant(0))
		a.GotoIf(negative, box)
		a.EndIf()
	}
	a.Goto(done, r.tagSmiOrBoxInt32(truncated))

	a.Bind(box)
	a.Goto(done, r.allocateHeapNumber(input))
	return a.Bind1(done)
}

func (r *Reducer) lowerBoxBoolean(input *graph.Value) *graph.Value {
	a := r.a
	assert(input.Rep == graph.RepWord32, "boolean boxing takes a word32, got %s", input.Rep)
	done := a.Label(graph.RepTagged)
	isTrue := a.Label()
	a.GotoIf(input, isTrue)
	a.Goto(done, a.HeapConstant(r.f.FalseValue()))
	a.Bind(isTrue)
	a.Goto(done, a.HeapConstant(r.f.TrueValue()))
	return a.Bind1(done)
}

func (r *Reducer) lowerBoxString(n *mid.Box, input *graph.Value) *graph.Value {
	a := r.a
	assert(input.Rep == graph.RepWord32, "string boxing takes a word32, got %s", input.Rep)
	assert(n.Interpretation == mid.InterpretCharCode || n.Interpretation == mid.InterpretCodePoint,
		"string boxing takes a char code or code point")

	done := a.Label(graph.RepTagged)
	var wide *graph.Label

	code := input
	if n.Interpretation == mid.InterpretCharCode {
		code = a.Word32And(input, a.Word32Constant(0xFFFF))
	} else {
		wide = a.Label()
		a.GotoIf(a.Uint32LessThanOrEqual(a.Word32Constant(0x10000), input), wide)
	}

	// One code unit. Single one-byte characters come from the precomputed
	// table; anything else gets a fresh one-unit two-byte string.
	twoByte := a.Label()
	a.GotoIfNot(a.Uint32LessThanOrEqual(code, a.Word32Constant(layout.MaxOneByteCharCode)), twoByte)
	table := a.HeapConstant(r.f.SingleCharacterStringTable())
	entry := a.Load(table, a.ChangeUint32ToUintPtr(code),
		layout.FixedArrayHeaderSize, layout.TaggedSizeLog2, graph.MemTagged)
	a.Goto(done, entry)

	a.Bind(twoByte)
	single := r.allocateSeqTwoByteString(1)
	a.Store(single, nil, code, layout.SeqStringHeaderSize, 0, graph.MemWord16, graph.NoWriteBarrier)
	a.Goto(done, single)

	if wide != nil {
		// Split the supplementary-plane code point into a surrogate pair and
		// pack both units into one word, ordered by the target's byte order.
		a.Bind(wide)
		lead := a.Word32Add(a.Word32Shr(input, a.Word32Constant(10)),
			a.Word32Constant(layout.SurrogateLeadOffset))
		trail := a.Word32Add(a.Word32And(input, a.Word32Constant(0x3FF)),
			a.Word32Constant(0xDC00))
		var packed *graph.Value
		if a.Target.ByteOrder == target.LittleEndian {
			packed = a.Word32Or(lead, a.Word32Shl(trail, a.Word32Constant(16)))
		} else {
			packed = a.Word32Or(trail, a.Word32Shl(lead, a.Word32Constant(16)))
		}
		pair := r.allocateSeqTwoByteString(2)
		a.Store(pair, nil, packed, layout.SeqStringHeaderSize, 0, graph.MemWord32, graph.NoWriteBarrier)
		a.Goto(done, pair)
	}
	return a.Bind1(done)
}
