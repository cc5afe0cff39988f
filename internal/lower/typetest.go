package lower

import (
	"math"

	"smelt/internal/graph"
	"smelt/internal/layout"
	"smelt/internal/mid"
)

// LowerTypeTest compiles an "is this dynamic value of kind K" predicate into
// tag and bitfield comparisons, producing a 0/1 word32. All branches converge
// at one join.
func (r *Reducer) LowerTypeTest(n *mid.TypeTest, input *graph.Value) *graph.Value {
	a := r.a
	assert(input.Rep == graph.RepTagged, "type test takes a dynamic value, got %s", input.Rep)
	assert(n.Assumption != mid.AssumeBigInt ||
		n.Kind == mid.TestBigInt || n.Kind == mid.TestBigInt64,
		"bigint assumption only serves bigint tests")

	switch n.Kind {
	case mid.TestSmi:
		if n.Assumption != mid.AssumeNone {
			// Already proven to be a heap object.
			return a.Word32Constant(0)
		}
		return r.isSmi(input)

	case mid.TestNumber:
		return r.lowerIsNumber(n, input)

	case mid.TestBigInt, mid.TestBigInt64:
		return r.lowerIsBigInt(n, input)

	case mid.TestCallable, mid.TestConstructor, mid.TestDetectableCallable,
		mid.TestNonCallable, mid.TestReceiver, mid.TestUndetectable:
		return r.lowerBitFieldTest(n, input)

	case mid.TestSymbol, mid.TestString, mid.TestArrayBufferView:
		return r.lowerInstanceTypeTest(n, input)
	}
	panic("lower: unknown type test kind")
}

func (r *Reducer) lowerIsNumber(n *mid.TypeTest, input *graph.Value) *graph.Value {
	a := r.a
	done := a.Label(graph.RepWord32)
	if n.Assumption == mid.AssumeNone {
		a.GotoIf(r.isSmi(input), done, a.Word32Constant(1))
	}
	a.Goto(done, r.hasMap(input, r.f.HeapNumberMap()))
	return a.Bind1(done)
}

func (r *Reducer) lowerIsBigInt(n *mid.TypeTest, input *graph.Value) *graph.Value {
	a := r.a
	if n.Kind == mid.TestBigInt64 {
		assert(a.Target.Is64(), "bigint64 test needs a 64-bit target")
	}
	done := a.Label(graph.RepWord32)

	if n.Assumption != mid.AssumeBigInt {
		if n.Assumption == mid.AssumeNone {
			a.GotoIf(r.isSmi(input), done, a.Word32Constant(0))
		}
		a.GotoIfNot(r.hasMap(input, r.f.BigIntMap()), done, a.Word32Constant(0))
	}
	if n.Kind == mid.TestBigInt {
		a.Goto(done, a.Word32Constant(1))
		return a.Bind1(done)
	}

	// Fits-in-64: a zero bitfield is the canonical zero and trivially fits.
	bitfield := r.loadField(input, layout.FieldBigIntBitfield())
	a.GotoIf(a.Word32Equal(bitfield, a.Word32Constant(0)), done, a.Word32Constant(1))

	// More than one digit never fits.
	length := a.Word32And(bitfield, a.Word32Constant(layout.BigIntLengthMask))
	oneDigit := a.Word32Equal(length, a.Word32Constant(layout.BigIntLengthEncode(1)))
	a.GotoIfNot(oneDigit, done, a.Word32Constant(0))

	digit := r.loadField(input, layout.FieldBigIntLeastSignificantDigit())
	a.GotoIf(a.Uint64LessThanOrEqual(digit, a.Word64Constant(math.MaxInt64)),
		done, a.Word32Constant(1))

	// The one value above the positive range that still fits is the signed
	// minimum: negative sign with magnitude 2^63.
	sign := a.Word32And(bitfield, a.Word32Constant(layout.BigIntSignMask))
	negative := a.Word32Equal(sign, a.Word32Constant(layout.BigIntSignMask))
	minMagnitude := a.Word64Equal(digit, a.Word64Constant(1<<63))
	a.Goto(done, a.Word32And(negative, minMagnitude))
	return a.Bind1(done)
}

func (r *Reducer) lowerBitFieldTest(n *mid.TypeTest, input *graph.Value) *graph.Value {
	a := r.a
	done := a.Label(graph.RepWord32)
	if n.Assumption == mid.AssumeNone {
		a.GotoIf(r.isSmi(input), done, a.Word32Constant(0))
	}
	m := r.loadMap(input)
	bitfield := r.loadBitField(m)

	var check *graph.Value
	switch n.Kind {
	case mid.TestCallable:
		check = r.bitSet(bitfield, layout.MapIsCallableBit)
	case mid.TestConstructor:
		check = r.bitSet(bitfield, layout.MapIsConstructorBit)
	case mid.TestUndetectable:
		check = r.bitSet(bitfield, layout.MapIsUndetectableBit)
	case mid.TestDetectableCallable:
		// Callable and not undetectable, in one mask-and-compare.
		masked := a.Word32And(bitfield,
			a.Word32Constant(layout.MapIsCallableBit|layout.MapIsUndetectableBit))
		check = a.Word32Equal(masked, a.Word32Constant(layout.MapIsCallableBit))
	case mid.TestNonCallable:
		// Not the negation of callable: a non-callable non-receiver (a
		// string, a number box) still answers false, so the not-callable
		// check falls through into the receiver range test.
		notCallable := a.Word32Equal(
			a.Word32And(bitfield, a.Word32Constant(layout.MapIsCallableBit)),
			a.Word32Constant(0))
		a.GotoIfNot(notCallable, done, a.Word32Constant(0))
		instanceType := r.loadInstanceType(m)
		check = a.Uint32LessThanOrEqual(a.Word32Constant(layout.FirstReceiverType), instanceType)
	case mid.TestReceiver:
		instanceType := r.loadInstanceType(m)
		check = a.Uint32LessThanOrEqual(a.Word32Constant(layout.FirstReceiverType), instanceType)
	}
	a.Goto(done, check)
	return a.Bind1(done)
}

func (r *Reducer) bitSet(bitfield *graph.Value, bit uint32) *graph.Value {
	a := r.a
	masked := a.Word32And(bitfield, a.Word32Constant(bit))
	return a.Word32Equal(masked, a.Word32Constant(bit))
}

func (r *Reducer) lowerInstanceTypeTest(n *mid.TypeTest, input *graph.Value) *graph.Value {
	a := r.a
	done := a.Label(graph.RepWord32)
	if n.Assumption == mid.AssumeNone {
		a.GotoIf(r.isSmi(input), done, a.Word32Constant(0))
	}
	instanceType := r.loadInstanceType(r.loadMap(input))

	var check *graph.Value
	switch n.Kind {
	case mid.TestSymbol:
		check = a.Word32Equal(instanceType, a.Word32Constant(layout.SymbolType))
	case mid.TestString:
		// Strings occupy the contiguous range below the first non-string code.
		check = a.Uint32LessThan(instanceType, a.Word32Constant(layout.FirstNonstringType))
	case mid.TestArrayBufferView:
		shifted := a.Word32Sub(instanceType, a.Word32Constant(layout.FirstArrayBufferViewType))
		check = a.Uint32LessThanOrEqual(shifted,
			a.Word32Constant(layout.LastArrayBufferViewType-layout.FirstArrayBufferViewType))
	}
	a.Goto(done, check)
	return a.Bind1(done)
}
