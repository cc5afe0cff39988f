package lower

import (
	"math"

	"smelt/internal/graph"
	"smelt/internal/layout"
	"smelt/internal/mid"
)

// LowerNewConsString builds a two-child concatenation string descriptor. The
// result is one-byte only when both children are; AND-ing the encoding bits
// computes that directly.
func (r *Reducer) LowerNewConsString(length, first, second *graph.Value) *graph.Value {
	a := r.a
	assert(length.Rep == graph.RepWord32, "cons string length is a word32, got %s", length.Rep)
	assert(first.Rep == graph.RepTagged && second.Rep == graph.RepTagged,
		"cons string children are dynamic values")

	firstType := r.loadInstanceType(r.loadMap(first))
	secondType := r.loadInstanceType(r.loadMap(second))
	encoding := a.Word32And(a.Word32And(firstType, secondType),
		a.Word32Constant(layout.StringEncodingMask))

	mapLabel := a.Label(graph.RepTagged)
	oneByte := a.Label()
	a.GotoIf(a.Word32Equal(encoding, a.Word32Constant(layout.OneByteStringTag)), oneByte)
	a.Goto(mapLabel, a.HeapConstant(r.f.ConsStringMap()))
	a.Bind(oneByte)
	a.Goto(mapLabel, a.HeapConstant(r.f.ConsOneByteStringMap()))
	m := a.Bind1(mapLabel)

	obj := a.Allocate(a.IntPtrConstant(layout.ConsStringSize), graph.AllocateYoung)
	r.initField(obj, layout.FieldMap(), m)
	r.initField(obj, layout.FieldStringHash(), a.Word32Constant(layout.EmptyHashField))
	r.initField(obj, layout.FieldStringLength(), length)
	r.initField(obj, layout.FieldConsStringFirst(), first)
	r.initField(obj, layout.FieldConsStringSecond(), second)
	return obj
}

// LowerNewArray allocates a backing store and fills every slot with the hole
// sentinel through a counted loop. A zero-length request returns the shared
// empty array without allocating.
func (r *Reducer) LowerNewArray(n *mid.NewArray, length *graph.Value) *graph.Value {
	a := r.a
	assert(length.Rep == graph.RepWordPtr, "array length is pointer-width, got %s", length.Rep)

	done := a.Label(graph.RepTagged)
	nonempty := a.Label()
	a.GotoIfNot(a.WordPtrEqual(length, a.IntPtrConstant(0)), nonempty)
	a.Goto(done, a.HeapConstant(r.f.EmptyFixedArray()))

	a.Bind(nonempty)
	var arrayMap graph.RefConstant
	var hole *graph.Value
	var holeRep graph.MemoryRep
	switch n.Kind {
	case mid.TaggedElements:
		arrayMap = r.f.FixedArrayMap()
		hole = a.HeapConstant(r.f.TheHoleValue())
		holeRep = graph.MemTagged
	case mid.DoubleElements:
		arrayMap = r.f.FixedDoubleArrayMap()
		hole = a.Word64Constant(layout.HoleNaNBits)
		holeRep = graph.MemWord64
	}

	hint := graph.AllocateYoung
	if n.Pretenure {
		hint = graph.AllocateOld
	}
	size := a.WordPtrAdd(a.IntPtrConstant(layout.FixedArrayHeaderSize),
		a.WordPtrShl(length, a.IntPtrConstant(layout.TaggedSizeLog2)))
	arr := a.Allocate(size, hint)
	r.initField(arr, layout.FieldMap(), a.HeapConstant(arrayMap))
	r.initField(arr, layout.FieldFixedArrayLength(), r.tagSmiWordPtr(length))

	loop := a.LoopLabel(graph.RepWordPtr)
	filled := a.Label()
	a.Goto(loop, a.IntPtrConstant(0))
	index := a.Bind1(loop)
	a.GotoIfNot(a.UintPtrLessThan(index, length), filled)
	a.Store(arr, index, hole, layout.FixedArrayHeaderSize, layout.TaggedSizeLog2,
		holeRep, graph.NoWriteBarrier)
	a.Goto(loop, a.WordPtrAdd(index, a.IntPtrConstant(1)))

	a.Bind(filled)
	a.Goto(done, arr)
	return a.Bind1(done)
}

// LowerArrayMinMax reduces a floating-element array object to its minimum or
// maximum: one forward loop folding each element into the accumulator with a
// branchless float min/max, then the result is boxed back through the numeric
// path with minus-zero checking on.
func (r *Reducer) LowerArrayMinMax(n *mid.ArrayMinMax, array *graph.Value) *graph.Value {
	a := r.a
	assert(array.Rep == graph.RepTagged, "array reduction takes a dynamic value, got %s", array.Rep)

	var seed float64
	fold := a.Float64Min
	if n.Kind == mid.ReduceMax {
		seed = math.Inf(-1)
		fold = a.Float64Max
	} else {
		seed = math.Inf(1)
	}

	lengthSmi := r.loadField(array, layout.FieldJSArrayLength())
	length := a.WordPtrSar(a.BitcastTaggedToWordPtr(lengthSmi),
		a.IntPtrConstant(int64(a.Target.SmiShift())))
	elements := r.loadField(array, layout.FieldJSObjectElements())

	loop := a.LoopLabel(graph.RepWordPtr, graph.RepFloat64)
	result := a.Label(graph.RepFloat64)
	a.Goto(loop, a.IntPtrConstant(0), a.Float64Constant(seed))
	vals := a.Bind(loop)
	index, acc := vals[0], vals[1]
	a.GotoIfNot(a.UintPtrLessThan(index, length), result, acc)
	element := a.Load(elements, index, layout.FixedArrayHeaderSize, layout.DoubleSizeLog2,
		graph.MemFloat64)
	a.Goto(loop, a.WordPtrAdd(index, a.IntPtrConstant(1)), fold(acc, element))

	reduced := a.Bind1(result)
	return r.lowerBoxNumberFloat64(reduced, mid.CheckForMinusZero)
}

// LowerLoadFieldByIndex decodes the packed field index produced by the
// property system: bit 0 marks a possibly-boxed-double field, the remaining
// bits hold a signed slot index whose sign selects in-object versus
// out-of-line storage.
func (r *Reducer) LowerLoadFieldByIndex(object, index *graph.Value) *graph.Value {
	a := r.a
	assert(object.Rep == graph.RepTagged, "field load takes a dynamic value, got %s", object.Rep)
	assert(index.Rep == graph.RepWord32, "field index is a word32, got %s", index.Rep)

	done := a.Label(graph.RepTagged)
	doubleField := a.Label()
	a.GotoIf(a.Word32And(index, a.Word32Constant(1)), doubleField)

	// Plain tagged field.
	slot := a.ChangeInt32ToIntPtr(a.Word32Sar(index, a.Word32Constant(1)))
	a.Goto(done, r.loadSlot(object, slot))

	// The slot may hold a float box. If the field's storage kind changed
	// since compilation the slot holds a plain value again; return it as is.
	a.Bind(doubleField)
	slot = a.ChangeInt32ToIntPtr(a.Word32Sar(index, a.Word32Constant(1)))
	loaded := r.loadSlot(object, slot)
	a.GotoIf(r.isSmi(loaded), done, loaded)
	a.GotoIfNot(r.hasMap(loaded, r.f.HeapNumberMap()), done, loaded)
	payload := r.loadField(loaded, layout.FieldHeapNumberValue())
	a.Goto(done, r.allocateHeapNumber(payload))
	return a.Bind1(done)
}

// loadSlot reads a tagged slot by signed index: non-negative indexes address
// in-object fields, negative ones the out-of-line property store.
func (r *Reducer) loadSlot(object, slot *graph.Value) *graph.Value {
	a := r.a
	merged := a.Label(graph.RepTagged)
	outOfLine := a.Label()
	a.GotoIf(a.IntPtrLessThan(slot, a.IntPtrConstant(0)), outOfLine)
	a.Goto(merged, a.Load(object, slot, layout.JSObjectHeaderSize,
		layout.TaggedSizeLog2, graph.MemTagged))
	a.Bind(outOfLine)
	properties := r.loadField(object, layout.FieldJSObjectProperties())
	flipped := a.WordPtrSub(a.IntPtrConstant(0), slot)
	a.Goto(merged, a.Load(properties, flipped,
		layout.FixedArrayHeaderSize-layout.TaggedSize, layout.TaggedSizeLog2, graph.MemTagged))
	return a.Bind1(merged)
}
