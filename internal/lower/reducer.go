// Package lower rewrites mid-level, type-tagged operations into explicit
// machine operations: word arithmetic, loads and stores, allocations, branches
// and deoptimization exits. One handler per node family; each handler emits a
// closed single-entry subgraph through the assembler and returns its value.
package lower

import (
	"fmt"

	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/layout"
	"smelt/internal/mid"
)

// Reducer emits the replacement subgraph for one mid-level node at a time.
// All handlers share the assembler and the canonical singleton factory; the
// reducer itself holds no per-node state.
type Reducer struct {
	a *graph.Assembler
	f *heap.Factory
}

func New(a *graph.Assembler, f *heap.Factory) *Reducer {
	return &Reducer{a: a, f: f}
}

// Asm exposes the underlying assembler for drivers that interleave their own
// operations with lowered nodes.
func (r *Reducer) Asm() *graph.Assembler { return r.a }

// LowerNode dispatches on the node variant. Inputs arrive resolved, in the
// order the node's Inputs method lists them. A node kind the reducer does not
// know is a contract violation.
func (r *Reducer) LowerNode(node mid.Node, inputs []*graph.Value) *graph.Value {
	switch n := node.(type) {
	case *mid.ChangeOrDeopt:
		return r.LowerChangeOrDeopt(n, inputs[0])
	case *mid.TypeTest:
		return r.LowerTypeTest(n, inputs[0])
	case *mid.Box:
		return r.LowerBox(n, inputs[0])
	case *mid.Unbox:
		return r.LowerUnbox(n, inputs[0])
	case *mid.UnboxOrDeopt:
		return r.LowerUnboxOrDeopt(n, inputs[0])
	case *mid.NewConsString:
		return r.LowerNewConsString(inputs[0], inputs[1], inputs[2])
	case *mid.NewArray:
		return r.LowerNewArray(n, inputs[0])
	case *mid.ArrayMinMax:
		return r.LowerArrayMinMax(n, inputs[0])
	case *mid.LoadFieldByIndex:
		return r.LowerLoadFieldByIndex(inputs[0], inputs[1])
	}
	panic(fmt.Sprintf("lower: no handler for %T", node))
}

// assert aborts compilation on a malformed request. Runtime-data mismatches
// never come through here; those lower to deoptimization edges.
func assert(cond bool, format string, args ...any) {
	if !cond {
		panic("lower: " + fmt.Sprintf(format, args...))
	}
}

// Tag helpers.

// isSmi tests the reserved low tag bit of a dynamic value word.
func (r *Reducer) isSmi(obj *graph.Value) *graph.Value {
	a := r.a
	word := a.BitcastTaggedToWordPtr(obj)
	bit := a.WordPtrAnd(word, a.IntPtrConstant(layout.SmiTagMask))
	return a.WordPtrEqual(bit, a.IntPtrConstant(layout.SmiTag))
}

// tagSmi encodes a 32-bit value known to fit the inline range.
func (r *Reducer) tagSmi(v *graph.Value) *graph.Value {
	a := r.a
	if a.Target.SmiValuesAre32Bits() {
		wide := a.ChangeInt32ToIntPtr(v)
		return a.BitcastWordPtrToTagged(a.WordPtrShl(wide, a.IntPtrConstant(int64(a.Target.SmiShift()))))
	}
	shifted := a.Word32Shl(v, a.Word32Constant(uint32(a.Target.SmiShift())))
	return a.BitcastWordPtrToTagged(a.ChangeInt32ToIntPtr(shifted))
}

// tagSmiWordPtr encodes a pointer-width value known to fit the inline range.
func (r *Reducer) tagSmiWordPtr(v *graph.Value) *graph.Value {
	a := r.a
	return a.BitcastWordPtrToTagged(a.WordPtrShl(v, a.IntPtrConstant(int64(a.Target.SmiShift()))))
}

// untagSmi decodes an inline integer to its 32-bit value.
func (r *Reducer) untagSmi(obj *graph.Value) *graph.Value {
	a := r.a
	word := a.BitcastTaggedToWordPtr(obj)
	if a.Target.SmiValuesAre32Bits() {
		return a.TruncateWordPtrToWord32(a.WordPtrSar(word, a.IntPtrConstant(int64(a.Target.SmiShift()))))
	}
	return a.Word32Sar(a.TruncateWordPtrToWord32(word),
		a.Word32Constant(uint32(a.Target.SmiShift())))
}

// Object field helpers.

func (r *Reducer) loadField(obj *graph.Value, acc layout.FieldAccess) *graph.Value {
	return r.a.Load(obj, nil, acc.Offset, 0, acc.Rep)
}

// initField writes into a freshly allocated object; no write barrier is
// needed before the object is published.
func (r *Reducer) initField(obj *graph.Value, acc layout.FieldAccess, v *graph.Value) {
	r.a.Store(obj, nil, v, acc.Offset, 0, acc.Rep, graph.NoWriteBarrier)
}

func (r *Reducer) loadMap(obj *graph.Value) *graph.Value {
	return r.loadField(obj, layout.FieldMap())
}

func (r *Reducer) loadInstanceType(m *graph.Value) *graph.Value {
	return r.loadField(m, layout.FieldMapInstanceType())
}

func (r *Reducer) loadBitField(m *graph.Value) *graph.Value {
	return r.loadField(m, layout.FieldMapBitField())
}

// hasMap compares an object's type descriptor against a canonical one.
func (r *Reducer) hasMap(obj *graph.Value, m graph.RefConstant) *graph.Value {
	return r.a.TaggedEqual(r.loadMap(obj), r.a.HeapConstant(m))
}

// Allocation helpers.

// allocateHeapNumber builds a boxed double holding the given float.
func (r *Reducer) allocateHeapNumber(v *graph.Value) *graph.Value {
	a := r.a
	obj := a.Allocate(a.IntPtrConstant(layout.HeapNumberSize), graph.AllocateYoung)
	r.initField(obj, layout.FieldMap(), a.HeapConstant(r.f.HeapNumberMap()))
	r.initField(obj, layout.FieldHeapNumberValue(), v)
	return obj
}

// allocateBigInt builds an arbitrary-precision integer box. A nil digit
// produces the canonical zero: zero bitfield, no digits.
func (r *Reducer) allocateBigInt(bitfield, digit *graph.Value) *graph.Value {
	a := r.a
	assert((bitfield == nil) == (digit == nil), "bigint bitfield and digit must come together")
	digits := 0
	if digit != nil {
		digits = 1
	}
	obj := a.Allocate(a.IntPtrConstant(layout.BigIntSizeFor(digits)), graph.AllocateYoung)
	r.initField(obj, layout.FieldMap(), a.HeapConstant(r.f.BigIntMap()))
	if bitfield == nil {
		bitfield = a.Word32Constant(0)
	}
	r.initField(obj, layout.FieldBigIntBitfield(), bitfield)
	// The bitfield leaves a 32-bit gap before the first digit; keep it
	// deterministic.
	r.initField(obj, layout.FieldBigIntPadding(), a.Word32Constant(0))
	if digit != nil {
		r.initField(obj, layout.FieldBigIntLeastSignificantDigit(), digit)
	}
	return obj
}

// allocateSeqTwoByteString builds an uninitialized sequential two-byte string
// of a small static length, with the trailing word zeroed so padding bytes
// are deterministic.
func (r *Reducer) allocateSeqTwoByteString(units int) *graph.Value {
	a := r.a
	assert(units == 1 || units == 2, "only single- and double-unit strings are built inline")
	obj := a.Allocate(a.IntPtrConstant(layout.SeqTwoByteStringSizeFor(units)), graph.AllocateYoung)
	r.initField(obj, layout.FieldMap(), a.HeapConstant(r.f.StringMap()))
	r.initField(obj, layout.FieldStringHash(), a.Word32Constant(layout.EmptyHashField))
	r.initField(obj, layout.FieldStringLength(), a.Word32Constant(uint32(units)))
	a.Store(obj, nil, a.Word64Constant(0), layout.SeqStringHeaderSize, 0,
		graph.MemWord64, graph.NoWriteBarrier)
	return obj
}
