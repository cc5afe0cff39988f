package graph

import (
	"fmt"

	"smelt/internal/target"
)

// Assembler builds a lowered subgraph in the forward-declared-label style:
// labels are pending merge blocks, Goto appends an edge binding the label's
// parameters, and structured If/Else/EndIf regions keep authoring
// single-entry/single-exit without literal jumps.
type Assembler struct {
	Target target.Config

	graph   *Graph
	current *Block
	valueID int
	blockID int
	ifStack []*ifFrame
}

// Label is a pending merge block parameterized by the representations of the
// values it merges.
type Label struct {
	block *Block
	bound bool
}

// Block exposes the label's underlying block, for printer tests.
func (l *Label) Block() *Block { return l.block }

type ifFrame struct {
	elseLabel *Label
	joinLabel *Label
	sawElse   bool
}

func NewAssembler(cfg target.Config) *Assembler {
	a := &Assembler{Target: cfg, graph: &Graph{}}
	entry := a.newBlock(false)
	a.graph.Entry = entry
	a.current = entry
	return a
}

func (a *Assembler) newValue(rep RegisterRep) *Value {
	v := &Value{ID: a.valueID, Rep: rep}
	a.valueID++
	return v
}

func (a *Assembler) newBlock(loop bool) *Block {
	b := &Block{ID: a.blockID, Loop: loop}
	a.blockID++
	a.graph.Blocks = append(a.graph.Blocks, b)
	return b
}

// Parameter declares an input of the lowered subgraph.
func (a *Assembler) Parameter(rep RegisterRep) *Value {
	v := a.newValue(rep)
	a.graph.Params = append(a.graph.Params, v)
	return v
}

func (a *Assembler) emit(instr Instruction) {
	if a.current == nil {
		panic("graph: emitting into terminated control flow")
	}
	a.current.Instrs = append(a.current.Instrs, instr)
}

func (a *Assembler) terminate(t Terminator) {
	if a.current == nil {
		panic("graph: control flow already terminated")
	}
	a.current.Term = t
	for _, succ := range t.Successors() {
		succ.Preds = append(succ.Preds, a.current)
	}
	a.current = nil
}

// Label creates a forward merge point carrying one value per representation.
func (a *Assembler) Label(reps ...RegisterRep) *Label {
	b := a.newBlock(false)
	for _, rep := range reps {
		b.Params = append(b.Params, a.newValue(rep))
	}
	return &Label{block: b}
}

// LoopLabel creates a merge point that additionally accepts back edges,
// threading the induction values across them.
func (a *Assembler) LoopLabel(reps ...RegisterRep) *Label {
	l := a.Label(reps...)
	l.block.Loop = true
	return l
}

func (a *Assembler) checkEdgeArgs(l *Label, args []*Value) {
	if len(args) != len(l.block.Params) {
		panic(fmt.Sprintf("graph: label expects %d values, got %d",
			len(l.block.Params), len(args)))
	}
	for i, arg := range args {
		if arg.Rep != l.block.Params[i].Rep {
			panic(fmt.Sprintf("graph: label argument %d is %s, want %s",
				i, arg.Rep, l.block.Params[i].Rep))
		}
	}
}

// Goto transfers control to the label, binding its parameters.
func (a *Assembler) Goto(l *Label, args ...*Value) {
	a.checkEdgeArgs(l, args)
	a.terminate(&GotoTerminator{Dest: Edge{Target: l.block, Args: args}})
}

// GotoIf branches to the label when cond is nonzero and falls through
// otherwise.
func (a *Assembler) GotoIf(cond *Value, l *Label, args ...*Value) {
	a.branchTo(cond, l, args, false)
}

// GotoIfNot branches to the label when cond is zero.
func (a *Assembler) GotoIfNot(cond *Value, l *Label, args ...*Value) {
	a.branchTo(cond, l, args, true)
}

func (a *Assembler) branchTo(cond *Value, l *Label, args []*Value, negated bool) {
	a.checkEdgeArgs(l, args)
	cont := a.newBlock(false)
	taken := Edge{Target: l.block, Args: args}
	fallthru := Edge{Target: cont}
	t := &BranchTerminator{Cond: cond, IfTrue: taken, IfFalse: fallthru}
	if negated {
		t.IfTrue, t.IfFalse = fallthru, taken
	}
	a.terminate(t)
	a.current = cont
}

// Bind seals the label and continues emission in its block, returning the
// merged values. Control must have been transferred away beforehand.
func (a *Assembler) Bind(l *Label) []*Value {
	if l.bound {
		panic("graph: label bound twice")
	}
	if a.current != nil {
		panic("graph: binding a label while the current block is still open")
	}
	l.bound = true
	a.current = l.block
	return l.block.Params
}

// Bind1 is Bind for single-value labels.
func (a *Assembler) Bind1(l *Label) *Value {
	params := a.Bind(l)
	if len(params) != 1 {
		panic("graph: Bind1 on a label without exactly one value")
	}
	return params[0]
}

// Reachable reports whether the label has any incoming edge yet. A label that
// was never jumped to lowers to nothing.
func (l *Label) Reachable() bool { return len(l.block.Preds) > 0 }

// If opens a structured conditional region on cond.
func (a *Assembler) If(cond *Value) {
	a.openIf(cond, false)
}

// IfNot opens a structured conditional region on the negation of cond.
func (a *Assembler) IfNot(cond *Value) {
	a.openIf(cond, true)
}

func (a *Assembler) openIf(cond *Value, negated bool) {
	thenLabel := a.Label()
	elseLabel := a.Label()
	joinLabel := a.Label()
	taken := Edge{Target: thenLabel.block}
	other := Edge{Target: elseLabel.block}
	t := &BranchTerminator{Cond: cond, IfTrue: taken, IfFalse: other}
	if negated {
		t.IfTrue, t.IfFalse = other, taken
	}
	a.terminate(t)
	a.ifStack = append(a.ifStack, &ifFrame{elseLabel: elseLabel, joinLabel: joinLabel})
	thenLabel.bound = true
	a.current = thenLabel.block
}

// Else switches to the alternative arm of the innermost If.
func (a *Assembler) Else() {
	frame := a.topIf()
	if frame.sawElse {
		panic("graph: Else twice in one If")
	}
	frame.sawElse = true
	if a.current != nil {
		a.Goto(frame.joinLabel)
	}
	a.Bind(frame.elseLabel)
}

// EndIf closes the innermost conditional region.
func (a *Assembler) EndIf() {
	frame := a.topIf()
	a.ifStack = a.ifStack[:len(a.ifStack)-1]
	if a.current != nil {
		a.Goto(frame.joinLabel)
	}
	if !frame.sawElse {
		a.Bind(frame.elseLabel)
		a.Goto(frame.joinLabel)
	}
	a.Bind(frame.joinLabel)
}

func (a *Assembler) topIf() *ifFrame {
	if len(a.ifStack) == 0 {
		panic("graph: no open If")
	}
	return a.ifStack[len(a.ifStack)-1]
}

// Return closes the subgraph with its result value.
func (a *Assembler) Return(v *Value) {
	a.terminate(&ReturnTerminator{Val: v})
}

// Finish returns the completed graph. Any open structured region is a bug in
// the handler that built it.
func (a *Assembler) Finish() *Graph {
	if len(a.ifStack) != 0 {
		panic("graph: unclosed If region")
	}
	if a.current != nil {
		panic("graph: control flow left open")
	}
	return a.graph
}

// Constants.

func (a *Assembler) Word32Constant(v uint32) *Value {
	return a.constant(RepWord32, uint64(v), 0)
}

func (a *Assembler) Word64Constant(v uint64) *Value {
	return a.constant(RepWord64, v, 0)
}

func (a *Assembler) IntPtrConstant(v int64) *Value {
	return a.constant(RepWordPtr, uint64(v), 0)
}

func (a *Assembler) Float64Constant(v float64) *Value {
	return a.constant(RepFloat64, 0, v)
}

func (a *Assembler) constant(rep RegisterRep, w uint64, f float64) *Value {
	out := a.newValue(rep)
	op := &ConstantOp{Out: out, Word: w, Float: f}
	out.Def = op
	a.emit(op)
	return out
}

// HeapConstant embeds a canonical singleton reference.
func (a *Assembler) HeapConstant(ref RefConstant) *Value {
	out := a.newValue(RepTagged)
	op := &ConstantOp{Out: out, Ref: ref, IsRef: true}
	out.Def = op
	a.emit(op)
	return out
}

// Pure operations.

func (a *Assembler) pure(kind PureKind, args ...*Value) *Value {
	out := a.newValue(kind.resultRep())
	op := &PureOp{Kind: kind, Out: out, Args: args}
	out.Def = op
	a.emit(op)
	return out
}

func (a *Assembler) Word32Add(l, r *Value) *Value  { return a.pure(Word32Add, l, r) }
func (a *Assembler) Word32Sub(l, r *Value) *Value  { return a.pure(Word32Sub, l, r) }
func (a *Assembler) Word32And(l, r *Value) *Value  { return a.pure(Word32And, l, r) }
func (a *Assembler) Word32Or(l, r *Value) *Value   { return a.pure(Word32Or, l, r) }
func (a *Assembler) Word32Xor(l, r *Value) *Value  { return a.pure(Word32Xor, l, r) }
func (a *Assembler) Word32Shl(l, r *Value) *Value  { return a.pure(Word32Shl, l, r) }
func (a *Assembler) Word32Shr(l, r *Value) *Value  { return a.pure(Word32ShrLogical, l, r) }
func (a *Assembler) Word32Sar(l, r *Value) *Value  { return a.pure(Word32ShrArith, l, r) }
func (a *Assembler) Word32Equal(l, r *Value) *Value { return a.pure(Word32Equal, l, r) }

func (a *Assembler) Int32LessThan(l, r *Value) *Value  { return a.pure(Int32LessThan, l, r) }
func (a *Assembler) Uint32LessThan(l, r *Value) *Value { return a.pure(Uint32LessThan, l, r) }
func (a *Assembler) Uint32LessThanOrEqual(l, r *Value) *Value {
	return a.pure(Uint32LessThanOrEqual, l, r)
}

func (a *Assembler) Word64Add(l, r *Value) *Value   { return a.pure(Word64Add, l, r) }
func (a *Assembler) Word64Sub(l, r *Value) *Value   { return a.pure(Word64Sub, l, r) }
func (a *Assembler) Word64And(l, r *Value) *Value   { return a.pure(Word64And, l, r) }
func (a *Assembler) Word64Or(l, r *Value) *Value    { return a.pure(Word64Or, l, r) }
func (a *Assembler) Word64Xor(l, r *Value) *Value   { return a.pure(Word64Xor, l, r) }
func (a *Assembler) Word64Shl(l, r *Value) *Value   { return a.pure(Word64Shl, l, r) }
func (a *Assembler) Word64Shr(l, r *Value) *Value   { return a.pure(Word64ShrLogical, l, r) }
func (a *Assembler) Word64Sar(l, r *Value) *Value   { return a.pure(Word64ShrArith, l, r) }
func (a *Assembler) Word64Equal(l, r *Value) *Value { return a.pure(Word64Equal, l, r) }

func (a *Assembler) Int64LessThan(l, r *Value) *Value  { return a.pure(Int64LessThan, l, r) }
func (a *Assembler) Uint64LessThan(l, r *Value) *Value { return a.pure(Uint64LessThan, l, r) }
func (a *Assembler) Uint64LessThanOrEqual(l, r *Value) *Value {
	return a.pure(Uint64LessThanOrEqual, l, r)
}

func (a *Assembler) WordPtrAdd(l, r *Value) *Value   { return a.pure(WordPtrAdd, l, r) }
func (a *Assembler) WordPtrSub(l, r *Value) *Value   { return a.pure(WordPtrSub, l, r) }
func (a *Assembler) WordPtrAnd(l, r *Value) *Value   { return a.pure(WordPtrAnd, l, r) }
func (a *Assembler) WordPtrShl(l, r *Value) *Value   { return a.pure(WordPtrShl, l, r) }
func (a *Assembler) WordPtrSar(l, r *Value) *Value   { return a.pure(WordPtrShrArith, l, r) }
func (a *Assembler) WordPtrEqual(l, r *Value) *Value { return a.pure(WordPtrEqual, l, r) }
func (a *Assembler) IntPtrLessThan(l, r *Value) *Value {
	return a.pure(IntPtrLessThan, l, r)
}
func (a *Assembler) UintPtrLessThan(l, r *Value) *Value {
	return a.pure(UintPtrLessThan, l, r)
}

func (a *Assembler) Float64Equal(l, r *Value) *Value { return a.pure(Float64Equal, l, r) }
func (a *Assembler) Float64Min(l, r *Value) *Value   { return a.pure(Float64Min, l, r) }
func (a *Assembler) Float64Max(l, r *Value) *Value   { return a.pure(Float64Max, l, r) }

func (a *Assembler) ChangeInt32ToInt64(v *Value) *Value { return a.pure(ChangeInt32ToInt64, v) }
func (a *Assembler) ChangeInt32ToFloat64(v *Value) *Value {
	return a.pure(ChangeInt32ToFloat64, v)
}
func (a *Assembler) ChangeUint32ToFloat64(v *Value) *Value {
	return a.pure(ChangeUint32ToFloat64, v)
}
func (a *Assembler) ChangeInt64ToFloat64(v *Value) *Value {
	return a.pure(ChangeInt64ToFloat64, v)
}
func (a *Assembler) ChangeInt32ToIntPtr(v *Value) *Value { return a.pure(ChangeInt32ToIntPtr, v) }
func (a *Assembler) ChangeUint32ToUintPtr(v *Value) *Value {
	return a.pure(ChangeUint32ToUintPtr, v)
}
func (a *Assembler) ChangeUint64ToFloat64(v *Value) *Value {
	return a.pure(ChangeUint64ToFloat64, v)
}
func (a *Assembler) ChangeIntPtrToInt64(v *Value) *Value { return a.pure(ChangeIntPtrToInt64, v) }
func (a *Assembler) TruncateWord64ToWord32(v *Value) *Value {
	return a.pure(TruncateWord64ToWord32, v)
}
func (a *Assembler) TruncateWordPtrToWord32(v *Value) *Value {
	return a.pure(TruncateWordPtrToWord32, v)
}

// TruncateFloat64ToInt32 truncates toward zero; the result on overflow or NaN
// is undefined and must be covered by a guard.
func (a *Assembler) TruncateFloat64ToInt32(v *Value) *Value {
	return a.pure(TruncateFloat64ToInt32, v)
}

// TruncateFloat64ToInt64 truncates toward zero with undefined overflow.
func (a *Assembler) TruncateFloat64ToInt64(v *Value) *Value {
	return a.pure(TruncateFloat64ToInt64, v)
}

// TruncateFloat64ToUint32 truncates toward zero with undefined overflow.
func (a *Assembler) TruncateFloat64ToUint32(v *Value) *Value {
	return a.pure(TruncateFloat64ToUint32, v)
}

func (a *Assembler) Float64ExtractHighWord32(v *Value) *Value {
	return a.pure(Float64ExtractHighWord32, v)
}

func (a *Assembler) BitcastTaggedToWordPtr(v *Value) *Value {
	return a.pure(BitcastTaggedToWordPtr, v)
}

func (a *Assembler) BitcastWordPtrToTagged(v *Value) *Value {
	return a.pure(BitcastWordPtrToTagged, v)
}

// TaggedEqual is pointer-width equality of two dynamic values.
func (a *Assembler) TaggedEqual(l, r *Value) *Value { return a.pure(TaggedEqual, l, r) }

// Int32AddCheckOverflow produces the wrapped sum and a 0/1 overflow flag.
func (a *Assembler) Int32AddCheckOverflow(l, r *Value) (*Value, *Value) {
	val := a.newValue(RepWord32)
	ovf := a.newValue(RepWord32)
	op := &CheckedAddOp{OutVal: val, OutOvf: ovf, Left: l, Right: r}
	val.Def = op
	ovf.Def = op
	a.emit(op)
	return val, ovf
}

// Memory.

func (a *Assembler) Load(base, index *Value, offset int32, log2 uint8, rep MemoryRep) *Value {
	out := a.newValue(rep.RegisterRep())
	op := &LoadOp{Out: out, Base: base, Index: index, Offset: offset,
		ElementSizeLog2: log2, Rep: rep}
	out.Def = op
	a.emit(op)
	return out
}

func (a *Assembler) Store(base, index, val *Value, offset int32, log2 uint8,
	rep MemoryRep, barrier WriteBarrier) {
	a.emit(&StoreOp{Base: base, Index: index, Val: val, Offset: offset,
		ElementSizeLog2: log2, Rep: rep, Barrier: barrier})
}

func (a *Assembler) Allocate(size *Value, hint AllocationHint) *Value {
	out := a.newValue(RepTagged)
	op := &AllocateOp{Out: out, Size: size, Hint: hint}
	out.Def = op
	a.emit(op)
	return out
}

func (a *Assembler) CallBuiltin(b Builtin, rep RegisterRep, args ...*Value) *Value {
	out := a.newValue(rep)
	op := &CallBuiltinOp{Out: out, Builtin: b, Args: args}
	out.Def = op
	a.emit(op)
	return out
}

// Deoptimization exits. These record the edge; taking it is a runtime act.

func (a *Assembler) DeoptimizeIf(cond *Value, fs FrameState, reason DeoptReason, fb Feedback) {
	a.emit(&DeoptimizeIfOp{Cond: cond, FrameState: fs, Reason: reason, Feedback: fb})
}

func (a *Assembler) DeoptimizeIfNot(cond *Value, fs FrameState, reason DeoptReason, fb Feedback) {
	a.emit(&DeoptimizeIfOp{Cond: cond, Negated: true, FrameState: fs, Reason: reason, Feedback: fb})
}
