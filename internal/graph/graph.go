package graph

import (
	"fmt"
)

// The output graph of the lowering pass: explicit basic blocks holding
// machine-level operations, with phi-style block parameters at merge points.
// Downstream stages (register allocation, allocation lowering) consume this
// form; nothing tag- or type-level survives into it.

// RegisterRep is the static representation of a value.
type RegisterRep int

const (
	RepWord32 RegisterRep = iota
	RepWord64
	RepWordPtr
	RepFloat64
	RepTagged
)

func (r RegisterRep) String() string {
	switch r {
	case RepWord32:
		return "word32"
	case RepWord64:
		return "word64"
	case RepWordPtr:
		return "wordptr"
	case RepFloat64:
		return "float64"
	case RepTagged:
		return "tagged"
	}
	return "invalid"
}

// MemoryRep is the representation of a memory slot for loads and stores.
type MemoryRep int

const (
	MemWord8 MemoryRep = iota
	MemWord16
	MemWord32
	MemWord64
	MemFloat64
	MemTagged
)

func (m MemoryRep) String() string {
	switch m {
	case MemWord8:
		return "w8"
	case MemWord16:
		return "w16"
	case MemWord32:
		return "w32"
	case MemWord64:
		return "w64"
	case MemFloat64:
		return "f64"
	case MemTagged:
		return "tagged"
	}
	return "invalid"
}

// RegisterRep returns the representation a load of this memory rep produces.
func (m MemoryRep) RegisterRep() RegisterRep {
	switch m {
	case MemWord8, MemWord16, MemWord32:
		return RepWord32
	case MemWord64:
		return RepWord64
	case MemFloat64:
		return RepFloat64
	case MemTagged:
		return RepTagged
	}
	panic("graph: invalid memory rep")
}

// WriteBarrier selects the barrier the downstream GC stage must emit for a
// store. The lowering pass only records the requirement.
type WriteBarrier int

const (
	NoWriteBarrier WriteBarrier = iota
	FullWriteBarrier
)

// AllocationHint tells the downstream allocation stage which generation the
// object should land in.
type AllocationHint int

const (
	AllocateYoung AllocationHint = iota
	AllocateOld
)

func (h AllocationHint) String() string {
	if h == AllocateOld {
		return "old"
	}
	return "young"
}

// DeoptReason is the fixed vocabulary of runtime-data mismatches. Every guard
// routes through exactly one deopt edge carrying one of these.
type DeoptReason int

const (
	DeoptLostPrecision DeoptReason = iota
	DeoptLostPrecisionOrNaN
	DeoptMinusZero
	DeoptNotAHeapNumber
	DeoptNotANumberOrBoolean
	DeoptNotANumberOrOddball
	DeoptNotAString
	DeoptNotAnArrayIndex
	DeoptNotASmi
)

func (r DeoptReason) String() string {
	switch r {
	case DeoptLostPrecision:
		return "LostPrecision"
	case DeoptLostPrecisionOrNaN:
		return "LostPrecisionOrNaN"
	case DeoptMinusZero:
		return "MinusZero"
	case DeoptNotAHeapNumber:
		return "NotAHeapNumber"
	case DeoptNotANumberOrBoolean:
		return "NotANumberOrBoolean"
	case DeoptNotANumberOrOddball:
		return "NotANumberOrOddball"
	case DeoptNotAString:
		return "NotAString"
	case DeoptNotAnArrayIndex:
		return "NotAnArrayIndex"
	case DeoptNotASmi:
		return "NotASmi"
	}
	return "Unknown"
}

// FrameState is an opaque snapshot reference for resuming de-optimized
// execution. Owned externally; the pass only threads it through.
type FrameState struct {
	ID int
}

func (f FrameState) String() string { return fmt.Sprintf("#%d", f.ID) }

// Feedback identifies where runtime profiling tied to a guard is recorded.
type Feedback struct {
	Token string
}

// RefConstant is a reference to a canonical heap singleton, embedded into the
// graph by address. The name is carried for dumps only.
type RefConstant struct {
	Addr uint64
	Name string
}

// Builtin names an external call the lowered code may defer to.
type Builtin int

const (
	BuiltinStringToArrayIndex Builtin = iota
)

func (b Builtin) String() string {
	switch b {
	case BuiltinStringToArrayIndex:
		return "string_to_array_index"
	}
	return "invalid"
}

// Value is the result of exactly one operation (or a block parameter).
type Value struct {
	ID  int
	Rep RegisterRep
	Def Instruction // nil for parameters
}

func (v *Value) String() string { return fmt.Sprintf("%%%d", v.ID) }

// Instruction is one machine-level operation inside a block.
type Instruction interface {
	Result() *Value
	Operands() []*Value
	IsTerminator() bool
}

// Terminator ends a basic block.
type Terminator interface {
	Instruction
	Successors() []*Block
}

// Edge is a control transfer to a block, binding its parameters.
type Edge struct {
	Target *Block
	Args   []*Value
}

// Block is a sequence of instructions with a single terminator. Parameters
// merge the argument values bound on incoming edges.
type Block struct {
	ID     int
	Loop   bool
	Params []*Value
	Instrs []Instruction
	Term   Terminator
	Preds  []*Block
}

// Graph is one closed lowered subgraph: single entry, a return value, and any
// number of deoptimization exits.
type Graph struct {
	Params []*Value
	Blocks []*Block
	Entry  *Block
}

// Operations.

// ConstantOp materializes an immediate.
type ConstantOp struct {
	Out   *Value
	Word  uint64  // RepWord32/RepWord64/RepWordPtr payload
	Float float64 // RepFloat64 payload
	Ref   RefConstant
	IsRef bool
}

func (c *ConstantOp) Result() *Value      { return c.Out }
func (c *ConstantOp) Operands() []*Value  { return nil }
func (c *ConstantOp) IsTerminator() bool  { return false }

// PureKind enumerates side-effect-free word/float operations.
type PureKind int

const (
	// 32-bit word ops
	Word32Add PureKind = iota
	Word32Sub
	Word32And
	Word32Or
	Word32Xor
	Word32Shl
	Word32ShrLogical
	Word32ShrArith
	Word32Equal
	Int32LessThan
	Uint32LessThan
	Uint32LessThanOrEqual
	// 64-bit word ops
	Word64Add
	Word64Sub
	Word64And
	Word64Or
	Word64Xor
	Word64Shl
	Word64ShrLogical
	Word64ShrArith
	Word64Equal
	Int64LessThan
	Uint64LessThan
	Uint64LessThanOrEqual
	// pointer-width word ops
	WordPtrAdd
	WordPtrSub
	WordPtrAnd
	WordPtrShl
	WordPtrShrArith
	WordPtrEqual
	IntPtrLessThan
	UintPtrLessThan
	// float ops
	Float64Equal
	Float64Min
	Float64Max
	// representation changes
	ChangeInt32ToInt64
	ChangeInt32ToFloat64
	ChangeUint32ToFloat64
	ChangeInt64ToFloat64
	ChangeInt32ToIntPtr
	ChangeUint32ToUintPtr
	ChangeUint64ToFloat64
	ChangeIntPtrToInt64
	TruncateWord64ToWord32
	TruncateWordPtrToWord32
	TruncateFloat64ToInt32 // overflow-undefined truncation toward zero
	TruncateFloat64ToInt64 // overflow-undefined truncation toward zero
	TruncateFloat64ToUint32
	Float64ExtractHighWord32
	BitcastTaggedToWordPtr
	BitcastWordPtrToTagged
	TaggedEqual
)

var pureKindNames = map[PureKind]string{
	Word32Add: "word32_add", Word32Sub: "word32_sub", Word32And: "word32_and",
	Word32Or: "word32_or", Word32Xor: "word32_xor", Word32Shl: "word32_shl",
	Word32ShrLogical: "word32_shr", Word32ShrArith: "word32_sar",
	Word32Equal: "word32_equal", Int32LessThan: "int32_less_than",
	Uint32LessThan: "uint32_less_than", Uint32LessThanOrEqual: "uint32_less_than_or_equal",
	Word64Add: "word64_add", Word64Sub: "word64_sub", Word64And: "word64_and",
	Word64Or: "word64_or", Word64Xor: "word64_xor", Word64Shl: "word64_shl",
	Word64ShrLogical: "word64_shr", Word64ShrArith: "word64_sar",
	Word64Equal: "word64_equal", Int64LessThan: "int64_less_than",
	Uint64LessThan: "uint64_less_than", Uint64LessThanOrEqual: "uint64_less_than_or_equal",
	WordPtrAdd: "wordptr_add", WordPtrSub: "wordptr_sub", WordPtrAnd: "wordptr_and",
	WordPtrShl: "wordptr_shl", WordPtrShrArith: "wordptr_sar",
	WordPtrEqual: "wordptr_equal", IntPtrLessThan: "intptr_less_than",
	UintPtrLessThan: "uintptr_less_than",
	Float64Equal:    "float64_equal", Float64Min: "float64_min", Float64Max: "float64_max",
	ChangeInt32ToInt64: "change_int32_to_int64", ChangeInt32ToFloat64: "change_int32_to_float64",
	ChangeUint32ToFloat64: "change_uint32_to_float64", ChangeInt64ToFloat64: "change_int64_to_float64",
	ChangeInt32ToIntPtr: "change_int32_to_intptr", ChangeUint32ToUintPtr: "change_uint32_to_uintptr",
	ChangeUint64ToFloat64: "change_uint64_to_float64",
	ChangeIntPtrToInt64:   "change_intptr_to_int64", TruncateWord64ToWord32: "truncate_word64_to_word32",
	TruncateWordPtrToWord32: "truncate_wordptr_to_word32",
	TruncateFloat64ToInt32:  "truncate_float64_to_int32", TruncateFloat64ToInt64: "truncate_float64_to_int64",
	TruncateFloat64ToUint32: "truncate_float64_to_uint32",
	Float64ExtractHighWord32: "float64_extract_high_word32",
	BitcastTaggedToWordPtr:   "bitcast_tagged_to_wordptr",
	BitcastWordPtrToTagged:   "bitcast_wordptr_to_tagged",
	TaggedEqual:              "tagged_equal",
}

func (k PureKind) String() string {
	if s, ok := pureKindNames[k]; ok {
		return s
	}
	return "invalid"
}

// resultRep gives the representation a pure op produces.
func (k PureKind) resultRep() RegisterRep {
	switch k {
	case Word64Add, Word64Sub, Word64And, Word64Or, Word64Xor,
		Word64Shl, Word64ShrLogical, Word64ShrArith,
		ChangeInt32ToInt64, ChangeIntPtrToInt64, TruncateFloat64ToInt64:
		return RepWord64
	case WordPtrAdd, WordPtrSub, WordPtrAnd, WordPtrShl, WordPtrShrArith,
		ChangeInt32ToIntPtr, ChangeUint32ToUintPtr, BitcastTaggedToWordPtr:
		return RepWordPtr
	case Float64Min, Float64Max, ChangeInt32ToFloat64, ChangeUint32ToFloat64,
		ChangeInt64ToFloat64, ChangeUint64ToFloat64:
		return RepFloat64
	case BitcastWordPtrToTagged:
		return RepTagged
	default:
		return RepWord32
	}
}

// PureOp is an arithmetic, bitwise, comparison or conversion operation.
type PureOp struct {
	Kind PureKind
	Out  *Value
	Args []*Value
}

func (p *PureOp) Result() *Value     { return p.Out }
func (p *PureOp) Operands() []*Value { return p.Args }
func (p *PureOp) IsTerminator() bool { return false }

// CheckedAddOp is a two-operand signed 32-bit add used as an overflow
// detector. It produces the wrapped sum and a 0/1 overflow flag.
type CheckedAddOp struct {
	OutVal *Value
	OutOvf *Value
	Left   *Value
	Right  *Value
}

func (c *CheckedAddOp) Result() *Value     { return c.OutVal }
func (c *CheckedAddOp) Operands() []*Value { return []*Value{c.Left, c.Right} }
func (c *CheckedAddOp) IsTerminator() bool { return false }

// LoadOp reads from a tagged-base object slot:
// effective = base + Offset + (Index << ElementSizeLog2).
type LoadOp struct {
	Out             *Value
	Base            *Value
	Index           *Value // may be nil
	Offset          int32
	ElementSizeLog2 uint8
	Rep             MemoryRep
}

func (l *LoadOp) Result() *Value { return l.Out }
func (l *LoadOp) Operands() []*Value {
	if l.Index != nil {
		return []*Value{l.Base, l.Index}
	}
	return []*Value{l.Base}
}
func (l *LoadOp) IsTerminator() bool { return false }

// StoreOp writes to a tagged-base object slot.
type StoreOp struct {
	Base            *Value
	Index           *Value // may be nil
	Val             *Value
	Offset          int32
	ElementSizeLog2 uint8
	Rep             MemoryRep
	Barrier         WriteBarrier
}

func (s *StoreOp) Result() *Value { return nil }
func (s *StoreOp) Operands() []*Value {
	if s.Index != nil {
		return []*Value{s.Base, s.Index, s.Val}
	}
	return []*Value{s.Base, s.Val}
}
func (s *StoreOp) IsTerminator() bool { return false }

// AllocateOp requests a heap allocation of Size bytes. Fulfillment belongs to
// a downstream GC-aware stage; this op only carries size and generation hint.
type AllocateOp struct {
	Out  *Value
	Size *Value
	Hint AllocationHint
}

func (a *AllocateOp) Result() *Value     { return a.Out }
func (a *AllocateOp) Operands() []*Value { return []*Value{a.Size} }
func (a *AllocateOp) IsTerminator() bool { return false }

// CallBuiltinOp calls an external runtime primitive.
type CallBuiltinOp struct {
	Out     *Value
	Builtin Builtin
	Args    []*Value
}

func (c *CallBuiltinOp) Result() *Value     { return c.Out }
func (c *CallBuiltinOp) Operands() []*Value { return c.Args }
func (c *CallBuiltinOp) IsTerminator() bool { return false }

// DeoptimizeIfOp records a runtime exit edge taken when Cond (or its negation)
// holds. Execution of the lowered code abandons the optimized frame and
// resumes from FrameState; the pass itself never takes the exit.
type DeoptimizeIfOp struct {
	Cond       *Value
	Negated    bool
	FrameState FrameState
	Reason     DeoptReason
	Feedback   Feedback
}

func (d *DeoptimizeIfOp) Result() *Value     { return nil }
func (d *DeoptimizeIfOp) Operands() []*Value { return []*Value{d.Cond} }
func (d *DeoptimizeIfOp) IsTerminator() bool { return false }

// Terminators.

// GotoTerminator is an unconditional edge.
type GotoTerminator struct {
	Dest Edge
}

func (g *GotoTerminator) Result() *Value       { return nil }
func (g *GotoTerminator) Operands() []*Value   { return g.Dest.Args }
func (g *GotoTerminator) IsTerminator() bool   { return true }
func (g *GotoTerminator) Successors() []*Block { return []*Block{g.Dest.Target} }

// BranchTerminator is a two-way conditional edge.
type BranchTerminator struct {
	Cond    *Value
	IfTrue  Edge
	IfFalse Edge
}

func (b *BranchTerminator) Result() *Value { return nil }
func (b *BranchTerminator) Operands() []*Value {
	ops := []*Value{b.Cond}
	ops = append(ops, b.IfTrue.Args...)
	ops = append(ops, b.IfFalse.Args...)
	return ops
}
func (b *BranchTerminator) IsTerminator() bool { return true }
func (b *BranchTerminator) Successors() []*Block {
	return []*Block{b.IfTrue.Target, b.IfFalse.Target}
}

// ReturnTerminator yields the subgraph's value.
type ReturnTerminator struct {
	Val *Value
}

func (r *ReturnTerminator) Result() *Value { return nil }
func (r *ReturnTerminator) Operands() []*Value {
	if r.Val != nil {
		return []*Value{r.Val}
	}
	return nil
}
func (r *ReturnTerminator) IsTerminator() bool   { return true }
func (r *ReturnTerminator) Successors() []*Block { return nil }
