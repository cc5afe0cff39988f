package graph

import (
	"fmt"
	"math"
)

// The evaluator executes a lowered subgraph against a memory model. It exists
// for tests and the CLI --run mode; production consumers hand the graph to
// later codegen stages instead.

// Slot is one runtime value. Word-like representations live in W (word32
// values zero-extended), float64 values in F.
type Slot struct {
	W uint64
	F float64
}

// Word32Slot builds a word32 slot from a signed value.
func Word32Slot(v int32) Slot { return Slot{W: uint64(uint32(v))} }

// Word64Slot builds a word64 slot.
func Word64Slot(v uint64) Slot { return Slot{W: v} }

// Float64Slot builds a float64 slot.
func Float64Slot(v float64) Slot { return Slot{F: v} }

// TaggedSlot builds a tagged slot from an encoded dynamic value word.
func TaggedSlot(w uint64) Slot { return Slot{W: w} }

// Memory is the runtime the evaluator executes against: an allocator, raw
// slot access by untagged address, and the external builtins lowered code may
// call. Float payloads cross this boundary as raw bits.
type Memory interface {
	Allocate(size uint64, hint AllocationHint) (uint64, error)
	Load(addr uint64, rep MemoryRep) (uint64, error)
	Store(addr uint64, bits uint64, rep MemoryRep) error
	Builtin(b Builtin, args []uint64) (uint64, error)
}

// Result is the outcome of one evaluation: either a value or a taken
// deoptimization exit.
type Result struct {
	Deopted bool
	Reason  DeoptReason
	Val     Slot
	Rep     RegisterRep
}

const maxSteps = 1_000_000

// Run executes the graph with the given arguments.
func Run(g *Graph, mem Memory, args ...Slot) (Result, error) {
	if len(args) != len(g.Params) {
		return Result{}, fmt.Errorf("graph takes %d arguments, got %d", len(g.Params), len(args))
	}
	e := &evaluator{mem: mem, env: make(map[*Value]Slot)}
	for i, p := range g.Params {
		e.env[p] = args[i]
	}

	block := g.Entry
	steps := 0
	for {
		for _, instr := range block.Instrs {
			steps++
			if steps > maxSteps {
				return Result{}, fmt.Errorf("evaluation exceeded %d steps", maxSteps)
			}
			if d, ok := instr.(*DeoptimizeIfOp); ok {
				taken := e.get(d.Cond).W != 0
				if d.Negated {
					taken = !taken
				}
				if taken {
					return Result{Deopted: true, Reason: d.Reason}, nil
				}
				continue
			}
			if err := e.exec(instr); err != nil {
				return Result{}, err
			}
		}
		switch t := block.Term.(type) {
		case *GotoTerminator:
			e.bindEdge(t.Dest)
			block = t.Dest.Target
		case *BranchTerminator:
			edge := t.IfFalse
			if e.get(t.Cond).W != 0 {
				edge = t.IfTrue
			}
			e.bindEdge(edge)
			block = edge.Target
		case *ReturnTerminator:
			if t.Val == nil {
				return Result{}, nil
			}
			return Result{Val: e.get(t.Val), Rep: t.Val.Rep}, nil
		default:
			return Result{}, fmt.Errorf("block b%d has no terminator", block.ID)
		}
	}
}

type evaluator struct {
	mem Memory
	env map[*Value]Slot
}

func (e *evaluator) get(v *Value) Slot {
	s, ok := e.env[v]
	if !ok {
		panic(fmt.Sprintf("graph: use of undefined value %s", v))
	}
	return s
}

func (e *evaluator) bindEdge(edge Edge) {
	for i, p := range edge.Target.Params {
		e.env[p] = e.get(edge.Args[i])
	}
}

func (e *evaluator) exec(instr Instruction) error {
	switch op := instr.(type) {
	case *ConstantOp:
		if op.IsRef {
			e.env[op.Out] = Slot{W: op.Ref.Addr}
		} else if op.Out.Rep == RepFloat64 {
			e.env[op.Out] = Slot{F: op.Float}
		} else {
			e.env[op.Out] = Slot{W: op.Word}
		}
	case *PureOp:
		e.env[op.Out] = e.pure(op)
	case *CheckedAddOp:
		l := int64(int32(uint32(e.get(op.Left).W)))
		r := int64(int32(uint32(e.get(op.Right).W)))
		sum := l + r
		e.env[op.OutVal] = Word32Slot(int32(sum))
		e.env[op.OutOvf] = Word32Slot(boolToInt32(sum != int64(int32(sum))))
	case *LoadOp:
		bits, err := e.mem.Load(e.slotAddr(op.Base, op.Index, op.Offset, op.ElementSizeLog2), op.Rep)
		if err != nil {
			return err
		}
		if op.Rep == MemFloat64 {
			e.env[op.Out] = Slot{F: math.Float64frombits(bits)}
		} else {
			e.env[op.Out] = Slot{W: bits}
		}
	case *StoreOp:
		val := e.get(op.Val)
		bits := val.W
		if op.Rep == MemFloat64 {
			bits = math.Float64bits(val.F)
		}
		return e.mem.Store(e.slotAddr(op.Base, op.Index, op.Offset, op.ElementSizeLog2), bits, op.Rep)
	case *AllocateOp:
		addr, err := e.mem.Allocate(e.get(op.Size).W, op.Hint)
		if err != nil {
			return err
		}
		e.env[op.Out] = Slot{W: addr}
	case *CallBuiltinOp:
		args := make([]uint64, len(op.Args))
		for i, a := range op.Args {
			args[i] = e.get(a).W
		}
		res, err := e.mem.Builtin(op.Builtin, args)
		if err != nil {
			return err
		}
		e.env[op.Out] = Slot{W: res}
	default:
		return fmt.Errorf("graph: cannot evaluate %T", instr)
	}
	return nil
}

// slotAddr computes the untagged effective address of a tagged-base access.
func (e *evaluator) slotAddr(base, index *Value, offset int32, log2 uint8) uint64 {
	addr := e.get(base).W - 1 + uint64(int64(offset))
	if index != nil {
		addr += e.get(index).W << log2
	}
	return addr
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (e *evaluator) pure(op *PureOp) Slot {
	arg := func(i int) Slot { return e.get(op.Args[i]) }
	u32 := func(i int) uint32 { return uint32(arg(i).W) }
	i32 := func(i int) int32 { return int32(uint32(arg(i).W)) }
	u64 := func(i int) uint64 { return arg(i).W }
	i64v := func(i int) int64 { return int64(arg(i).W) }
	f := func(i int) float64 { return arg(i).F }
	b := func(cond bool) Slot { return Word32Slot(boolToInt32(cond)) }

	switch op.Kind {
	case Word32Add:
		return Word32Slot(int32(u32(0) + u32(1)))
	case Word32Sub:
		return Word32Slot(int32(u32(0) - u32(1)))
	case Word32And:
		return Slot{W: uint64(u32(0) & u32(1))}
	case Word32Or:
		return Slot{W: uint64(u32(0) | u32(1))}
	case Word32Xor:
		return Slot{W: uint64(u32(0) ^ u32(1))}
	case Word32Shl:
		return Slot{W: uint64(u32(0) << (u32(1) & 31))}
	case Word32ShrLogical:
		return Slot{W: uint64(u32(0) >> (u32(1) & 31))}
	case Word32ShrArith:
		return Word32Slot(i32(0) >> (u32(1) & 31))
	case Word32Equal:
		return b(u32(0) == u32(1))
	case Int32LessThan:
		return b(i32(0) < i32(1))
	case Uint32LessThan:
		return b(u32(0) < u32(1))
	case Uint32LessThanOrEqual:
		return b(u32(0) <= u32(1))

	case Word64Add:
		return Slot{W: u64(0) + u64(1)}
	case Word64Sub:
		return Slot{W: u64(0) - u64(1)}
	case Word64And:
		return Slot{W: u64(0) & u64(1)}
	case Word64Or:
		return Slot{W: u64(0) | u64(1)}
	case Word64Xor:
		return Slot{W: u64(0) ^ u64(1)}
	case Word64Shl:
		return Slot{W: u64(0) << (u64(1) & 63)}
	case Word64ShrLogical:
		return Slot{W: u64(0) >> (u64(1) & 63)}
	case Word64ShrArith:
		return Slot{W: uint64(i64v(0) >> (u64(1) & 63))}
	case Word64Equal:
		return b(u64(0) == u64(1))
	case Int64LessThan:
		return b(i64v(0) < i64v(1))
	case Uint64LessThan:
		return b(u64(0) < u64(1))
	case Uint64LessThanOrEqual:
		return b(u64(0) <= u64(1))

	// The evaluator models pointer-width words as 64-bit; 32-bit targets are
	// evaluated only for word-level graphs.
	case WordPtrAdd:
		return Slot{W: u64(0) + u64(1)}
	case WordPtrSub:
		return Slot{W: u64(0) - u64(1)}
	case WordPtrAnd:
		return Slot{W: u64(0) & u64(1)}
	case WordPtrShl:
		return Slot{W: u64(0) << (u64(1) & 63)}
	case WordPtrShrArith:
		return Slot{W: uint64(i64v(0) >> (u64(1) & 63))}
	case WordPtrEqual, TaggedEqual:
		return b(u64(0) == u64(1))
	case IntPtrLessThan:
		return b(i64v(0) < i64v(1))
	case UintPtrLessThan:
		return b(u64(0) < u64(1))

	case Float64Equal:
		return b(f(0) == f(1))
	case Float64Min:
		return Float64Slot(math.Min(f(0), f(1)))
	case Float64Max:
		return Float64Slot(math.Max(f(0), f(1)))

	case ChangeInt32ToInt64:
		return Slot{W: uint64(int64(i32(0)))}
	case ChangeInt32ToFloat64:
		return Float64Slot(float64(i32(0)))
	case ChangeUint32ToFloat64:
		return Float64Slot(float64(u32(0)))
	case ChangeInt64ToFloat64:
		return Float64Slot(float64(i64v(0)))
	case ChangeUint64ToFloat64:
		return Float64Slot(float64(u64(0)))
	case ChangeInt32ToIntPtr:
		return Slot{W: uint64(int64(i32(0)))}
	case ChangeUint32ToUintPtr:
		return Slot{W: uint64(u32(0))}
	case ChangeIntPtrToInt64:
		return Slot{W: u64(0)}
	case TruncateWord64ToWord32, TruncateWordPtrToWord32:
		return Slot{W: uint64(uint32(u64(0)))}
	case TruncateFloat64ToInt32:
		return Word32Slot(truncateToInt32(f(0)))
	case TruncateFloat64ToInt64:
		return Slot{W: uint64(truncateToInt64(f(0)))}
	case TruncateFloat64ToUint32:
		return Slot{W: uint64(truncateToUint32(f(0)))}
	case Float64ExtractHighWord32:
		return Slot{W: uint64(uint32(math.Float64bits(f(0)) >> 32))}
	case BitcastTaggedToWordPtr, BitcastWordPtrToTagged:
		return arg(0)
	}
	panic(fmt.Sprintf("graph: cannot evaluate pure op %s", op.Kind))
}

// truncateToInt32 truncates toward zero. Out-of-range and NaN inputs produce
// the x86 sentinel; every use is behind a round-trip guard.
func truncateToInt32(v float64) int32 {
	t := math.Trunc(v)
	if math.IsNaN(t) || t < math.MinInt32 || t > math.MaxInt32 {
		return math.MinInt32
	}
	return int32(t)
}

func truncateToUint32(v float64) uint32 {
	t := math.Trunc(v)
	if math.IsNaN(t) || t < 0 || t > math.MaxUint32 {
		return 0
	}
	return uint32(t)
}

func truncateToInt64(v float64) int64 {
	t := math.Trunc(v)
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return math.MinInt64
	}
	return int64(t)
}
