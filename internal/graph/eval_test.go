package graph

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smelt/internal/target"
)

// flatMemory is a minimal byte-addressed store for evaluator tests.
type flatMemory struct {
	base uint64
	data []byte
}

func newFlatMemory() *flatMemory {
	return &flatMemory{base: 0x1000, data: make([]byte, 0x1000)}
}

func (m *flatMemory) Allocate(size uint64, hint AllocationHint) (uint64, error) {
	addr := m.base
	m.base += (size + 7) &^ 7
	return addr | 1, nil
}

func (m *flatMemory) slice(addr uint64, size int) ([]byte, error) {
	off := addr - 0x1000
	if off+uint64(size) > uint64(len(m.data)) {
		return nil, fmt.Errorf("access outside the test arena at %#x", addr)
	}
	return m.data[off : off+uint64(size)], nil
}

func (m *flatMemory) Load(addr uint64, rep MemoryRep) (uint64, error) {
	size := 1 << repSizeLog2(rep)
	buf, err := m.slice(addr, size)
	if err != nil {
		return 0, err
	}
	var bits uint64
	for i := size - 1; i >= 0; i-- {
		bits = bits<<8 | uint64(buf[i])
	}
	return bits, nil
}

func (m *flatMemory) Store(addr uint64, bits uint64, rep MemoryRep) error {
	size := 1 << repSizeLog2(rep)
	buf, err := m.slice(addr, size)
	if err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	return nil
}

func (m *flatMemory) Builtin(b Builtin, args []uint64) (uint64, error) {
	if b == BuiltinStringToArrayIndex {
		return args[0] * 2, nil
	}
	return 0, fmt.Errorf("unknown builtin %v", b)
}

func repSizeLog2(rep MemoryRep) int {
	switch rep {
	case MemWord8:
		return 0
	case MemWord16:
		return 1
	case MemWord32:
		return 2
	default:
		return 3
	}
}

func TestRunStraightLine(t *testing.T) {
	a := NewAssembler(target.Default64())
	x := a.Parameter(RepWord32)
	a.Return(a.Word32Add(x, a.Word32Constant(5)))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word32Slot(37))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Val.W)
	assert.Equal(t, RepWord32, res.Rep)

	// word32 arithmetic wraps and stays zero-extended.
	res, err = Run(g, newFlatMemory(), Word32Slot(math.MaxInt32))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x80000004), res.Val.W)
}

func TestRunArgumentMismatch(t *testing.T) {
	a := NewAssembler(target.Default64())
	x := a.Parameter(RepWord32)
	a.Return(x)
	g := a.Finish()

	_, err := Run(g, newFlatMemory())
	assert.Error(t, err)
}

func TestRunBranch(t *testing.T) {
	// f(x) = x == 0 ? 10 : 20
	a := NewAssembler(target.Default64())
	x := a.Parameter(RepWord32)
	join := a.Label(RepWord32)
	a.If(a.Word32Equal(x, a.Word32Constant(0)))
	a.Goto(join, a.Word32Constant(10))
	a.Else()
	a.Goto(join, a.Word32Constant(20))
	a.EndIf()
	a.Return(a.Bind1(join))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word32Slot(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.Val.W)

	res, err = Run(g, newFlatMemory(), Word32Slot(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.Val.W)
}

func TestRunLoop(t *testing.T) {
	// f(n) = 1 + 2 + ... + n
	a := NewAssembler(target.Default64())
	n := a.Parameter(RepWord32)
	head := a.LoopLabel(RepWord32, RepWord32)
	exit := a.Label(RepWord32)

	a.Goto(head, a.Word32Constant(1), a.Word32Constant(0))
	vals := a.Bind(head)
	i, acc := vals[0], vals[1]
	a.GotoIfNot(a.Uint32LessThanOrEqual(i, n), exit, acc)
	next := a.Word32Add(acc, i)
	a.Goto(head, a.Word32Add(i, a.Word32Constant(1)), next)
	a.Return(a.Bind1(exit))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word32Slot(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.Val.W)

	res, err = Run(g, newFlatMemory(), Word32Slot(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Val.W)
}

func TestRunRunawayLoopAborts(t *testing.T) {
	a := NewAssembler(target.Default64())
	head := a.LoopLabel()
	a.Goto(head)
	a.Bind(head)
	a.Goto(head)
	g := a.Finish()

	_, err := Run(g, newFlatMemory())
	assert.Error(t, err)
}

func TestRunDeopt(t *testing.T) {
	a := NewAssembler(target.Default64())
	x := a.Parameter(RepWord32)
	a.DeoptimizeIf(a.Word32Equal(x, a.Word32Constant(0)),
		FrameState{ID: 2}, DeoptNotASmi, Feedback{Token: "site"})
	a.Return(x)
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word32Slot(0))
	require.NoError(t, err)
	assert.True(t, res.Deopted)
	assert.Equal(t, DeoptNotASmi, res.Reason)

	res, err = Run(g, newFlatMemory(), Word32Slot(9))
	require.NoError(t, err)
	assert.False(t, res.Deopted)
	assert.Equal(t, uint64(9), res.Val.W)
}

func TestRunCheckedAdd(t *testing.T) {
	a := NewAssembler(target.Default64())
	x := a.Parameter(RepWord32)
	y := a.Parameter(RepWord32)
	_, ovf := a.Int32AddCheckOverflow(x, y)
	a.Return(ovf)
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word32Slot(1), Word32Slot(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Val.W)

	res, err = Run(g, newFlatMemory(), Word32Slot(math.MaxInt32), Word32Slot(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Val.W)
}

func TestRunMemoryOps(t *testing.T) {
	// Allocate 16 bytes, store a float in the second slot, load it back.
	a := NewAssembler(target.Default64())
	f := a.Parameter(RepFloat64)
	obj := a.Allocate(a.IntPtrConstant(16), AllocateYoung)
	a.Store(obj, nil, f, 8, 0, MemFloat64, NoWriteBarrier)
	a.Return(a.Load(obj, nil, 8, 0, MemFloat64))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Float64Slot(2.75))
	require.NoError(t, err)
	assert.Equal(t, RepFloat64, res.Rep)
	assert.Equal(t, 2.75, res.Val.F)
}

func TestRunIndexedAccess(t *testing.T) {
	// store base[i<<2] then load it back through the same addressing form.
	a := NewAssembler(target.Default64())
	i := a.Parameter(RepWordPtr)
	v := a.Parameter(RepWord32)
	obj := a.Allocate(a.IntPtrConstant(64), AllocateYoung)
	a.Store(obj, i, v, 0, 2, MemWord32, NoWriteBarrier)
	a.Return(a.Load(obj, i, 0, 2, MemWord32))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word64Slot(3), Word32Slot(77))
	require.NoError(t, err)
	assert.Equal(t, uint64(77), res.Val.W)
}

func TestRunBuiltinCall(t *testing.T) {
	a := NewAssembler(target.Default64())
	x := a.Parameter(RepWord64)
	a.Return(a.CallBuiltin(BuiltinStringToArrayIndex, RepWord64, x))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Word64Slot(21))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Val.W)
}

func TestRunFloatTruncationSentinels(t *testing.T) {
	a := NewAssembler(target.Default64())
	f := a.Parameter(RepFloat64)
	a.Return(a.TruncateFloat64ToInt32(f))
	g := a.Finish()

	res, err := Run(g, newFlatMemory(), Float64Slot(7.9))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Val.W)

	res, err = Run(g, newFlatMemory(), Float64Slot(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x80000000), res.Val.W)

	res, err = Run(g, newFlatMemory(), Float64Slot(1e12))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x80000000), res.Val.W)
}
