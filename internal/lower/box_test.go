package lower

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/mid"
	"smelt/internal/target"
)

func boxFn(kind mid.BoxKind, rep mid.InputRep, interp mid.Interpretation, mode mid.MinusZeroMode, param mid.Param) *mid.Function {
	return oneNode([]mid.Param{param}, &mid.Box{
		Kind: kind, Input: param.Name, Rep: rep, Interpretation: interp, MinusZero: mode,
	})
}

func TestBoxNumberWord32Signed(t *testing.T) {
	fn := boxFn(mid.BoxNumber, mid.RepWord32, mid.InterpretSigned, mid.IgnoreMinusZero, word32Param("x"))

	res, h := run(t, fn, graph.Word32Slot(5))
	requireSmi(t, h, res, 5)

	res, h = run(t, fn, graph.Word32Slot(-17))
	requireSmi(t, h, res, -17)

	// Outside the 31-bit inline range the value boxes.
	res, h = run(t, fn, graph.Word32Slot(1<<30))
	requireBoxedNumber(t, h, res, float64(1<<30))

	res, h = run(t, fn, graph.Word32Slot(math.MinInt32))
	requireBoxedNumber(t, h, res, float64(math.MinInt32))
}

func TestBoxNumberWord32SignedFull64(t *testing.T) {
	// A 32-bit inline payload fits every word32, so nothing ever boxes.
	fn := boxFn(mid.BoxNumber, mid.RepWord32, mid.InterpretSigned, mid.IgnoreMinusZero, word32Param("x"))

	res, h := runOn(t, target.Full64(), fn, graph.Word32Slot(math.MaxInt32))
	requireSmi(t, h, res, math.MaxInt32)

	res, h = runOn(t, target.Full64(), fn, graph.Word32Slot(math.MinInt32))
	requireSmi(t, h, res, math.MinInt32)
}

func TestBoxNumberWord32Unsigned(t *testing.T) {
	fn := boxFn(mid.BoxNumber, mid.RepWord32, mid.InterpretUnsigned, mid.IgnoreMinusZero, word32Param("x"))

	res, h := run(t, fn, graph.Word32Slot(5))
	requireSmi(t, h, res, 5)

	// 3000000000 reads negative as int32; unsigned boxing must produce the
	// positive double.
	res, h = run(t, fn, graph.Word64Slot(3000000000))
	requireBoxedNumber(t, h, res, 3000000000.0)
}

func TestBoxNumberWord32UnsignedSmiPathAllocatesNothing(t *testing.T) {
	fn := boxFn(mid.BoxNumber, mid.RepWord32, mid.InterpretUnsigned, mid.IgnoreMinusZero, word32Param("x"))
	g, h := lowerOn(t, target.Default64(), fn)

	count := h.ObjectCount()
	res, err := graph.Run(g, h, graph.Word32Slot(5))
	require.NoError(t, err)
	requireSmi(t, h, res, 5)
	require.Equal(t, count, h.ObjectCount(), "the inline path must not allocate")

	res, err = graph.Run(g, h, graph.Word64Slot(3000000000))
	require.NoError(t, err)
	require.Equal(t, count+1, h.ObjectCount(), "the boxing path allocates exactly one object")
	requireBoxedNumber(t, h, res, 3000000000.0)
}

func TestBoxNumberWord64(t *testing.T) {
	signed := boxFn(mid.BoxNumber, mid.RepWord64, mid.InterpretSigned, mid.IgnoreMinusZero, word64Param("x"))

	res, h := run(t, signed, graph.Word64Slot(12))
	requireSmi(t, h, res, 12)

	res, h = run(t, signed, graph.Word64Slot(uint64(0xFFFFFFFFFFFFFFFF))) // -1
	requireSmi(t, h, res, -1)

	res, h = run(t, signed, graph.Word64Slot(1<<40))
	requireBoxedNumber(t, h, res, float64(int64(1)<<40))

	unsigned := boxFn(mid.BoxNumber, mid.RepWord64, mid.InterpretUnsigned, mid.IgnoreMinusZero, word64Param("x"))

	res, h = run(t, unsigned, graph.Word64Slot(12))
	requireSmi(t, h, res, 12)

	// The high bit reads as a huge magnitude, not a negative value.
	res, h = run(t, unsigned, graph.Word64Slot(1<<63))
	requireBoxedNumber(t, h, res, math.Ldexp(1, 63))
}

func TestBoxNumberFloat64(t *testing.T) {
	fn := boxFn(mid.BoxNumber, mid.RepFloat64, mid.InterpretSigned, mid.IgnoreMinusZero, float64Param("x"))

	res, h := run(t, fn, graph.Float64Slot(9))
	requireSmi(t, h, res, 9)

	res, h = run(t, fn, graph.Float64Slot(2.5))
	requireBoxedNumber(t, h, res, 2.5)

	nan, hh := run(t, fn, graph.Float64Slot(math.NaN()))
	require.False(t, nan.Deopted)
	require.True(t, math.IsNaN(hh.NumberValue(heap.Ref(nan.Val.W))))

	// Ignoring minus zero lets -0.0 collapse to the inline zero.
	res, h = run(t, fn, graph.Float64Slot(math.Copysign(0, -1)))
	requireSmi(t, h, res, 0)
}

func TestBoxNumberFloat64MinusZeroBoxes(t *testing.T) {
	fn := boxFn(mid.BoxNumber, mid.RepFloat64, mid.InterpretSigned, mid.CheckForMinusZero, float64Param("x"))

	res, h := run(t, fn, graph.Float64Slot(0))
	requireSmi(t, h, res, 0)

	// -0.0 cannot be inline: the box must preserve the sign bit.
	res, h = run(t, fn, graph.Float64Slot(math.Copysign(0, -1)))
	require.False(t, res.Deopted)
	require.False(t, h.IsSmi(res.Val.W))
	bits := math.Float64bits(h.NumberValue(heap.Ref(res.Val.W)))
	require.Equal(t, math.Float64bits(math.Copysign(0, -1)), bits)
}

func TestBoxHeapNumber(t *testing.T) {
	fn := boxFn(mid.BoxHeapNumber, mid.RepFloat64, mid.InterpretSigned, mid.IgnoreMinusZero, float64Param("x"))

	// Always a fresh box, even for inline-representable values.
	res, h := run(t, fn, graph.Float64Slot(3))
	requireBoxedNumber(t, h, res, 3)
}

func TestBoxSmi(t *testing.T) {
	fn := boxFn(mid.BoxSmi, mid.RepWord32, mid.InterpretSigned, mid.IgnoreMinusZero, word32Param("x"))

	res, h := run(t, fn, graph.Word32Slot(1000))
	requireSmi(t, h, res, 1000)

	res, h = run(t, fn, graph.Word32Slot(-1000))
	requireSmi(t, h, res, -1000)
}

func TestBoxBoolean(t *testing.T) {
	fn := boxFn(mid.BoxBoolean, mid.RepWord32, mid.InterpretSigned, mid.IgnoreMinusZero, word32Param("x"))

	res, h := run(t, fn, graph.Word32Slot(1))
	require.Equal(t, uint64(h.Factory().TrueRef()), res.Val.W)

	res, h = run(t, fn, graph.Word32Slot(0))
	require.Equal(t, uint64(h.Factory().FalseRef()), res.Val.W)

	// Any nonzero word is truthy.
	res, h = run(t, fn, graph.Word32Slot(42))
	require.Equal(t, uint64(h.Factory().TrueRef()), res.Val.W)
}

func TestBoxBigInt(t *testing.T) {
	signed := boxFn(mid.BoxBigInt, mid.RepWord64, mid.InterpretSigned, mid.IgnoreMinusZero, word64Param("x"))

	res, h := run(t, signed, graph.Word64Slot(uint64(42)))
	neg, mag := h.BigIntValue(heap.Ref(res.Val.W))
	require.False(t, neg)
	require.Equal(t, uint64(42), mag)

	res, h = run(t, signed, graph.Word64Slot(uint64(0xFFFFFFFFFFFFFFD6))) // -42
	neg, mag = h.BigIntValue(heap.Ref(res.Val.W))
	require.True(t, neg)
	require.Equal(t, uint64(42), mag)

	// The signed minimum negates branchlessly into sign + 2^63.
	res, h = run(t, signed, graph.Word64Slot(uint64(1)<<63))
	neg, mag = h.BigIntValue(heap.Ref(res.Val.W))
	require.True(t, neg)
	require.Equal(t, uint64(1)<<63, mag)

	// Zero is the canonical digitless encoding.
	res, h = run(t, signed, graph.Word64Slot(0))
	neg, mag = h.BigIntValue(heap.Ref(res.Val.W))
	require.False(t, neg)
	require.Zero(t, mag)

	unsigned := boxFn(mid.BoxBigInt, mid.RepWord64, mid.InterpretUnsigned, mid.IgnoreMinusZero, word64Param("x"))

	res, h = run(t, unsigned, graph.Word64Slot(uint64(1)<<63))
	neg, mag = h.BigIntValue(heap.Ref(res.Val.W))
	require.False(t, neg)
	require.Equal(t, uint64(1)<<63, mag)
}

func TestBoxStringCharCode(t *testing.T) {
	fn := boxFn(mid.BoxString, mid.RepWord32, mid.InterpretCharCode, mid.IgnoreMinusZero, word32Param("x"))
	g, h := lowerOn(t, target.Default64(), fn)

	// One-byte characters come straight out of the precomputed table.
	count := h.ObjectCount()
	res, err := graph.Run(g, h, graph.Word32Slot(0x41))
	require.NoError(t, err)
	require.Equal(t, count, h.ObjectCount(), "table hits must not allocate")
	require.Equal(t, uint64(h.Factory().SingleCharacterString(0x41)), res.Val.W)
	s, ok := h.StringContent(heap.Ref(res.Val.W))
	require.True(t, ok)
	require.Equal(t, "A", s)

	// Higher codes allocate a fresh one-unit two-byte string.
	res, err = graph.Run(g, h, graph.Word32Slot(0x20AC))
	require.NoError(t, err)
	require.Equal(t, count+1, h.ObjectCount())
	require.Equal(t, []uint16{0x20AC}, h.StringUnits(heap.Ref(res.Val.W)))

	// Char codes truncate to 16 bits.
	res, err = graph.Run(g, h, graph.Word32Slot(0x10041))
	require.NoError(t, err)
	require.Equal(t, uint64(h.Factory().SingleCharacterString(0x41)), res.Val.W)
}

func TestBoxStringCodePoint(t *testing.T) {
	fn := boxFn(mid.BoxString, mid.RepWord32, mid.InterpretCodePoint, mid.IgnoreMinusZero, word32Param("x"))
	g, h := lowerOn(t, target.Default64(), fn)

	res, err := graph.Run(g, h, graph.Word32Slot(0x41))
	require.NoError(t, err)
	require.Equal(t, uint64(h.Factory().SingleCharacterString(0x41)), res.Val.W)

	res, err = graph.Run(g, h, graph.Word32Slot(0x20AC))
	require.NoError(t, err)
	require.Equal(t, []uint16{0x20AC}, h.StringUnits(heap.Ref(res.Val.W)))

	// Supplementary-plane code points split into a surrogate pair.
	res, err = graph.Run(g, h, graph.Word32Slot(0x1F600))
	require.NoError(t, err)
	require.Equal(t, []uint16{0xD83D, 0xDE00}, h.StringUnits(heap.Ref(res.Val.W)))
	s, ok := h.StringContent(heap.Ref(res.Val.W))
	require.True(t, ok)
	require.Equal(t, "\U0001F600", s)
}

func TestBoxStringCodePointBigEndian(t *testing.T) {
	cfg := target.Default64()
	cfg.ByteOrder = target.BigEndian
	fn := boxFn(mid.BoxString, mid.RepWord32, mid.InterpretCodePoint, mid.IgnoreMinusZero, word32Param("x"))

	res, h := runOn(t, cfg, fn, graph.Word32Slot(0x1F600))
	require.Equal(t, []uint16{0xD83D, 0xDE00}, h.StringUnits(heap.Ref(res.Val.W)))
}
