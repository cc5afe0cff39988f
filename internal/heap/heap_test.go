package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smelt/internal/graph"
	"smelt/internal/layout"
	"smelt/internal/target"
)

func TestSmiTagging(t *testing.T) {
	h := New(target.Default64())
	for _, v := range []int64{0, 1, -1, 42, 1<<30 - 1, -(1 << 30)} {
		w := h.SmiTag(v)
		assert.True(t, h.IsSmi(w))
		assert.Equal(t, v, h.SmiUntag(w))
	}
	assert.False(t, h.IsSmi(uint64(h.Factory().TrueRef())))

	full := New(target.Full64())
	w := full.SmiTag(-2147483648)
	assert.True(t, full.IsSmi(w))
	assert.Equal(t, int64(-2147483648), full.SmiUntag(w))
}

func TestNewRejectsNarrowTargets(t *testing.T) {
	assert.Panics(t, func() { New(target.Default32()) })
}

func TestLoadStoreRoundtrip(t *testing.T) {
	h := New(target.Default64())
	addr, err := h.Allocate(16, graph.AllocateYoung)
	require.NoError(t, err)
	base := addr - layout.HeapObjectTag

	require.NoError(t, h.Store(base, 0x1122334455667788, graph.MemWord64))
	for _, tc := range []struct {
		rep  graph.MemoryRep
		want uint64
	}{
		{graph.MemWord8, 0x88},
		{graph.MemWord16, 0x7788},
		{graph.MemWord32, 0x55667788},
		{graph.MemWord64, 0x1122334455667788},
	} {
		got, err := h.Load(base, tc.rep)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err = h.Load(0x100, graph.MemWord64)
	assert.Error(t, err)
}

func TestByteOrder(t *testing.T) {
	h := New(target.Config{PointerBits: 64, SmiBits: 31, ByteOrder: target.BigEndian})
	addr, err := h.Allocate(8, graph.AllocateYoung)
	require.NoError(t, err)
	base := addr - layout.HeapObjectTag

	require.NoError(t, h.Store(base, 0x11223344, graph.MemWord32))
	hi, err := h.Load(base, graph.MemWord8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11), hi)
}

func TestObjectCount(t *testing.T) {
	h := New(target.Default64())
	count := h.ObjectCount()
	h.NewHeapNumber(1.5)
	assert.Equal(t, count+1, h.ObjectCount())
}

func TestFactorySingletons(t *testing.T) {
	h := New(target.Default64())
	f := h.Factory()

	assert.Equal(t, uint16(layout.OddballType), h.InstanceTypeOf(f.TrueRef()))
	assert.Equal(t, uint16(layout.OddballType), h.InstanceTypeOf(f.FalseRef()))
	assert.Equal(t, uint16(layout.FixedArrayType), h.InstanceTypeOf(f.EmptyFixedArrRef()))

	// The hole carries the reserved NaN pattern in its numeric slot.
	bits := h.loadAt(f.TheHoleRef(), layout.OddballToNumberOffset, graph.MemWord64)
	assert.Equal(t, uint64(layout.HoleNaNBits), bits)

	_, ok := f.MapNamed("js_function_map")
	assert.True(t, ok)
	_, ok = f.MapNamed("flying_saucer_map")
	assert.False(t, ok)

	a := f.SingleCharacterString('A')
	s, ok := h.StringContent(a)
	require.True(t, ok)
	assert.Equal(t, "A", s)
}

func TestStringContent(t *testing.T) {
	h := New(target.Default64())

	one := h.NewSeqOneByteString([]byte("hello"))
	s, ok := h.StringContent(one)
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	two := h.NewSeqTwoByteString([]uint16{0x20AC, 'x'})
	s, ok = h.StringContent(two)
	require.True(t, ok)
	assert.Equal(t, "€x", s)

	// Surrogate pairs decode to a single code point.
	emoji := h.NewSeqTwoByteString([]uint16{0xD83D, 0xDE00})
	s, ok = h.StringContent(emoji)
	require.True(t, ok)
	assert.Equal(t, "\U0001F600", s)

	// An inline integer is not a string.
	_, ok = h.StringContent(Ref(h.SmiTag(3)))
	assert.False(t, ok)
}

func TestStringContentFlattensConcatenations(t *testing.T) {
	h := New(target.Default64())
	foo := h.NewSeqOneByteString([]byte("foo"))
	bar := h.NewSeqOneByteString([]byte("bar"))

	cons := h.allocRaw(layout.ConsStringSize)
	h.storeField(cons, layout.FieldMap(), uint64(h.factory.maps["cons_one_byte_string_map"]))
	h.storeField(cons, layout.FieldStringHash(), layout.EmptyHashField)
	h.storeField(cons, layout.FieldStringLength(), 6)
	h.storeField(cons, layout.FieldConsStringFirst(), uint64(foo))
	h.storeField(cons, layout.FieldConsStringSecond(), uint64(bar))

	s, ok := h.StringContent(cons)
	require.True(t, ok)
	assert.Equal(t, "foobar", s)
}

func TestStringToArrayIndexBuiltin(t *testing.T) {
	h := New(target.Default64())
	index := func(text string) int64 {
		s := h.NewSeqOneByteString([]byte(text))
		out, err := h.Builtin(graph.BuiltinStringToArrayIndex, []uint64{uint64(s)})
		require.NoError(t, err)
		return int64(out)
	}

	assert.Equal(t, int64(0), index("0"))
	assert.Equal(t, int64(123), index("123"))
	assert.Equal(t, int64(2147483647), index("2147483647"))

	// Leading zeros, signs, non-digits and overflow all reject.
	assert.Equal(t, int64(-1), index("01"))
	assert.Equal(t, int64(-1), index("-1"))
	assert.Equal(t, int64(-1), index("12a"))
	assert.Equal(t, int64(-1), index(""))
	assert.Equal(t, int64(-1), index("2147483648"))

	_, err := h.Builtin(graph.Builtin(99), nil)
	assert.Error(t, err)
}

func TestBigIntValue(t *testing.T) {
	h := New(target.Default64())

	neg, mag := h.BigIntValue(h.NewBigInt(true, 42))
	assert.True(t, neg)
	assert.Equal(t, uint64(42), mag)

	// Zero is canonical and digitless, never negative.
	neg, mag = h.BigIntValue(h.NewBigInt(true, 0))
	assert.False(t, neg)
	assert.Equal(t, uint64(0), mag)
}

func TestJSObjectShape(t *testing.T) {
	h := New(target.Default64())
	obj := h.NewJSObject([]uint64{h.SmiTag(7)}, []uint64{h.SmiTag(9)})

	assert.Equal(t, uint16(layout.JSObjectType), h.InstanceTypeOf(obj))
	props := Ref(h.loadField(obj, layout.FieldJSObjectProperties()))
	assert.Equal(t, uint16(layout.FixedArrayType), h.InstanceTypeOf(props))
	assert.Equal(t, h.SmiTag(1), h.loadField(props, layout.FieldFixedArrayLength()))

	arr := h.NewDoubleJSArray([]float64{1.5, 2.5})
	assert.Equal(t, uint16(layout.JSArrayType), h.InstanceTypeOf(arr))
	elements := Ref(h.loadField(arr, layout.FieldJSObjectElements()))
	assert.Equal(t, uint16(layout.FixedDoubleArrayType), h.InstanceTypeOf(elements))
	assert.Equal(t, h.SmiTag(2), h.loadField(arr, layout.FieldJSArrayLength()))
}
