package heap

import (
	"math"

	"smelt/internal/graph"
	"smelt/internal/layout"
)

// Factory owns the canonical singleton references shared read-only by all
// compilation tasks: type descriptors, oddballs, the empty array and the
// single-character string table.
type Factory struct {
	heap *Heap

	maps  map[string]Ref
	names map[Ref]string

	trueValue      Ref
	falseValue     Ref
	theHoleValue   Ref
	emptyFixedArr  Ref
	singleCharTbl  Ref
	singleCharRefs [layout.MaxOneByteCharCode + 1]Ref
}

func newFactory(h *Heap) *Factory {
	f := &Factory{heap: h, maps: map[string]Ref{}, names: map[Ref]string{}}
	h.factory = f

	f.newMap("heap_number_map", layout.HeapNumberType, 0)
	f.newMap("bigint_map", layout.BigIntType, 0)
	f.newMap("boolean_map", layout.OddballType, 0)
	f.newMap("oddball_map", layout.OddballType, 0)
	f.newMap("symbol_map", layout.SymbolType, 0)
	f.newMap("seq_two_byte_string_map", layout.SeqTwoByteStringType, 0)
	f.newMap("seq_one_byte_string_map", layout.SeqOneByteStringType, 0)
	f.newMap("cons_string_map", layout.ConsTwoByteStringType, 0)
	f.newMap("cons_one_byte_string_map", layout.ConsOneByteStringType, 0)
	f.newMap("fixed_array_map", layout.FixedArrayType, 0)
	f.newMap("fixed_double_array_map", layout.FixedDoubleArrayType, 0)
	f.newMap("typed_array_map", layout.TypedArrayType, 0)
	f.newMap("data_view_map", layout.DataViewType, 0)
	f.newMap("js_object_map", layout.JSObjectType, 0)
	f.newMap("js_array_map", layout.JSArrayType, 0)
	f.newMap("js_function_map", layout.JSFunctionType,
		layout.MapIsCallableBit|layout.MapIsConstructorBit)
	f.newMap("js_proxy_map", layout.JSProxyType, layout.MapIsCallableBit)
	f.newMap("undetectable_callable_map", layout.JSObjectType,
		layout.MapIsCallableBit|layout.MapIsUndetectableBit)

	f.trueValue = f.newOddball("true_value", f.maps["boolean_map"], 1.0)
	f.falseValue = f.newOddball("false_value", f.maps["boolean_map"], 0.0)

	f.theHoleValue = f.heap.allocRaw(layout.OddballSize)
	f.heap.storeField(f.theHoleValue, layout.FieldMap(), uint64(f.maps["oddball_map"]))
	f.heap.storeAt(f.theHoleValue, layout.OddballToNumberOffset, layout.HoleNaNBits, graph.MemWord64)
	f.names[f.theHoleValue] = "the_hole_value"

	f.emptyFixedArr = f.heap.allocRaw(layout.FixedArrayHeaderSize)
	f.heap.storeField(f.emptyFixedArr, layout.FieldMap(), uint64(f.maps["fixed_array_map"]))
	f.heap.storeField(f.emptyFixedArr, layout.FieldFixedArrayLength(), f.heap.SmiTag(0))
	f.names[f.emptyFixedArr] = "empty_fixed_array"

	f.buildSingleCharacterTable()
	return f
}

func (f *Factory) newMap(name string, instanceType uint16, bitfield uint8) Ref {
	m := f.heap.allocRaw(layout.MapSize)
	f.heap.storeField(m, layout.FieldMapInstanceType(), uint64(instanceType))
	f.heap.storeField(m, layout.FieldMapBitField(), uint64(bitfield))
	f.maps[name] = m
	f.names[m] = name
	return m
}

func (f *Factory) newOddball(name string, m Ref, toNumber float64) Ref {
	o := f.heap.allocRaw(layout.OddballSize)
	f.heap.storeField(o, layout.FieldMap(), uint64(m))
	f.heap.storeAt(o, layout.OddballToNumberOffset, math.Float64bits(toNumber), graph.MemWord64)
	f.names[o] = name
	return o
}

func (f *Factory) buildSingleCharacterTable() {
	count := layout.MaxOneByteCharCode + 1
	f.singleCharTbl = f.heap.allocRaw(uint64(layout.FixedArrayHeaderSize + layout.TaggedSize*count))
	f.heap.storeField(f.singleCharTbl, layout.FieldMap(), uint64(f.maps["fixed_array_map"]))
	f.heap.storeField(f.singleCharTbl, layout.FieldFixedArrayLength(), f.heap.SmiTag(int64(count)))
	for code := 0; code < count; code++ {
		s := f.heap.NewSeqOneByteString([]byte{byte(code)})
		f.singleCharRefs[code] = s
		f.heap.storeAt(f.singleCharTbl,
			layout.FixedArrayHeaderSize+int64(code)*layout.TaggedSize,
			uint64(s), graph.MemTagged)
	}
	f.names[f.singleCharTbl] = "single_character_string_table"
}

func (f *Factory) ref(r Ref) graph.RefConstant {
	return graph.RefConstant{Addr: uint64(r), Name: f.names[r]}
}

func (f *Factory) mapRef(name string) graph.RefConstant {
	return graph.RefConstant{Addr: uint64(f.maps[name]), Name: name}
}

// Singleton references embedded into lowered graphs.

func (f *Factory) TrueValue() graph.RefConstant    { return f.ref(f.trueValue) }
func (f *Factory) FalseValue() graph.RefConstant   { return f.ref(f.falseValue) }
func (f *Factory) TheHoleValue() graph.RefConstant { return f.ref(f.theHoleValue) }
func (f *Factory) EmptyFixedArray() graph.RefConstant {
	return f.ref(f.emptyFixedArr)
}
func (f *Factory) SingleCharacterStringTable() graph.RefConstant {
	return f.ref(f.singleCharTbl)
}

func (f *Factory) HeapNumberMap() graph.RefConstant { return f.mapRef("heap_number_map") }
func (f *Factory) BigIntMap() graph.RefConstant     { return f.mapRef("bigint_map") }
func (f *Factory) BooleanMap() graph.RefConstant    { return f.mapRef("boolean_map") }
func (f *Factory) StringMap() graph.RefConstant {
	return f.mapRef("seq_two_byte_string_map")
}
func (f *Factory) ConsStringMap() graph.RefConstant { return f.mapRef("cons_string_map") }
func (f *Factory) ConsOneByteStringMap() graph.RefConstant {
	return f.mapRef("cons_one_byte_string_map")
}
func (f *Factory) FixedArrayMap() graph.RefConstant { return f.mapRef("fixed_array_map") }
func (f *Factory) FixedDoubleArrayMap() graph.RefConstant {
	return f.mapRef("fixed_double_array_map")
}

// MapNamed exposes any descriptor by name, for tests that sweep object kinds.
func (f *Factory) MapNamed(name string) (Ref, bool) {
	m, ok := f.maps[name]
	return m, ok
}

// TrueRef and friends give tests the raw singleton references.
func (f *Factory) TrueRef() Ref          { return f.trueValue }
func (f *Factory) FalseRef() Ref         { return f.falseValue }
func (f *Factory) TheHoleRef() Ref       { return f.theHoleValue }
func (f *Factory) EmptyFixedArrRef() Ref { return f.emptyFixedArr }

// SingleCharacterString returns the table entry for a one-byte code.
func (f *Factory) SingleCharacterString(code int) Ref {
	return f.singleCharRefs[code]
}

// Object constructors used by tests and the CLI --run mode to build inputs.

// NewHeapNumber allocates a boxed double.
func (h *Heap) NewHeapNumber(value float64) Ref {
	n := h.allocRaw(layout.HeapNumberSize)
	h.storeField(n, layout.FieldMap(), uint64(h.factory.maps["heap_number_map"]))
	h.storeAt(n, layout.HeapNumberValueOffset, math.Float64bits(value), graph.MemWord64)
	return n
}

// NewBigInt allocates a one-digit arbitrary-precision integer, or the
// canonical zero when digit is 0.
func (h *Heap) NewBigInt(negative bool, digit uint64) Ref {
	digits := 1
	if digit == 0 {
		digits = 0
	}
	b := h.allocRaw(uint64(layout.BigIntSizeFor(digits)))
	h.storeField(b, layout.FieldMap(), uint64(h.factory.maps["bigint_map"]))
	var bitfield uint32
	if digits == 1 {
		bitfield = layout.BigIntLengthEncode(1)
		if negative {
			bitfield |= layout.BigIntSignMask
		}
		h.storeAt(b, layout.BigIntDigitsOffset, digit, graph.MemWord64)
	}
	h.storeField(b, layout.FieldBigIntBitfield(), uint64(bitfield))
	return b
}

// NewSeqOneByteString allocates a sequential one-byte string.
func (h *Heap) NewSeqOneByteString(bytes []byte) Ref {
	s := h.allocRaw(uint64(layout.SeqOneByteStringSizeFor(len(bytes))))
	h.storeField(s, layout.FieldMap(), uint64(h.factory.maps["seq_one_byte_string_map"]))
	h.storeField(s, layout.FieldStringHash(), layout.EmptyHashField)
	h.storeField(s, layout.FieldStringLength(), uint64(len(bytes)))
	for i, b := range bytes {
		h.storeAt(s, layout.SeqStringHeaderSize+int64(i), uint64(b), graph.MemWord8)
	}
	return s
}

// NewSeqTwoByteString allocates a sequential two-byte string.
func (h *Heap) NewSeqTwoByteString(units []uint16) Ref {
	s := h.allocRaw(uint64(layout.SeqTwoByteStringSizeFor(len(units))))
	h.storeField(s, layout.FieldMap(), uint64(h.factory.maps["seq_two_byte_string_map"]))
	h.storeField(s, layout.FieldStringHash(), layout.EmptyHashField)
	h.storeField(s, layout.FieldStringLength(), uint64(len(units)))
	for i, u := range units {
		h.storeAt(s, layout.SeqStringHeaderSize+int64(i)*2, uint64(u), graph.MemWord16)
	}
	return s
}

// NewFixedDoubleArray allocates a floating-element backing store.
func (h *Heap) NewFixedDoubleArray(values []float64) Ref {
	a := h.allocRaw(uint64(layout.FixedArrayHeaderSize + 8*len(values)))
	h.storeField(a, layout.FieldMap(), uint64(h.factory.maps["fixed_double_array_map"]))
	h.storeField(a, layout.FieldFixedArrayLength(), h.SmiTag(int64(len(values))))
	for i, v := range values {
		h.storeAt(a, layout.FixedArrayHeaderSize+int64(i)*8, math.Float64bits(v), graph.MemWord64)
	}
	return a
}

// NewFixedArray allocates a tagged-element backing store.
func (h *Heap) NewFixedArray(values []uint64) Ref {
	a := h.allocRaw(uint64(layout.FixedArrayHeaderSize + layout.TaggedSize*len(values)))
	h.storeField(a, layout.FieldMap(), uint64(h.factory.maps["fixed_array_map"]))
	h.storeField(a, layout.FieldFixedArrayLength(), h.SmiTag(int64(len(values))))
	for i, v := range values {
		h.storeAt(a, layout.FixedArrayHeaderSize+int64(i)*layout.TaggedSize, v, graph.MemTagged)
	}
	return a
}

// NewDoubleJSArray allocates an array object over a floating-element store.
func (h *Heap) NewDoubleJSArray(values []float64) Ref {
	elements := h.NewFixedDoubleArray(values)
	a := h.allocRaw(layout.JSObjectHeaderSize + layout.TaggedSize)
	h.storeField(a, layout.FieldMap(), uint64(h.factory.maps["js_array_map"]))
	h.storeField(a, layout.FieldJSObjectProperties(), uint64(h.factory.emptyFixedArr))
	h.storeField(a, layout.FieldJSObjectElements(), uint64(elements))
	h.storeField(a, layout.FieldJSArrayLength(), h.SmiTag(int64(len(values))))
	return a
}

// NewJSObject allocates a plain object with the given in-object field words
// and an out-of-line property store.
func (h *Heap) NewJSObject(inObject []uint64, outOfLine []uint64) Ref {
	props := h.NewFixedArray(outOfLine)
	o := h.allocRaw(uint64(layout.JSObjectHeaderSize + layout.TaggedSize*len(inObject)))
	h.storeField(o, layout.FieldMap(), uint64(h.factory.maps["js_object_map"]))
	h.storeField(o, layout.FieldJSObjectProperties(), uint64(props))
	h.storeField(o, layout.FieldJSObjectElements(), uint64(h.factory.emptyFixedArr))
	for i, w := range inObject {
		h.storeAt(o, layout.JSObjectHeaderSize+int64(i)*layout.TaggedSize, w, graph.MemTagged)
	}
	return o
}

// NewObjectWithMap allocates a header-only object of the named descriptor,
// for type-test sweeps.
func (h *Heap) NewObjectWithMap(mapName string) (Ref, bool) {
	m, ok := h.factory.maps[mapName]
	if !ok {
		return 0, false
	}
	o := h.allocRaw(layout.JSObjectHeaderSize)
	h.storeField(o, layout.FieldMap(), uint64(m))
	return o, true
}

// Inspection helpers for assertions.

// NumberValue reads a boxed double's payload.
func (h *Heap) NumberValue(ref Ref) float64 {
	return math.Float64frombits(h.loadAt(ref, layout.HeapNumberValueOffset, graph.MemWord64))
}

// BigIntValue decodes a zero- or one-digit arbitrary-precision integer into
// sign and magnitude.
func (h *Heap) BigIntValue(ref Ref) (negative bool, magnitude uint64) {
	bitfield := uint32(h.loadField(ref, layout.FieldBigIntBitfield()))
	if bitfield&layout.BigIntLengthMask == 0 {
		return false, 0
	}
	negative = bitfield&layout.BigIntSignMask != 0
	magnitude = h.loadAt(ref, layout.BigIntDigitsOffset, graph.MemWord64)
	return negative, magnitude
}

// StringContent decodes a sequential string. Concatenation descriptors are
// flattened recursively.
func (h *Heap) StringContent(ref Ref) (string, bool) {
	if h.IsSmi(uint64(ref)) {
		return "", false
	}
	length := int(uint32(h.loadField(ref, layout.FieldStringLength())))
	switch h.InstanceTypeOf(ref) {
	case layout.SeqOneByteStringType:
		buf := make([]rune, length)
		for i := 0; i < length; i++ {
			buf[i] = rune(h.loadAt(ref, layout.SeqStringHeaderSize+int64(i), graph.MemWord8))
		}
		return string(buf), true
	case layout.SeqTwoByteStringType:
		units := make([]uint16, length)
		for i := 0; i < length; i++ {
			units[i] = uint16(h.loadAt(ref, layout.SeqStringHeaderSize+int64(i)*2, graph.MemWord16))
		}
		return decodeUTF16(units), true
	case layout.ConsOneByteStringType, layout.ConsTwoByteStringType:
		first := Ref(h.loadField(ref, layout.FieldConsStringFirst()))
		second := Ref(h.loadField(ref, layout.FieldConsStringSecond()))
		a, ok1 := h.StringContent(first)
		b, ok2 := h.StringContent(second)
		return a + b, ok1 && ok2
	}
	return "", false
}

// StringUnits reads the raw code units of a sequential two-byte string.
func (h *Heap) StringUnits(ref Ref) []uint16 {
	length := int(uint32(h.loadField(ref, layout.FieldStringLength())))
	units := make([]uint16, length)
	for i := 0; i < length; i++ {
		units[i] = uint16(h.loadAt(ref, layout.SeqStringHeaderSize+int64(i)*2, graph.MemWord16))
	}
	return units
}

func decodeUTF16(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			lo := units[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				runes = append(runes, ((rune(u)-0xD800)<<10|(rune(lo)-0xDC00))+0x10000)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
