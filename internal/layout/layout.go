// Package layout fixes the dynamic-value representation the lowering pass
// reproduces: tag encodings, heap object layouts, instance-type codes and
// type-descriptor bitfields. All offsets describe the 64-bit object model.
package layout

import (
	"smelt/internal/graph"
)

// Inline small-integer tagging. The reserved low bit distinguishes inline
// integers (clear) from heap references (set).
const (
	SmiTagMask    = 1
	SmiTag        = 0
	HeapObjectTag = 1
)

// Word and alignment sizes of the object model.
const (
	TaggedSize      = 8
	TaggedSizeLog2  = 3
	DoubleSizeLog2  = 3
	ObjectAlignment = 8
)

// Instance-type codes. Strings occupy the contiguous low range below
// FirstNonstringType; buffer views and receivers each occupy one contiguous
// range, with receivers at the very top so a single lower bound tests
// receiver-ness.
const (
	SeqTwoByteStringType  = 0x00
	ConsTwoByteStringType = 0x01
	SeqOneByteStringType  = 0x08
	ConsOneByteStringType = 0x09

	FirstNonstringType = 0x10

	SymbolType           = 0x10
	OddballType          = 0x11
	HeapNumberType       = 0x12
	BigIntType           = 0x13
	FixedArrayType       = 0x14
	FixedDoubleArrayType = 0x15

	FirstArrayBufferViewType = 0x20
	TypedArrayType           = 0x20
	DataViewType             = 0x21
	LastArrayBufferViewType  = 0x21

	FirstReceiverType = 0x40
	JSObjectType      = 0x40
	JSArrayType       = 0x41
	JSFunctionType    = 0x42
	JSProxyType       = 0x43
	LastType          = JSProxyType
)

// String encoding bits inside the instance type. One-byte must be the nonzero
// tag so that AND-ing two string types yields two-byte unless both are
// one-byte.
const (
	StringEncodingMask = 0x08
	OneByteStringTag   = 0x08
	TwoByteStringTag   = 0x00
)

// Type-descriptor (map) object layout.
const (
	MapInstanceTypeOffset = 8  // uint16
	MapBitFieldOffset     = 10 // uint8
	MapSize               = 16
)

// Map bitfield flags.
const (
	MapIsCallableBit     = 1 << 1
	MapIsUndetectableBit = 1 << 4
	MapIsConstructorBit  = 1 << 6
)

// Boxed double layout. The oddball numeric payload shares the offset so the
// same load serves both.
const (
	HeapNumberValueOffset = 8
	HeapNumberSize        = 16
	OddballToNumberOffset = HeapNumberValueOffset
	OddballSize           = 16
)

// Arbitrary-precision integer layout: packed sign+length bitfield, optional
// padding, then magnitude digits. Canonical zero has a zero bitfield and no
// digits.
const (
	BigIntBitfieldOffset = 8
	BigIntPaddingOffset  = 12
	BigIntDigitsOffset   = 16

	BigIntSignShift   = 0
	BigIntSignMask    = 1 << BigIntSignShift
	BigIntLengthShift = 1
	BigIntLengthMask  = ((1 << 30) - 1) << BigIntLengthShift
)

// BigIntLengthEncode packs a digit count into the bitfield.
func BigIntLengthEncode(digits uint32) uint32 {
	return digits << BigIntLengthShift
}

// BigIntSizeFor gives the allocation size for a digit count.
func BigIntSizeFor(digits int) int64 {
	return BigIntDigitsOffset + TaggedSize*int64(digits)
}

// String layouts. Sequential strings append code units to the common header;
// concatenation descriptors reference two children instead.
const (
	StringHashOffset       = 8  // uint32
	StringLengthOffset     = 12 // uint32
	SeqStringHeaderSize    = 16
	ConsStringFirstOffset  = 16
	ConsStringSecondOffset = 24
	ConsStringSize         = 32

	EmptyHashField     = 0x3
	MaxOneByteCharCode = 0xFF
)

// SurrogateLeadOffset folds the 0x10000 code-point bias into the lead
// surrogate base: lead = (cp >> 10) + SurrogateLeadOffset.
const SurrogateLeadOffset = 0xD800 - (0x10000 >> 10)

// RoundUpObjectSize aligns an allocation size.
func RoundUpObjectSize(size int64) int64 {
	return (size + ObjectAlignment - 1) &^ (ObjectAlignment - 1)
}

// SeqTwoByteStringSizeFor gives the aligned allocation size for a two-byte
// string of the given unit count.
func SeqTwoByteStringSizeFor(units int) int64 {
	return RoundUpObjectSize(SeqStringHeaderSize + 2*int64(units))
}

// SeqOneByteStringSizeFor gives the aligned allocation size for a one-byte
// string.
func SeqOneByteStringSizeFor(units int) int64 {
	return RoundUpObjectSize(SeqStringHeaderSize + int64(units))
}

// Array backing stores: header (descriptor + tagged length), then elements.
const (
	FixedArrayLengthOffset = 8
	FixedArrayHeaderSize   = 16
)

// Object layout for indexed field loads: descriptor, out-of-line property
// store, element store, then in-object fields.
const (
	JSObjectPropertiesOffset = 8
	JSObjectElementsOffset   = 16
	JSObjectHeaderSize       = 24
	JSArrayLengthOffset      = 24
)

// HoleNaNBits is the NaN pattern marking holes in floating-element arrays.
const HoleNaNBits = 0xFFF7FFFF_FFF7FFFF

// MaxSafeInteger is the largest integer magnitude exactly representable in a
// 64-bit float; array indices must stay strictly inside ±MaxSafeInteger.
const MaxSafeInteger = 1<<53 - 1

// FieldAccess describes one object field for load/store emission.
type FieldAccess struct {
	Offset  int32
	Rep     graph.MemoryRep
	Barrier graph.WriteBarrier
}

// Field descriptors, access-builder style.

func FieldMap() FieldAccess {
	return FieldAccess{Offset: 0, Rep: graph.MemTagged, Barrier: graph.FullWriteBarrier}
}

func FieldMapInstanceType() FieldAccess {
	return FieldAccess{Offset: MapInstanceTypeOffset, Rep: graph.MemWord16}
}

func FieldMapBitField() FieldAccess {
	return FieldAccess{Offset: MapBitFieldOffset, Rep: graph.MemWord8}
}

func FieldHeapNumberValue() FieldAccess {
	return FieldAccess{Offset: HeapNumberValueOffset, Rep: graph.MemFloat64}
}

func FieldBigIntBitfield() FieldAccess {
	return FieldAccess{Offset: BigIntBitfieldOffset, Rep: graph.MemWord32}
}

func FieldBigIntPadding() FieldAccess {
	return FieldAccess{Offset: BigIntPaddingOffset, Rep: graph.MemWord32}
}

func FieldBigIntLeastSignificantDigit() FieldAccess {
	return FieldAccess{Offset: BigIntDigitsOffset, Rep: graph.MemWord64}
}

func FieldStringHash() FieldAccess {
	return FieldAccess{Offset: StringHashOffset, Rep: graph.MemWord32}
}

func FieldStringLength() FieldAccess {
	return FieldAccess{Offset: StringLengthOffset, Rep: graph.MemWord32}
}

func FieldConsStringFirst() FieldAccess {
	return FieldAccess{Offset: ConsStringFirstOffset, Rep: graph.MemTagged, Barrier: graph.FullWriteBarrier}
}

func FieldConsStringSecond() FieldAccess {
	return FieldAccess{Offset: ConsStringSecondOffset, Rep: graph.MemTagged, Barrier: graph.FullWriteBarrier}
}

func FieldFixedArrayLength() FieldAccess {
	return FieldAccess{Offset: FixedArrayLengthOffset, Rep: graph.MemTagged}
}

func FieldJSObjectProperties() FieldAccess {
	return FieldAccess{Offset: JSObjectPropertiesOffset, Rep: graph.MemTagged}
}

func FieldJSObjectElements() FieldAccess {
	return FieldAccess{Offset: JSObjectElementsOffset, Rep: graph.MemTagged}
}

func FieldJSArrayLength() FieldAccess {
	return FieldAccess{Offset: JSArrayLengthOffset, Rep: graph.MemTagged}
}
