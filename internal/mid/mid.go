// Package mid defines the mid-level, type-tagged operation nodes the lowering
// pass consumes: each node is a tagged lowering request selecting exactly one
// handler, plus the metadata that handler needs (assumptions, source
// representation, minus-zero mode, frame state, feedback token).
package mid

import "fmt"

// Assumption is static knowledge about a dynamic-value input to a type test.
type Assumption int

const (
	AssumeNone Assumption = iota
	AssumeHeapObject
	AssumeBigInt
)

func (a Assumption) String() string {
	switch a {
	case AssumeHeapObject:
		return "heap_object"
	case AssumeBigInt:
		return "bigint"
	}
	return "none"
}

// MinusZeroMode selects whether integer conversions must distinguish -0.0.
type MinusZeroMode int

const (
	IgnoreMinusZero MinusZeroMode = iota
	CheckForMinusZero
)

func (m MinusZeroMode) String() string {
	if m == CheckForMinusZero {
		return "check_minus_zero"
	}
	return "ignore_minus_zero"
}

// InputRep is the machine representation of a raw value. Boxing accepts
// word32, word64 and float64 sources; wordptr exists for parameters feeding
// pointer-width operands like array lengths.
type InputRep int

const (
	RepWord32 InputRep = iota
	RepWord64
	RepWordPtr
	RepFloat64
)

func (r InputRep) String() string {
	switch r {
	case RepWord64:
		return "word64"
	case RepWordPtr:
		return "wordptr"
	case RepFloat64:
		return "float64"
	}
	return "word32"
}

// Interpretation says how the raw bits of a boxing input are to be read.
type Interpretation int

const (
	InterpretSigned Interpretation = iota
	InterpretUnsigned
	InterpretCharCode
	InterpretCodePoint
)

func (i Interpretation) String() string {
	switch i {
	case InterpretUnsigned:
		return "unsigned"
	case InterpretCharCode:
		return "char_code"
	case InterpretCodePoint:
		return "code_point"
	}
	return "signed"
}

// ChangeKind identifies a guarded numeric representation conversion.
type ChangeKind int

const (
	ChangeUint32ToInt32 ChangeKind = iota
	ChangeInt64ToInt32
	ChangeUint64ToInt32
	ChangeUint64ToInt64
	ChangeFloat64ToInt32
	ChangeFloat64ToInt64
)

var changeKindNames = [...]string{
	"uint32_to_int32", "int64_to_int32", "uint64_to_int32",
	"uint64_to_int64", "float64_to_int32", "float64_to_int64",
}

func (k ChangeKind) String() string { return changeKindNames[k] }

// TypeTestKind identifies a dynamic type predicate.
type TypeTestKind int

const (
	TestSmi TypeTestKind = iota
	TestNumber
	TestBigInt
	TestBigInt64
	TestCallable
	TestConstructor
	TestDetectableCallable
	TestNonCallable
	TestReceiver
	TestUndetectable
	TestSymbol
	TestString
	TestArrayBufferView
)

var typeTestNames = [...]string{
	"smi", "number", "bigint", "bigint64", "callable", "constructor",
	"detectable_callable", "non_callable", "receiver", "undetectable",
	"symbol", "string", "array_buffer_view",
}

func (k TypeTestKind) String() string { return typeTestNames[k] }

// BoxKind identifies a raw-to-dynamic conversion.
type BoxKind int

const (
	BoxBigInt BoxKind = iota
	BoxNumber
	BoxHeapNumber
	BoxSmi
	BoxBoolean
	BoxString
)

var boxKindNames = [...]string{
	"bigint", "number", "heap_number", "smi", "boolean", "string",
}

func (k BoxKind) String() string { return boxKindNames[k] }

// UnboxKind identifies an unguarded dynamic-to-raw conversion.
type UnboxKind int

const (
	UnboxInt32 UnboxKind = iota
	UnboxInt64
	UnboxUint32
	UnboxBit
)

var unboxKindNames = [...]string{"int32", "int64", "uint32", "bit"}

func (k UnboxKind) String() string { return unboxKindNames[k] }

// UnboxAssumption is the already-proven shape of an unguarded unboxing input.
type UnboxAssumption int

const (
	FromSmi UnboxAssumption = iota
	FromNumberOrOddball
	FromObject
)

var unboxAssumptionNames = [...]string{"smi", "number_or_oddball", "object"}

func (a UnboxAssumption) String() string { return unboxAssumptionNames[a] }

// ObjectKind is the claimed shape of a guarded unboxing input; violating it
// at runtime raises a deopt, never an error.
type ObjectKind int

const (
	KindSmi ObjectKind = iota
	KindNumber
	KindNumberOrBoolean
	KindNumberOrOddball
	KindNumberOrString
)

var objectKindNames = [...]string{
	"smi", "number", "number_or_boolean", "number_or_oddball", "number_or_string",
}

func (k ObjectKind) String() string { return objectKindNames[k] }

// PrimitiveKind is the machine result of a guarded unboxing.
type PrimitiveKind int

const (
	ToInt32 PrimitiveKind = iota
	ToInt64
	ToFloat64
	ToArrayIndex
)

var primitiveKindNames = [...]string{"int32", "int64", "float64", "array_index"}

func (k PrimitiveKind) String() string { return primitiveKindNames[k] }

// ElementsKind selects a backing-store flavor for array construction.
type ElementsKind int

const (
	TaggedElements ElementsKind = iota
	DoubleElements
)

func (k ElementsKind) String() string {
	if k == DoubleElements {
		return "double"
	}
	return "tagged"
}

// MinMaxKind selects an array reduction.
type MinMaxKind int

const (
	ReduceMin MinMaxKind = iota
	ReduceMax
)

func (k MinMaxKind) String() string {
	if k == ReduceMax {
		return "max"
	}
	return "min"
}

// Position locates a node in its source text, when it has one. Nodes built
// programmatically leave it zero.
type Position struct {
	Line   int
	Column int
}

// ValueRef names a previously produced value inside one function.
type ValueRef string

// Node is one mid-level operation awaiting lowering.
type Node interface {
	// Inputs lists the value references the node consumes, in order.
	Inputs() []ValueRef
	fmt.Stringer
}

// ChangeOrDeopt narrows or widens a numeric representation with guards.
type ChangeOrDeopt struct {
	Kind       ChangeKind
	Input      ValueRef
	MinusZero  MinusZeroMode
	FrameState int
	Feedback   string
}

// TypeTest compiles an "is this dynamic value of kind K" predicate.
type TypeTest struct {
	Kind       TypeTestKind
	Input      ValueRef
	Assumption Assumption
}

// Box converts a raw machine value into the dynamic value encoding.
type Box struct {
	Kind           BoxKind
	Input          ValueRef
	Rep            InputRep
	Interpretation Interpretation
	MinusZero      MinusZeroMode
}

// Unbox converts a dynamic value back to a raw machine value without runtime
// checks; the stated assumption is already proven.
type Unbox struct {
	Kind       UnboxKind
	Input      ValueRef
	Assumption UnboxAssumption
}

// UnboxOrDeopt converts a dynamic value to a raw machine value behind runtime
// guards.
type UnboxOrDeopt struct {
	From       ObjectKind
	To         PrimitiveKind
	Input      ValueRef
	MinusZero  MinusZeroMode
	FrameState int
	Feedback   string
}

// NewConsString builds a two-child concatenation string descriptor.
type NewConsString struct {
	Length ValueRef // word32 combined length
	First  ValueRef
	Second ValueRef
}

// NewArray allocates a backing store and fills every slot with the hole.
type NewArray struct {
	Length    ValueRef // pointer-width element count
	Kind      ElementsKind
	Pretenure bool
}

// ArrayMinMax reduces a floating-element array to its minimum or maximum.
type ArrayMinMax struct {
	Array ValueRef
	Kind  MinMaxKind
}

// LoadFieldByIndex loads an object field through the packed index encoding
// produced by the property system.
type LoadFieldByIndex struct {
	Object ValueRef
	Index  ValueRef // word32 packed index
}

func (n *ChangeOrDeopt) Inputs() []ValueRef { return []ValueRef{n.Input} }
func (n *TypeTest) Inputs() []ValueRef      { return []ValueRef{n.Input} }
func (n *Box) Inputs() []ValueRef           { return []ValueRef{n.Input} }
func (n *Unbox) Inputs() []ValueRef         { return []ValueRef{n.Input} }
func (n *UnboxOrDeopt) Inputs() []ValueRef  { return []ValueRef{n.Input} }
func (n *NewConsString) Inputs() []ValueRef {
	return []ValueRef{n.Length, n.First, n.Second}
}
func (n *NewArray) Inputs() []ValueRef         { return []ValueRef{n.Length} }
func (n *ArrayMinMax) Inputs() []ValueRef      { return []ValueRef{n.Array} }
func (n *LoadFieldByIndex) Inputs() []ValueRef { return []ValueRef{n.Object, n.Index} }

func (n *ChangeOrDeopt) String() string {
	return fmt.Sprintf("change_or_deopt %s %s %s", n.Kind, n.Input, n.MinusZero)
}
func (n *TypeTest) String() string {
	return fmt.Sprintf("is %s %s assume=%s", n.Kind, n.Input, n.Assumption)
}
func (n *Box) String() string {
	return fmt.Sprintf("box %s %s rep=%s %s", n.Kind, n.Input, n.Rep, n.Interpretation)
}
func (n *Unbox) String() string {
	return fmt.Sprintf("unbox %s %s assume=%s", n.Kind, n.Input, n.Assumption)
}
func (n *UnboxOrDeopt) String() string {
	return fmt.Sprintf("unbox_or_deopt %s from=%s %s", n.To, n.From, n.Input)
}
func (n *NewConsString) String() string {
	return fmt.Sprintf("new_cons_string %s, %s, %s", n.Length, n.First, n.Second)
}
func (n *NewArray) String() string {
	return fmt.Sprintf("new_array %s %s", n.Kind, n.Length)
}
func (n *ArrayMinMax) String() string {
	return fmt.Sprintf("array_%s %s", n.Kind, n.Array)
}
func (n *LoadFieldByIndex) String() string {
	return fmt.Sprintf("load_field_by_index %s, %s", n.Object, n.Index)
}

// Param is a typed input of a mid-level function.
type Param struct {
	Name ValueRef
	Rep  InputRep
	// Tagged marks dynamic-value parameters; Rep is ignored for those.
	Tagged bool
}

// Stmt binds one node's result to a name.
type Stmt struct {
	Dest ValueRef
	Node Node
	Pos  Position
}

// Function is one lowering invocation's worth of nodes.
type Function struct {
	Name   string
	Params []Param
	Stmts  []Stmt
	Ret    ValueRef
}
