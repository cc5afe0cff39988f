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

func testFn(kind mid.TypeTestKind, assumption mid.Assumption) *mid.Function {
	return oneNode([]mid.Param{taggedParam("x")}, &mid.TypeTest{
		Kind: kind, Input: "x", Assumption: assumption,
	})
}

// evalTest lowers the predicate once and evaluates it over one input.
func evalTest(t *testing.T, g *graph.Graph, h *heap.Heap, w uint64) bool {
	t.Helper()
	res, err := graph.Run(g, h, graph.TaggedSlot(w))
	require.NoError(t, err)
	require.False(t, res.Deopted)
	return res.Val.W != 0
}

func TestIsSmi(t *testing.T) {
	g, h := lowerOn(t, target.Default64(), testFn(mid.TestSmi, mid.AssumeNone))

	require.True(t, evalTest(t, g, h, h.SmiTag(42)))
	require.True(t, evalTest(t, g, h, h.SmiTag(-1)))
	require.False(t, evalTest(t, g, h, uint64(h.NewHeapNumber(42))))
}

func TestIsSmiUnderHeapObjectAssumption(t *testing.T) {
	g, h := lowerOn(t, target.Default64(), testFn(mid.TestSmi, mid.AssumeHeapObject))
	require.False(t, evalTest(t, g, h, uint64(h.NewHeapNumber(1))))
}

func TestIsNumber(t *testing.T) {
	g, h := lowerOn(t, target.Default64(), testFn(mid.TestNumber, mid.AssumeNone))

	require.True(t, evalTest(t, g, h, h.SmiTag(7)))
	require.True(t, evalTest(t, g, h, uint64(h.NewHeapNumber(3.5))))
	require.False(t, evalTest(t, g, h, uint64(h.Factory().TrueRef())))
	require.False(t, evalTest(t, g, h, uint64(h.NewSeqOneByteString([]byte("7")))))
}

func TestIsBigInt(t *testing.T) {
	g, h := lowerOn(t, target.Default64(), testFn(mid.TestBigInt, mid.AssumeNone))

	require.False(t, evalTest(t, g, h, h.SmiTag(1)))
	require.False(t, evalTest(t, g, h, uint64(h.NewHeapNumber(1))))
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 1))))
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 0))))
}

func TestIsBigInt64(t *testing.T) {
	g, h := lowerOn(t, target.Default64(), testFn(mid.TestBigInt64, mid.AssumeNone))

	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 0))))
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(false, math.MaxInt64))))
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(true, math.MaxInt64))))

	// The signed minimum is the single negative magnitude past MaxInt64 that
	// still fits.
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(true, 1<<63))))
	require.False(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 1<<63))))
	require.False(t, evalTest(t, g, h, uint64(h.NewBigInt(false, math.MaxUint64))))

	require.False(t, evalTest(t, g, h, h.SmiTag(1)))
	require.False(t, evalTest(t, g, h, uint64(h.NewHeapNumber(1))))
}

func TestIsBigIntUnderBigIntAssumption(t *testing.T) {
	g, h := lowerOn(t, target.Default64(), testFn(mid.TestBigInt, mid.AssumeBigInt))
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 99))))

	g, h = lowerOn(t, target.Default64(), testFn(mid.TestBigInt64, mid.AssumeBigInt))
	require.True(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 99))))
	require.False(t, evalTest(t, g, h, uint64(h.NewBigInt(false, 1<<63))))
}

func TestCallableFamily(t *testing.T) {
	// For every object kind the factory knows, the relationship between the
	// callable, receiver and non-callable predicates must hold: non-callable
	// means a receiver that is not callable, never the plain negation.
	callableG, h := lowerOn(t, target.Default64(), testFn(mid.TestCallable, mid.AssumeNone))
	receiverG, _ := LowerFunction(testFn(mid.TestReceiver, mid.AssumeNone), h.Target(), h.Factory())
	nonCallableG, _ := LowerFunction(testFn(mid.TestNonCallable, mid.AssumeNone), h.Target(), h.Factory())

	mapNames := []string{
		"heap_number_map", "bigint_map", "boolean_map", "oddball_map",
		"symbol_map", "seq_two_byte_string_map", "seq_one_byte_string_map",
		"cons_string_map", "cons_one_byte_string_map", "fixed_array_map",
		"fixed_double_array_map", "typed_array_map", "data_view_map",
		"js_object_map", "js_array_map", "js_function_map", "js_proxy_map",
		"undetectable_callable_map",
	}
	for _, name := range mapNames {
		obj, ok := h.NewObjectWithMap(name)
		require.True(t, ok, name)
		w := uint64(obj)

		callable := evalTest(t, callableG, h, w)
		receiver := evalTest(t, receiverG, h, w)
		nonCallable := evalTest(t, nonCallableG, h, w)
		require.Equal(t, receiver && !callable, nonCallable, name)
	}

	fn, _ := h.NewObjectWithMap("js_function_map")
	plain, _ := h.NewObjectWithMap("js_object_map")
	str := h.NewSeqOneByteString([]byte("x"))

	require.True(t, evalTest(t, callableG, h, uint64(fn)))
	require.False(t, evalTest(t, callableG, h, uint64(plain)))
	require.True(t, evalTest(t, nonCallableG, h, uint64(plain)))
	// A string is neither callable nor non-callable.
	require.False(t, evalTest(t, callableG, h, uint64(str)))
	require.False(t, evalTest(t, nonCallableG, h, uint64(str)))
	// An inline integer is no receiver at all.
	require.False(t, evalTest(t, nonCallableG, h, h.SmiTag(3)))
	require.False(t, evalTest(t, receiverG, h, h.SmiTag(3)))
}

func TestConstructorAndDetectable(t *testing.T) {
	constructorG, h := lowerOn(t, target.Default64(), testFn(mid.TestConstructor, mid.AssumeNone))
	detectableG, _ := LowerFunction(testFn(mid.TestDetectableCallable, mid.AssumeNone), h.Target(), h.Factory())
	undetectableG, _ := LowerFunction(testFn(mid.TestUndetectable, mid.AssumeNone), h.Target(), h.Factory())

	fn, _ := h.NewObjectWithMap("js_function_map")
	proxy, _ := h.NewObjectWithMap("js_proxy_map")
	ghost, _ := h.NewObjectWithMap("undetectable_callable_map")

	require.True(t, evalTest(t, constructorG, h, uint64(fn)))
	require.False(t, evalTest(t, constructorG, h, uint64(proxy)))

	require.True(t, evalTest(t, detectableG, h, uint64(fn)))
	require.True(t, evalTest(t, detectableG, h, uint64(proxy)))
	require.False(t, evalTest(t, detectableG, h, uint64(ghost)))

	require.True(t, evalTest(t, undetectableG, h, uint64(ghost)))
	require.False(t, evalTest(t, undetectableG, h, uint64(fn)))
}

func TestInstanceTypeTests(t *testing.T) {
	symbolG, h := lowerOn(t, target.Default64(), testFn(mid.TestSymbol, mid.AssumeNone))
	stringG, _ := LowerFunction(testFn(mid.TestString, mid.AssumeNone), h.Target(), h.Factory())
	viewG, _ := LowerFunction(testFn(mid.TestArrayBufferView, mid.AssumeNone), h.Target(), h.Factory())

	sym, _ := h.NewObjectWithMap("symbol_map")
	typed, _ := h.NewObjectWithMap("typed_array_map")
	view, _ := h.NewObjectWithMap("data_view_map")
	plain, _ := h.NewObjectWithMap("js_object_map")
	oneByte := h.NewSeqOneByteString([]byte("ab"))
	twoByte := h.NewSeqTwoByteString([]uint16{0x20AC})

	require.True(t, evalTest(t, symbolG, h, uint64(sym)))
	require.False(t, evalTest(t, symbolG, h, uint64(plain)))
	require.False(t, evalTest(t, symbolG, h, h.SmiTag(0)))

	require.True(t, evalTest(t, stringG, h, uint64(oneByte)))
	require.True(t, evalTest(t, stringG, h, uint64(twoByte)))
	require.False(t, evalTest(t, stringG, h, uint64(sym)))
	require.False(t, evalTest(t, stringG, h, h.SmiTag(1)))

	require.True(t, evalTest(t, viewG, h, uint64(typed)))
	require.True(t, evalTest(t, viewG, h, uint64(view)))
	require.False(t, evalTest(t, viewG, h, uint64(plain)))
	require.False(t, evalTest(t, viewG, h, uint64(sym)))
}
