package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/mid"
	"smelt/internal/target"
)

// oneNode wraps a single lowering request into a function whose parameters
// feed it and whose result it becomes.
func oneNode(params []mid.Param, node mid.Node) *mid.Function {
	return &mid.Function{
		Name:   "t",
		Params: params,
		Stmts:  []mid.Stmt{{Dest: "r", Node: node}},
		Ret:    "r",
	}
}

func word32Param(name string) mid.Param {
	return mid.Param{Name: mid.ValueRef(name), Rep: mid.RepWord32}
}

func word64Param(name string) mid.Param {
	return mid.Param{Name: mid.ValueRef(name), Rep: mid.RepWord64}
}

func wordPtrParam(name string) mid.Param {
	return mid.Param{Name: mid.ValueRef(name), Rep: mid.RepWordPtr}
}

func float64Param(name string) mid.Param {
	return mid.Param{Name: mid.ValueRef(name), Rep: mid.RepFloat64}
}

func taggedParam(name string) mid.Param {
	return mid.Param{Name: mid.ValueRef(name), Tagged: true}
}

// lowerOn lowers fn for the given target over a fresh heap.
func lowerOn(t *testing.T, cfg target.Config, fn *mid.Function) (*graph.Graph, *heap.Heap) {
	t.Helper()
	h := heap.New(cfg)
	g, diags := LowerFunction(fn, cfg, h.Factory())
	require.Empty(t, diags)
	require.NotNil(t, g)
	return g, h
}

// run lowers and evaluates fn on the default 64-bit target.
func run(t *testing.T, fn *mid.Function, args ...graph.Slot) (graph.Result, *heap.Heap) {
	t.Helper()
	return runOn(t, target.Default64(), fn, args...)
}

func runOn(t *testing.T, cfg target.Config, fn *mid.Function, args ...graph.Slot) (graph.Result, *heap.Heap) {
	t.Helper()
	g, h := lowerOn(t, cfg, fn)
	res, err := graph.Run(g, h, args...)
	require.NoError(t, err)
	return res, h
}

func requireDeopt(t *testing.T, res graph.Result, reason graph.DeoptReason) {
	t.Helper()
	require.True(t, res.Deopted, "expected a deopt exit")
	require.Equal(t, reason, res.Reason)
}

func requireWord32(t *testing.T, res graph.Result, want int32) {
	t.Helper()
	require.False(t, res.Deopted, "unexpected deopt: %s", res.Reason)
	require.Equal(t, graph.RepWord32, res.Rep)
	require.Equal(t, want, int32(uint32(res.Val.W)))
}

func requireWord64(t *testing.T, res graph.Result, want int64) {
	t.Helper()
	require.False(t, res.Deopted, "unexpected deopt: %s", res.Reason)
	require.Equal(t, graph.RepWord64, res.Rep)
	require.Equal(t, want, int64(res.Val.W))
}

func requireBool(t *testing.T, res graph.Result, want bool) {
	t.Helper()
	require.False(t, res.Deopted, "unexpected deopt: %s", res.Reason)
	wantWord := int32(0)
	if want {
		wantWord = 1
	}
	requireWord32(t, res, wantWord)
}

func requireFloat64(t *testing.T, res graph.Result, want float64) {
	t.Helper()
	require.False(t, res.Deopted, "unexpected deopt: %s", res.Reason)
	require.Equal(t, graph.RepFloat64, res.Rep)
	require.Equal(t, want, res.Val.F)
}

// requireSmi asserts a tagged result is the inline integer v.
func requireSmi(t *testing.T, h *heap.Heap, res graph.Result, v int64) {
	t.Helper()
	require.False(t, res.Deopted, "unexpected deopt: %s", res.Reason)
	require.Equal(t, graph.RepTagged, res.Rep)
	require.True(t, h.IsSmi(res.Val.W), "expected an inline integer, got %#x", res.Val.W)
	require.Equal(t, v, h.SmiUntag(res.Val.W))
}

// requireBoxedNumber asserts a tagged result is a freshly boxed double.
func requireBoxedNumber(t *testing.T, h *heap.Heap, res graph.Result, v float64) {
	t.Helper()
	require.False(t, res.Deopted, "unexpected deopt: %s", res.Reason)
	require.Equal(t, graph.RepTagged, res.Rep)
	require.False(t, h.IsSmi(res.Val.W), "expected a heap object, got inline %d", h.SmiUntag(res.Val.W))
	require.Equal(t, v, h.NumberValue(heap.Ref(res.Val.W)))
}
