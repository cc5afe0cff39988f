package lower

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smelt/internal/errors"
	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/mid"
	"smelt/internal/parser"
	"smelt/internal/target"
)

// TestLowerFromSource exercises the whole pipeline: text, conversion,
// lowering, evaluation.
func TestLowerFromSource(t *testing.T) {
	res, err := parser.ParseString("narrow.mg", `
fn narrow(x: word64) {
    r = change_or_deopt int64_to_int32 x;
    return r;
}
`)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Functions, 1)

	h := heap.New(res.Target)
	g, diags := LowerFunction(res.Functions[0], res.Target, h.Factory())
	require.Empty(t, diags)

	out, err := graph.Run(g, h, graph.Word64Slot(7))
	require.NoError(t, err)
	requireWord32(t, out, 7)

	out, err = graph.Run(g, h, graph.Word64Slot(4294967296))
	require.NoError(t, err)
	requireDeopt(t, out, graph.DeoptLostPrecision)
}

func TestLowerFromSourceTargetBlock(t *testing.T) {
	res, err := parser.ParseString("full.mg", `
target {
    pointer_bits: 64,
    smi_bits: 32,
}

fn tag(x: word32) {
    r = box number x signed;
    return r;
}
`)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	h := heap.New(res.Target)
	g, diags := LowerFunction(res.Functions[0], res.Target, h.Factory())
	require.Empty(t, diags)

	// Full-width inline integers never box.
	before := h.ObjectCount()
	out, err := graph.Run(g, h, graph.Word32Slot(-2147483648))
	require.NoError(t, err)
	requireSmi(t, h, out, -2147483648)
	require.Equal(t, before, h.ObjectCount())
}

func TestLowerFunctionReportsCheckErrors(t *testing.T) {
	fn := oneNode(nil, &mid.TypeTest{Kind: mid.TestSmi, Input: "ghost"})
	g, diags := LowerFunction(fn, target.Default64(), heap.New(target.Default64()).Factory())
	require.Nil(t, g)
	require.NotEmpty(t, diags)
}

func TestLowerError(t *testing.T) {
	tassert.NoError(t, LowerError(nil))

	one := []errors.CompilerError{{Level: errors.Error, Code: errors.ErrorUndefinedValue, Message: "x is not defined"}}
	err := LowerError(one)
	require.Error(t, err)
	tassert.Contains(t, err.Error(), "x is not defined")

	two := append(one, errors.CompilerError{
		Level: errors.Error, Code: errors.ErrorMissingResult, Message: "no result",
	})
	err = LowerError(two)
	require.Error(t, err)
	tassert.Contains(t, err.Error(), "and 1 more")
}
