package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `// numeric narrowing example
target {
    pointer_bits: 64,
    smi_bits: 31,
    byte_order: le,
}

/// Narrows a speculative int64 to int32.
fn narrow(x: word64) {
    r = change_or_deopt int64_to_int32 x fs=0 feedback="call-site";
    return r;
}

fn classify(v: tagged) {
    t = is non_callable v assume=heap_object;
    b = box boolean t;
    return b;
}
`

func TestParseProgram(t *testing.T) {
	program, err := ParseString("sample.mg", sample)
	require.NoError(t, err)
	require.Len(t, program.SourceElements, 4)

	assert.NotNil(t, program.SourceElements[0].Comment)

	decl := program.SourceElements[1].Target
	require.NotNil(t, decl)
	require.Len(t, decl.Fields, 3)
	assert.Equal(t, "pointer_bits", decl.Fields[0].Name)
	require.NotNil(t, decl.Fields[0].Int)
	assert.Equal(t, 64, *decl.Fields[0].Int)
	assert.Equal(t, "byte_order", decl.Fields[2].Name)
	assert.Equal(t, "le", decl.Fields[2].Ident)

	narrow := program.SourceElements[2].Function
	require.NotNil(t, narrow)
	assert.Equal(t, "narrow", narrow.Name)
	require.NotNil(t, narrow.Doc)
	require.Len(t, narrow.Params, 1)
	assert.Equal(t, "x", narrow.Params[0].Name)
	assert.Equal(t, "word64", narrow.Params[0].Type)
	require.Len(t, narrow.Stmts, 1)

	bind := narrow.Stmts[0].Bind
	require.NotNil(t, bind)
	assert.Equal(t, "r", bind.Dest)
	require.NotNil(t, bind.Op.Change)
	assert.Equal(t, "int64_to_int32", bind.Op.Change.Kind)
	assert.Equal(t, "x", bind.Op.Change.Input)
	require.Len(t, bind.Op.Change.Options, 2)
	assert.Equal(t, "fs", bind.Op.Change.Options[0].Name)
	require.NotNil(t, bind.Op.Change.Options[0].Int)
	assert.Equal(t, 0, *bind.Op.Change.Options[0].Int)
	assert.Equal(t, "feedback", bind.Op.Change.Options[1].Name)
	require.NotNil(t, bind.Op.Change.Options[1].Str)
	assert.Equal(t, `"call-site"`, *bind.Op.Change.Options[1].Str)

	require.NotNil(t, narrow.Ret)
	assert.Equal(t, "r", narrow.Ret.Value)

	classify := program.SourceElements[3].Function
	require.NotNil(t, classify)
	require.Len(t, classify.Stmts, 2)
	is := classify.Stmts[0].Bind.Op.Is
	require.NotNil(t, is)
	assert.Equal(t, "non_callable", is.Kind)
	require.Len(t, is.Options, 1)
	assert.Equal(t, "assume", is.Options[0].Name)
	require.NotNil(t, is.Options[0].Ident)
	assert.Equal(t, "heap_object", *is.Options[0].Ident)

	box := classify.Stmts[1].Bind.Op.Box
	require.NotNil(t, box)
	assert.Equal(t, "boolean", box.Kind)
	assert.Equal(t, "t", box.Input)
}

func TestParseEveryOperationForm(t *testing.T) {
	source := `fn all(v: tagged, w: word32, f: float64, n: wordptr) {
    a = change_or_deopt float64_to_int32 f check_minus_zero fs=1;
    b = is bigint64 v;
    c = box string w code_point;
    d = unbox int32 v number_or_oddball;
    e = unbox_or_deopt array_index from number_or_string v fs=2;
    g = new_cons_string w, v, v;
    h = new_array double n pretenure;
    i = array_max v;
    j = load_field_by_index v, w;
    return j;
}
`
	program, err := ParseString("all.mg", source)
	require.NoError(t, err)
	fn := program.SourceElements[0].Function
	require.NotNil(t, fn)
	require.Len(t, fn.Stmts, 9)

	ops := fn.Stmts
	assert.NotNil(t, ops[0].Bind.Op.Change)
	assert.NotNil(t, ops[1].Bind.Op.Is)
	assert.NotNil(t, ops[2].Bind.Op.Box)
	assert.NotNil(t, ops[3].Bind.Op.Unbox)
	require.NotNil(t, ops[4].Bind.Op.UnboxOrDeopt)
	assert.Equal(t, "array_index", ops[4].Bind.Op.UnboxOrDeopt.To)
	assert.Equal(t, "number_or_string", ops[4].Bind.Op.UnboxOrDeopt.From)
	assert.NotNil(t, ops[5].Bind.Op.ConsString)
	require.NotNil(t, ops[6].Bind.Op.NewArray)
	assert.Equal(t, "double", ops[6].Bind.Op.NewArray.Kind)
	require.NotNil(t, ops[7].Bind.Op.MinMax)
	assert.Equal(t, "array_max", ops[7].Bind.Op.MinMax.Kind)
	assert.NotNil(t, ops[8].Bind.Op.FieldLoad)
}

func TestParseErrorReported(t *testing.T) {
	_, err := ParseString("bad.mg", "fn broken( {")
	require.Error(t, err)
}

func TestParseEmptyProgram(t *testing.T) {
	program, err := ParseString("empty.mg", "")
	require.NoError(t, err)
	assert.Empty(t, program.SourceElements)
}
