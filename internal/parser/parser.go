// Package parser converts the parsed textual form into mid-level functions
// and a target configuration, reporting positioned diagnostics for anything
// the grammar accepts but the node vocabulary does not.
package parser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"smelt/grammar"
	"smelt/internal/errors"
	"smelt/internal/mid"
	"smelt/internal/target"
)

// Result is one source file's worth of lowering input.
type Result struct {
	Target    target.Config
	Functions []*mid.Function
	Errors    []errors.CompilerError
}

// ParseFile reads and converts one source file.
func ParseFile(path string) (*Result, error) {
	program, err := grammar.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Convert(program), nil
}

// ParseString converts source text, for tests and the REPL.
func ParseString(path, source string) (*Result, error) {
	program, err := grammar.ParseString(path, source)
	if err != nil {
		return nil, err
	}
	return Convert(program), nil
}

// Convert translates a parsed program. The default target is the 64-bit
// little-endian machine with 31-bit small integers.
func Convert(program *grammar.Program) *Result {
	c := &converter{res: &Result{Target: target.Default64()}}
	for _, el := range program.SourceElements {
		switch {
		case el.Target != nil:
			c.convertTarget(el.Target)
		case el.Function != nil:
			c.res.Functions = append(c.res.Functions, c.convertFunction(el.Function))
		}
	}
	return c.res
}

type converter struct {
	res *Result
}

func (c *converter) errorf(code string, pos lexer.Position, format string, args ...any) {
	c.res.Errors = append(c.res.Errors, errors.CompilerError{
		Level:    errors.Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Position: mid.Position{Line: pos.Line, Column: pos.Column},
	})
}

func (c *converter) convertTarget(decl *grammar.TargetDecl) {
	cfg := c.res.Target
	for _, f := range decl.Fields {
		switch f.Name {
		case "pointer_bits":
			if f.Int != nil {
				cfg.PointerBits = *f.Int
			}
		case "smi_bits":
			if f.Int != nil {
				cfg.SmiBits = *f.Int
			}
		case "byte_order":
			cfg.ByteOrder = target.ByteOrder(f.Ident)
		default:
			c.errorf(errors.ErrorUnknownKeyword, decl.Pos, "unknown target field %q", f.Name)
		}
	}
	if err := cfg.Validate(); err != nil {
		c.errorf(errors.ErrorBadTarget, decl.Pos, "%s", err)
		return
	}
	c.res.Target = cfg
}

func (c *converter) convertFunction(fn *grammar.Function) *mid.Function {
	out := &mid.Function{Name: fn.Name}
	for _, p := range fn.Params {
		param := mid.Param{Name: mid.ValueRef(p.Name)}
		switch p.Type {
		case "tagged":
			param.Tagged = true
		case "word32":
			param.Rep = mid.RepWord32
		case "word64":
			param.Rep = mid.RepWord64
		case "wordptr":
			param.Rep = mid.RepWordPtr
		case "float64":
			param.Rep = mid.RepFloat64
		default:
			c.errorf(errors.ErrorUnknownKeyword, p.Pos, "unknown parameter type %q", p.Type)
		}
		out.Params = append(out.Params, param)
	}
	for _, st := range fn.Stmts {
		if st.Bind == nil {
			continue
		}
		node := c.convertOp(st.Bind)
		if node == nil {
			continue
		}
		out.Stmts = append(out.Stmts, mid.Stmt{
			Dest: mid.ValueRef(st.Bind.Dest),
			Node: node,
			Pos:  mid.Position{Line: st.Bind.Pos.Line, Column: st.Bind.Pos.Column},
		})
	}
	if fn.Ret != nil {
		out.Ret = mid.ValueRef(fn.Ret.Value)
	}
	return out
}

// options gathers the trailing metadata every request form shares.
type options struct {
	frameState int
	feedback   string
	minusZero  mid.MinusZeroMode
	assumption mid.Assumption
	interp     mid.Interpretation
	rep        mid.InputRep
	repSet     bool
	pretenure  bool
}

func (c *converter) convertOptions(opts []*grammar.Option) options {
	o := options{}
	for _, opt := range opts {
		switch opt.Name {
		case "fs":
			if opt.Int != nil {
				o.frameState = *opt.Int
			}
		case "feedback":
			if opt.Str != nil {
				o.feedback = strings.Trim(*opt.Str, `"`)
			}
		case "check_minus_zero":
			o.minusZero = mid.CheckForMinusZero
		case "assume":
			if opt.Ident == nil {
				c.errorf(errors.ErrorUnknownKeyword, opt.Pos, "assume needs a value")
				continue
			}
			switch *opt.Ident {
			case "none":
				o.assumption = mid.AssumeNone
			case "heap_object":
				o.assumption = mid.AssumeHeapObject
			case "bigint":
				o.assumption = mid.AssumeBigInt
			default:
				c.errorf(errors.ErrorUnknownKeyword, opt.Pos, "unknown assumption %q", *opt.Ident)
			}
		case "rep":
			if opt.Ident == nil {
				c.errorf(errors.ErrorUnknownKeyword, opt.Pos, "rep needs a value")
				continue
			}
			o.repSet = true
			switch *opt.Ident {
			case "word32":
				o.rep = mid.RepWord32
			case "word64":
				o.rep = mid.RepWord64
			case "float64":
				o.rep = mid.RepFloat64
			default:
				o.repSet = false
				c.errorf(errors.ErrorUnknownKeyword, opt.Pos, "unknown representation %q", *opt.Ident)
			}
		case "signed":
			o.interp = mid.InterpretSigned
		case "unsigned":
			o.interp = mid.InterpretUnsigned
		case "char_code":
			o.interp = mid.InterpretCharCode
		case "code_point":
			o.interp = mid.InterpretCodePoint
		case "pretenure":
			o.pretenure = true
		default:
			c.errorf(errors.ErrorUnknownKeyword, opt.Pos, "unknown option %q", opt.Name)
		}
	}
	return o
}

func (c *converter) convertOp(bind *grammar.BindStmt) mid.Node {
	op := bind.Op
	pos := bind.Pos
	switch {
	case op.Change != nil:
		kind, ok := changeKinds[op.Change.Kind]
		if !ok {
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown conversion kind %q", op.Change.Kind)
			return nil
		}
		o := c.convertOptions(op.Change.Options)
		return &mid.ChangeOrDeopt{
			Kind: kind, Input: mid.ValueRef(op.Change.Input),
			MinusZero: o.minusZero, FrameState: o.frameState, Feedback: o.feedback,
		}

	case op.Is != nil:
		kind, ok := testKinds[op.Is.Kind]
		if !ok {
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown type test kind %q", op.Is.Kind)
			return nil
		}
		o := c.convertOptions(op.Is.Options)
		return &mid.TypeTest{Kind: kind, Input: mid.ValueRef(op.Is.Input), Assumption: o.assumption}

	case op.Box != nil:
		kind, ok := boxKinds[op.Box.Kind]
		if !ok {
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown boxing kind %q", op.Box.Kind)
			return nil
		}
		o := c.convertOptions(op.Box.Options)
		rep := o.rep
		if !o.repSet {
			rep = defaultBoxRep(kind)
		}
		return &mid.Box{
			Kind: kind, Input: mid.ValueRef(op.Box.Input),
			Rep: rep, Interpretation: o.interp, MinusZero: o.minusZero,
		}

	case op.Unbox != nil:
		kind, ok := unboxKinds[op.Unbox.Kind]
		if !ok {
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown unboxing kind %q", op.Unbox.Kind)
			return nil
		}
		assumption := mid.FromSmi
		switch kind {
		case mid.UnboxBit:
			assumption = mid.FromObject
		case mid.UnboxUint32:
			assumption = mid.FromNumberOrOddball
		}
		for _, raw := range op.Unbox.Options {
			switch raw.Name {
			case "smi":
				assumption = mid.FromSmi
			case "number_or_oddball":
				assumption = mid.FromNumberOrOddball
			case "object":
				assumption = mid.FromObject
			default:
				c.errorf(errors.ErrorUnknownKeyword, raw.Pos, "unknown source form %q", raw.Name)
			}
		}
		return &mid.Unbox{Kind: kind, Input: mid.ValueRef(op.Unbox.Input), Assumption: assumption}

	case op.UnboxOrDeopt != nil:
		to, ok := primitiveKinds[op.UnboxOrDeopt.To]
		if !ok {
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown unboxing target %q", op.UnboxOrDeopt.To)
			return nil
		}
		from, ok := objectKinds[op.UnboxOrDeopt.From]
		if !ok {
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown value claim %q", op.UnboxOrDeopt.From)
			return nil
		}
		o := c.convertOptions(op.UnboxOrDeopt.Options)
		return &mid.UnboxOrDeopt{
			From: from, To: to, Input: mid.ValueRef(op.UnboxOrDeopt.Input),
			MinusZero: o.minusZero, FrameState: o.frameState, Feedback: o.feedback,
		}

	case op.ConsString != nil:
		return &mid.NewConsString{
			Length: mid.ValueRef(op.ConsString.Length),
			First:  mid.ValueRef(op.ConsString.First),
			Second: mid.ValueRef(op.ConsString.Second),
		}

	case op.NewArray != nil:
		var kind mid.ElementsKind
		switch op.NewArray.Kind {
		case "tagged":
			kind = mid.TaggedElements
		case "double":
			kind = mid.DoubleElements
		default:
			c.errorf(errors.ErrorUnknownKeyword, pos, "unknown elements kind %q", op.NewArray.Kind)
			return nil
		}
		o := c.convertOptions(op.NewArray.Options)
		return &mid.NewArray{
			Length: mid.ValueRef(op.NewArray.Length), Kind: kind, Pretenure: o.pretenure,
		}

	case op.MinMax != nil:
		kind := mid.ReduceMin
		if op.MinMax.Kind == "array_max" {
			kind = mid.ReduceMax
		}
		return &mid.ArrayMinMax{Array: mid.ValueRef(op.MinMax.Array), Kind: kind}

	case op.FieldLoad != nil:
		return &mid.LoadFieldByIndex{
			Object: mid.ValueRef(op.FieldLoad.Object),
			Index:  mid.ValueRef(op.FieldLoad.Index),
		}
	}
	c.errorf(errors.ErrorParse, pos, "statement binds no operation")
	return nil
}

func defaultBoxRep(kind mid.BoxKind) mid.InputRep {
	switch kind {
	case mid.BoxBigInt:
		return mid.RepWord64
	case mid.BoxHeapNumber:
		return mid.RepFloat64
	}
	return mid.RepWord32
}

var changeKinds = map[string]mid.ChangeKind{
	"uint32_to_int32":  mid.ChangeUint32ToInt32,
	"int64_to_int32":   mid.ChangeInt64ToInt32,
	"uint64_to_int32":  mid.ChangeUint64ToInt32,
	"uint64_to_int64":  mid.ChangeUint64ToInt64,
	"float64_to_int32": mid.ChangeFloat64ToInt32,
	"float64_to_int64": mid.ChangeFloat64ToInt64,
}

var testKinds = map[string]mid.TypeTestKind{
	"smi":                 mid.TestSmi,
	"number":              mid.TestNumber,
	"bigint":              mid.TestBigInt,
	"bigint64":            mid.TestBigInt64,
	"callable":            mid.TestCallable,
	"constructor":         mid.TestConstructor,
	"detectable_callable": mid.TestDetectableCallable,
	"non_callable":        mid.TestNonCallable,
	"receiver":            mid.TestReceiver,
	"undetectable":        mid.TestUndetectable,
	"symbol":              mid.TestSymbol,
	"string":              mid.TestString,
	"array_buffer_view":   mid.TestArrayBufferView,
}

var boxKinds = map[string]mid.BoxKind{
	"bigint":      mid.BoxBigInt,
	"number":      mid.BoxNumber,
	"heap_number": mid.BoxHeapNumber,
	"smi":         mid.BoxSmi,
	"boolean":     mid.BoxBoolean,
	"string":      mid.BoxString,
}

var unboxKinds = map[string]mid.UnboxKind{
	"int32":  mid.UnboxInt32,
	"int64":  mid.UnboxInt64,
	"uint32": mid.UnboxUint32,
	"bit":    mid.UnboxBit,
}

var primitiveKinds = map[string]mid.PrimitiveKind{
	"int32":       mid.ToInt32,
	"int64":       mid.ToInt64,
	"float64":     mid.ToFloat64,
	"array_index": mid.ToArrayIndex,
}

var objectKinds = map[string]mid.ObjectKind{
	"smi":               mid.KindSmi,
	"number":            mid.KindNumber,
	"number_or_boolean": mid.KindNumberOrBoolean,
	"number_or_oddball": mid.KindNumberOrOddball,
	"number_or_string":  mid.KindNumberOrString,
}
