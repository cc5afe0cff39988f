// Package grammar defines the textual form of mid-level functions: an
// optional target block followed by functions whose statements each bind one
// lowering request to a name.
package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

type Program struct {
	SourceElements []*SourceElement `@@*`
}

type SourceElement struct {
	Comment  *Comment    `  @@`
	Target   *TargetDecl `| @@`
	Function *Function   `| @@`
}

type DocComment struct {
	Pos  lexer.Position
	Text string `@DocComment`
}

type Comment struct {
	Pos  lexer.Position
	Text string `@Comment`
}

type TargetDecl struct {
	Pos    lexer.Position
	Fields []*TargetField `"target" "{" @@* "}"`
}

type TargetField struct {
	Name  string `@Ident ":"`
	Int   *int   `( @Integer`
	Ident string `| @Ident ) ","`
}

type Function struct {
	Pos    lexer.Position
	Doc    *DocComment  `@@?`
	Name   string       `"fn" @Ident "("`
	Params []*Param     `( @@ ( "," @@ )* )? ")" "{"`
	Stmts  []*Statement `@@*`
	Ret    *ReturnStmt  `@@ "}"`
}

type Param struct {
	Pos  lexer.Position
	Name string `@Ident ":"`
	Type string `@Ident`
}

type Statement struct {
	Comment *Comment  `  @@`
	Bind    *BindStmt `| @@`
}

type BindStmt struct {
	Pos  lexer.Position
	Dest string `@Ident "="`
	Op   *Op    `@@ ";"`
}

type ReturnStmt struct {
	Pos   lexer.Position
	Value string `"return" @Ident ";"`
}

// Op is the union of lowering requests. Each variant leads with its own
// keyword, so one token of lookahead picks the branch.
type Op struct {
	Change       *ChangeOp       `  @@`
	Is           *IsOp           `| @@`
	Box          *BoxOp          `| @@`
	UnboxOrDeopt *UnboxOrDeoptOp `| @@`
	Unbox        *UnboxOp        `| @@`
	ConsString   *ConsStringOp   `| @@`
	NewArray     *NewArrayOp     `| @@`
	MinMax       *MinMaxOp       `| @@`
	FieldLoad    *FieldLoadOp    `| @@`
}

// Option is trailing metadata: a bare keyword (unsigned, check_minus_zero,
// pretenure) or a keyed value (assume=bigint, fs=0, feedback="site").
type Option struct {
	Pos   lexer.Position
	Name  string  `@Ident`
	Int   *int    `( "=" ( @Integer`
	Str   *string `      | @String`
	Ident *string `      | @Ident ) )?`
}

type ChangeOp struct {
	Kind    string    `"change_or_deopt" @Ident`
	Input   string    `@Ident`
	Options []*Option `@@*`
}

type IsOp struct {
	Kind    string    `"is" @Ident`
	Input   string    `@Ident`
	Options []*Option `@@*`
}

type BoxOp struct {
	Kind    string    `"box" @Ident`
	Input   string    `@Ident`
	Options []*Option `@@*`
}

type UnboxOp struct {
	Kind    string    `"unbox" @Ident`
	Input   string    `@Ident`
	Options []*Option `@@*`
}

type UnboxOrDeoptOp struct {
	To      string    `"unbox_or_deopt" @Ident`
	From    string    `"from" @Ident`
	Input   string    `@Ident`
	Options []*Option `@@*`
}

type ConsStringOp struct {
	Length string `"new_cons_string" @Ident ","`
	First  string `@Ident ","`
	Second string `@Ident`
}

type NewArrayOp struct {
	Kind    string    `"new_array" @Ident`
	Length  string    `@Ident`
	Options []*Option `@@*`
}

type MinMaxOp struct {
	Kind  string `@("array_min" | "array_max")`
	Array string `@Ident`
}

type FieldLoadOp struct {
	Object string `"load_field_by_index" @Ident ","`
	Index  string `@Ident`
}
