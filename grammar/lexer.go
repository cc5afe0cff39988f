package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var SmeltLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"DocComment", `///[^\n]*`, nil},
		{"Comment", `//[^\n]*`, nil},

		// Keywords and identifiers (order matters)
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},

		// Integer literals
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},

		// String literals (feedback tokens)
		{"String", `"[^"]*"`, nil},

		// Punctuation
		{"Punctuation", `[{}():,;=>-]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
