package errors

import (
	"testing"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smelt/internal/mid"
)

const sampleSource = "fn f(x: word32) {\n  r = change_or_deopt int64_to_int32 x;\n  return r;\n}"

func TestCompilerErrorString(t *testing.T) {
	err := CompilerError{
		Level: Error, Code: "L0003",
		Message:  "r needs a word64 operand, x is word32",
		Position: mid.Position{Line: 2, Column: 3},
	}
	assert.Equal(t, "L0003:2:3: r needs a word64 operand, x is word32", err.Error())

	// Programmatic input has no position.
	err.Position = mid.Position{}
	assert.Equal(t, "L0003: r needs a word64 operand, x is word32", err.Error())
}

func TestFormatErrorMarksTheOffendingColumn(t *testing.T) {
	color.NoColor = true
	reporter := NewErrorReporter("add.mg", sampleSource)

	out := reporter.FormatError(CompilerError{
		Level: Error, Code: "L0003",
		Message:  "r needs a word64 operand, x is word32",
		Position: mid.Position{Line: 2, Column: 3},
	})

	assert.Contains(t, out, "error[L0003]:")
	assert.Contains(t, out, "--> add.mg:2:3")
	assert.Contains(t, out, "  r = change_or_deopt int64_to_int32 x;")
	assert.Contains(t, out, "│   ^")
}

func TestFormatErrorWithoutPosition(t *testing.T) {
	color.NoColor = true
	reporter := NewErrorReporter("add.mg", sampleSource)

	out := reporter.FormatError(CompilerError{
		Level: Error, Code: "L0007", Message: "function has no result value",
	})
	assert.Equal(t, "error[L0007]: function has no result value\n\n", out)
}

func TestFormatErrorsGolden(t *testing.T) {
	color.NoColor = true
	reporter := NewErrorReporter("add.mg", sampleSource)

	out := reporter.FormatErrors([]CompilerError{
		{
			Level: Error, Code: "L0003",
			Message:  "r needs a word64 operand, x is word32",
			Position: mid.Position{Line: 2, Column: 3},
			HelpText: "declare x as word64",
		},
		{
			Level: Error, Code: "L0007",
			Message: "function has no result value",
		},
	})
	require.NotEmpty(t, out)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "reporter_batch", []byte(out))
}
