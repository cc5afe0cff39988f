package errors

// Error codes used in diagnostics so tooling can identify failures
// consistently across the toolchain.
//
// Error code ranges:
// L0001-L0099: Lowering request contract errors
// L0100-L0199: Parser errors
// L0200-L0299: Target configuration errors
// L0300-L0399: Evaluation errors
const (
	// L0001: Reference to a value that was never defined
	ErrorUndefinedValue = "L0001"

	// L0002: A name bound more than once in one function
	ErrorDuplicateDefinition = "L0002"

	// L0003: Operand representation does not match what the node needs
	ErrorRepMismatch = "L0003"

	// L0004: Assumption metadata invalid for the node kind
	ErrorBadAssumption = "L0004"

	// L0005: Interpretation metadata invalid for the node kind
	ErrorBadInterpretation = "L0005"

	// L0006: Request needs a wider target than configured
	ErrorTargetTooNarrow = "L0006"

	// L0007: Function has no result or the result is undefined
	ErrorMissingResult = "L0007"

	// L0100: Generic parse failure
	ErrorParse = "L0100"

	// L0101: Unknown operation, kind or option keyword
	ErrorUnknownKeyword = "L0101"

	// L0200: Target configuration rejected
	ErrorBadTarget = "L0200"

	// L0300: Evaluation failed (bad memory access, step limit)
	ErrorEvaluation = "L0300"
)
