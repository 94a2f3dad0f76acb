package errors

import "fmt"

// ErrorKind names a parse-time failure class. The names are reported as the
// error_type metric label, so they are part of the telemetry surface.
type ErrorKind string

const (
	KindLexical             ErrorKind = "LexicalError"
	KindUnexpectedToken     ErrorKind = "UnexpectedTokenError"
	KindDuplicateField      ErrorKind = "DuplicateFieldError"
	KindUnterminated        ErrorKind = "UnterminatedCompositeError"
	KindInternalConsistency ErrorKind = "InternalConsistencyError"
)

// Recoverable reports whether scanning can continue after an error of this kind.
func (k ErrorKind) Recoverable() bool {
	return k == KindLexical
}

// ParseError is a failure located in the source text. Line and Column are
// 1-based; Column counts runes.
type ParseError struct {
	Kind    ErrorKind
	Line    int
	Column  int
	Message string

	// Expected and Actual are set for UnexpectedTokenError and
	// UnterminatedCompositeError.
	Expected string
	Actual   string

	// Struct and Field are set for DuplicateFieldError.
	Struct string
	Field  string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
}

// Is matches any *ParseError with the same Kind.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewLexicalError reports an unrecognized character.
func NewLexicalError(line, col int, ch rune) *ParseError {
	return &ParseError{
		Kind:    KindLexical,
		Line:    line,
		Column:  col,
		Message: fmt.Sprintf("unexpected character %q", ch),
	}
}

// NewUnexpectedTokenError reports a token that is not valid at its position.
func NewUnexpectedTokenError(line, col int, expected, actual string) *ParseError {
	return &ParseError{
		Kind:     KindUnexpectedToken,
		Line:     line,
		Column:   col,
		Message:  fmt.Sprintf("expected %s, found %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

// NewUnterminatedError reports end of input inside an open composite.
func NewUnterminatedError(line, col int, expected string) *ParseError {
	return &ParseError{
		Kind:     KindUnterminated,
		Line:     line,
		Column:   col,
		Message:  fmt.Sprintf("unexpected end of input, expected %s", expected),
		Expected: expected,
		Actual:   "EOF",
	}
}

// NewDepthError reports a composite nested deeper than limit. It is an
// UnexpectedTokenError located at the first token inside the composite
// that would exceed the limit.
func NewDepthError(line, col, limit int, actual string) *ParseError {
	expected := fmt.Sprintf("at most %d nested composites", limit)
	return &ParseError{
		Kind:     KindUnexpectedToken,
		Line:     line,
		Column:   col,
		Message:  fmt.Sprintf("nesting too deep, expected %s, found %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

// NewDuplicateFieldError reports a field name repeated within one struct.
func NewDuplicateFieldError(line, col int, structName, field string) *ParseError {
	return &ParseError{
		Kind:    KindDuplicateField,
		Line:    line,
		Column:  col,
		Message: fmt.Sprintf("duplicate field %q in %s", field, structName),
		Struct:  structName,
		Field:   field,
	}
}

// NewInternalConsistencyError reports a renderer invariant violation. These
// are defects, never caused by user input alone.
func NewInternalConsistencyError(format string, args ...any) *ParseError {
	return &ParseError{
		Kind:    KindInternalConsistency,
		Message: fmt.Sprintf(format, args...),
	}
}
