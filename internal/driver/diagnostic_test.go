package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/parser"
)

func TestDiagnostic_PointsAtColumn(t *testing.T) {
	src := "[\n  Transaction { hash: }\n]"
	_, err := parser.Parse(src, nil)
	require.Error(t, err)

	lines := strings.Split(Diagnostic(src, err), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Parse error: UnexpectedTokenError at 2:23:"), lines[0])
	assert.Equal(t, "  Transaction { hash: }", lines[1])
	assert.Equal(t, strings.Repeat(" ", 22)+"^", lines[2])
}

func TestDiagnostic_WideCharacters(t *testing.T) {
	src := "[\"\u6f22\u5b57\", @]"
	_, err := parser.Parse(src, nil)
	require.Error(t, err)

	lines := strings.Split(Diagnostic(src, err), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "LexicalError at 1:8")
	// Each CJK character occupies two columns.
	assert.Equal(t, strings.Repeat(" ", 9)+"^", lines[2])
}

func TestDiagnostic_EndOfInput(t *testing.T) {
	src := "Foo { a: 1,"
	_, err := parser.Parse(src, nil)
	require.Error(t, err)

	lines := strings.Split(Diagnostic(src, err), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "UnterminatedCompositeError at 1:12")
	assert.Equal(t, strings.Repeat(" ", 11)+"^", lines[2])
}

func TestDiagnostic_NonParseErrors(t *testing.T) {
	err := errors.NewInputError("empty input received", errors.ErrEmptyInput)
	assert.Equal(t, "Input error: empty input received", Diagnostic("", err))

	internal := errors.NewInternalConsistencyError("duplicate key %q", "a")
	assert.Equal(t, errors.UserFriendlyError(internal), Diagnostic("a", internal))
}
