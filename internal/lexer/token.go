package lexer

import (
	"fmt"
	"strconv"
)

// Kind classifies a Token.
type Kind uint8

const (
	EOF Kind = iota
	Error

	Identifier
	TypeWrapperName
	Punct

	String
	Number
	Hex
	None
	Bool
)

var kindNames = [...]string{
	EOF:             "end of input",
	Error:           "invalid input",
	Identifier:      "identifier",
	TypeWrapperName: "type name",
	Punct:           "punctuation",
	String:          "string",
	Number:          "number",
	Hex:             "hex literal",
	None:            "None",
	Bool:            "bool",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Literal reports whether tokens of this kind become scalar values.
func (k Kind) Literal() bool {
	switch k {
	case String, Number, Hex, None, Bool:
		return true
	}
	return false
}

// Pos is a location in the source. Line and Column are 1-based and Column
// counts runes; Offset is the byte offset.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexeme. Text holds the decoded value: string contents without
// quotes or escapes, numbers without '_' separators, hex literals always with
// a lowercase "0x" prefix, and the single bracket or separator for Punct.
type Token struct {
	Kind Kind
	Text string
	Pos  Pos
}

// IsPunct reports whether t is the punctuation character c.
func (t Token) IsPunct(c byte) bool {
	return t.Kind == Punct && len(t.Text) == 1 && t.Text[0] == c
}

// Describe renders the token for diagnostics.
func (t Token) Describe() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case Punct:
		return "'" + t.Text + "'"
	case String:
		return "string " + strconv.Quote(t.Text)
	default:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	}
}
