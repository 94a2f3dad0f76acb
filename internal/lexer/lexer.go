// Package lexer scans the Debug rendering of a txpool into tokens.
package lexer

import (
	"iter"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mcncl/txpool2json/internal/errors"
)

// ErrorHandler receives every lexical error as it is found.
type ErrorHandler func(*errors.ParseError)

// Lexer produces tokens from src on demand. It never aborts: an unrecognized
// character is reported, returned as an Error token and skipped.
type Lexer struct {
	src  string
	errh ErrorHandler

	off  int
	line int
	col  int
}

// New returns a Lexer positioned at the start of src. errh may be nil.
func New(src string, errh ErrorHandler) *Lexer {
	l := &Lexer{src: src, errh: errh}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.off = 0
	l.line = 1
	l.col = 1
}

// All yields every token of the input, ending with EOF. Each call scans from
// the start independently of Next.
func (l *Lexer) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		sc := New(l.src, l.errh)
		for {
			tok := sc.Next()
			if !yield(tok) || tok.Kind == EOF {
				return
			}
		}
	}
}

func (l *Lexer) peek() rune {
	if l.off >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off:])
	return r
}

func (l *Lexer) peekAt(n int) byte {
	if l.off+n >= len(l.src) {
		return 0
	}
	return l.src[l.off+n]
}

func (l *Lexer) get() rune {
	if l.off >= len(l.src) {
		return -1
	}
	r, size := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) pos() Pos {
	return Pos{Offset: l.off, Line: l.line, Column: l.col}
}

func (l *Lexer) err(pos Pos, e *errors.ParseError) Token {
	if l.errh != nil {
		l.errh(e)
	}
	return Token{Kind: Error, Text: l.src[pos.Offset:l.off], Pos: pos}
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_' || r >= utf8.RuneSelf && unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F'
}

func (l *Lexer) skipSpace() {
	for {
		r := l.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.get()
		case r == '/' && l.peekAt(1) == '/':
			for r != '\n' && r != -1 {
				l.get()
				r = l.peek()
			}
		default:
			return
		}
	}
}

// Next returns the next token. At end of input it keeps returning EOF.
func (l *Lexer) Next() Token {
	l.skipSpace()

	pos := l.pos()
	r := l.peek()

	switch {
	case r == -1:
		return Token{Kind: EOF, Pos: pos}
	case isLetter(r):
		return l.ident(pos)
	case isDigit(r) || r == '-' && isDigit(rune(l.peekAt(1))):
		return l.number(pos)
	case r == '"':
		return l.string(pos)
	}

	switch r {
	case '{', '}', '[', ']', '(', ')', ',', ':':
		l.get()
		return Token{Kind: Punct, Text: string(r), Pos: pos}
	}

	l.get()
	return l.err(pos, errors.NewLexicalError(pos.Line, pos.Column, r))
}

func (l *Lexer) ident(pos Pos) Token {
	raw := l.peek() == 'r' && l.peekAt(1) == '#' && isLetter(rune(l.peekAt(2)))
	if raw {
		l.get()
		l.get()
	}

	start := l.off
	for r := l.peek(); isLetter(r) || isDigit(r); r = l.peek() {
		l.get()
	}
	text := l.src[start:l.off]

	if !raw && isAddress(text) {
		return Token{Kind: Hex, Text: "0x" + text, Pos: pos}
	}

	switch text {
	case "None", "null":
		return Token{Kind: None, Text: text, Pos: pos}
	case "true", "false":
		return Token{Kind: Bool, Text: text, Pos: pos}
	}

	if l.opensComposite() {
		return Token{Kind: TypeWrapperName, Text: text, Pos: pos}
	}
	return Token{Kind: Identifier, Text: text, Pos: pos}
}

// opensComposite reports whether the next non-space character is '{' or '('.
func (l *Lexer) opensComposite() bool {
	for i := l.off; i < len(l.src); i++ {
		switch l.src[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '(':
			return true
		}
		return false
	}
	return false
}

// number scans decimal and hex literals. A digit-led run containing hex
// letters is taken as a hex literal missing its prefix, which is how some
// Debug impls print addresses.
func (l *Lexer) number(pos Pos) Token {
	neg := false
	if l.peek() == '-' {
		l.get()
		neg = true
	}

	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		if neg {
			return l.badNumber(pos)
		}
		l.get()
		l.get()
		start := l.off
		for isHexDigit(l.peek()) {
			l.get()
		}
		if isLetter(l.peek()) {
			return l.badNumber(pos)
		}
		return Token{Kind: Hex, Text: "0x" + l.src[start:l.off], Pos: pos}
	}

	start := l.off
	for r := l.peek(); isLetter(r) || isDigit(r); r = l.peek() {
		l.get()
	}
	run := l.src[start:l.off]

	if !neg && isAddress(run) {
		return Token{Kind: Hex, Text: "0x" + run, Pos: pos}
	}

	switch {
	case isDecimalRun(run):
		var b strings.Builder
		if neg {
			b.WriteByte('-')
		}
		b.WriteString(strings.ReplaceAll(run, "_", ""))
		l.fraction(&b)
		return Token{Kind: Number, Text: b.String(), Pos: pos}
	case isExponentRun(run):
		text := strings.ReplaceAll(run, "_", "")
		if l.peek() == '+' || l.peek() == '-' {
			sign := l.get()
			digits := l.digits()
			if digits == "" {
				return l.badNumber(pos)
			}
			text += string(sign) + digits
		} else if !strings.ContainsAny(text[len(text)-1:], "0123456789") {
			return l.badNumber(pos)
		}
		if neg {
			text = "-" + text
		}
		return Token{Kind: Number, Text: text, Pos: pos}
	case !neg && isHexRun(run):
		return Token{Kind: Hex, Text: "0x" + run, Pos: pos}
	}
	return l.badNumber(pos)
}

func (l *Lexer) digits() string {
	start := l.off
	for r := l.peek(); isDigit(r) || r == '_'; r = l.peek() {
		l.get()
	}
	return strings.ReplaceAll(l.src[start:l.off], "_", "")
}

// fraction appends an optional ".digits" and exponent to b.
func (l *Lexer) fraction(b *strings.Builder) {
	if l.peek() != '.' || !isDigit(rune(l.peekAt(1))) {
		return
	}
	l.get()
	b.WriteByte('.')
	b.WriteString(l.digits())

	if r := l.peek(); r == 'e' || r == 'E' {
		next := l.peekAt(1)
		if isDigit(rune(next)) || (next == '+' || next == '-') && isDigit(rune(l.peekAt(2))) {
			b.WriteRune(l.get())
			if next == '+' || next == '-' {
				b.WriteRune(l.get())
			}
			b.WriteString(l.digits())
		}
	}
}

func (l *Lexer) badNumber(pos Pos) Token {
	for r := l.peek(); isLetter(r) || isDigit(r); r = l.peek() {
		l.get()
	}
	r, _ := utf8.DecodeRuneInString(l.src[pos.Offset:])
	e := errors.NewLexicalError(pos.Line, pos.Column, r)
	e.Message = "malformed number " + strconv.Quote(l.src[pos.Offset:l.off])
	return l.err(pos, e)
}

func isDecimalRun(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(rune(s[i])) && s[i] != '_' {
			return false
		}
	}
	return s != "" && s[0] != '_'
}

// isExponentRun matches "12e", "12e5" and "1_000E3".
func isExponentRun(s string) bool {
	i := strings.IndexAny(s, "eE")
	if i <= 0 || !isDecimalRun(s[:i]) {
		return false
	}
	rest := s[i+1:]
	return rest == "" || isDecimalRun(rest)
}

// addressLen is the hex length of a 20-byte address.
const addressLen = 40

// isAddress reports whether s is an address printed without its 0x prefix.
// Such runs are hex whatever character they start with, even when they
// would also read as a decimal, exponent or identifier.
func isAddress(s string) bool {
	return len(s) == addressLen && isHexRun(s)
}

func isHexRun(s string) bool {
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return s != ""
}

func (l *Lexer) string(pos Pos) Token {
	l.get()

	var b strings.Builder
	for {
		r := l.get()
		switch r {
		case -1:
			e := errors.NewLexicalError(pos.Line, pos.Column, '"')
			e.Message = "unterminated string literal"
			return l.err(pos, e)
		case '"':
			return Token{Kind: String, Text: b.String(), Pos: pos}
		case '\\':
			if !l.escape(&b) {
				epos := l.pos()
				e := errors.NewLexicalError(epos.Line, epos.Column-1, '\\')
				e.Message = "invalid escape sequence"
				if l.errh != nil {
					l.errh(e)
				}
			}
		default:
			b.WriteRune(r)
		}
	}
}

// escape decodes one escape sequence after a backslash.
func (l *Lexer) escape(b *strings.Builder) bool {
	r := l.get()
	switch r {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case '\\', '"', '\'':
		b.WriteRune(r)
	case 'u':
		if l.peek() != '{' {
			return false
		}
		l.get()
		start := l.off
		for isHexDigit(l.peek()) {
			l.get()
		}
		hex := l.src[start:l.off]
		if l.peek() != '}' {
			return false
		}
		l.get()
		cp, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !utf8.ValidRune(rune(cp)) {
			return false
		}
		b.WriteRune(rune(cp))
	default:
		return false
	}
	return true
}
