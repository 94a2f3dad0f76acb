// Package parser builds a value tree from the Debug rendering of a txpool.
//
// The grammar, with type names recognised by the lexer:
//
//	value   = struct | wrapper | seq | tuple | map | literal | identifier .
//	struct  = TypeName "{" [ field { "," field } [ "," ] ] "}" .
//	field   = identifier ":" value .
//	wrapper = TypeName "(" value [ "," ] ")" .
//	seq     = "[" [ value { "," value } [ "," ] ] "]" .
//	tuple   = "(" [ value { "," value } [ "," ] ] ")" .
//	map     = "{" [ entry { "," entry } [ "," ] ] "}" .
//	entry   = literal | identifier ":" value .
package parser

import (
	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/lexer"
	"github.com/mcncl/txpool2json/internal/models"
)

// Recorder receives parse-time measurements.
type Recorder interface {
	// RecordTypeWrapper is called once per successfully closed named
	// struct or type wrapper.
	RecordTypeWrapper(name string)
	// RecordParseError is called for every error, recovered or not.
	RecordParseError(e *errors.ParseError)
}

// MaxDepth bounds how deeply composites may nest.
const MaxDepth = 10000

type nopRecorder struct{}

func (nopRecorder) RecordTypeWrapper(string)            {}
func (nopRecorder) RecordParseError(*errors.ParseError) {}

type parser struct {
	lex *lexer.Lexer
	tok lexer.Token
	rec Recorder

	// depth counts the composites currently open.
	depth  int
	lexErr *errors.ParseError
}

// Parse parses src into a single root value. Lexical errors are recorded and
// skipped so scanning can go on; the first structural error stops parsing,
// after which the rest of the input is still scanned to record any further
// lexical errors. Parse fails if any error was found.
func Parse(src string, rec Recorder) (models.Value, error) {
	if rec == nil {
		rec = nopRecorder{}
	}

	p := &parser{rec: rec}
	p.lex = lexer.New(src, func(e *errors.ParseError) {
		if p.lexErr == nil {
			p.lexErr = e
		}
		p.rec.RecordParseError(e)
	})
	p.next()

	v, err := p.value()
	if err == nil && p.tok.Kind != lexer.EOF {
		err = p.unexpected("end of input")
	}
	if err != nil {
		p.rec.RecordParseError(err)
		p.drain()
		return nil, err
	}

	if p.lexErr != nil {
		return nil, p.lexErr
	}
	return v, nil
}

// next advances to the next token, skipping the error tokens the lexer has
// already reported.
func (p *parser) next() {
	for {
		p.tok = p.lex.Next()
		if p.tok.Kind != lexer.Error {
			return
		}
	}
}

func (p *parser) drain() {
	for p.tok.Kind != lexer.EOF {
		p.next()
	}
}

func (p *parser) got(c byte) bool {
	if p.tok.IsPunct(c) {
		p.next()
		return true
	}
	return false
}

func (p *parser) want(c byte) *errors.ParseError {
	if !p.got(c) {
		return p.unexpected("'" + string(c) + "'")
	}
	return nil
}

// unexpected reports the current token; at end of input inside a composite
// it reports an unterminated composite instead.
func (p *parser) unexpected(expected string) *errors.ParseError {
	pos := p.tok.Pos
	if p.tok.Kind == lexer.EOF && p.depth > 0 {
		return errors.NewUnterminatedError(pos.Line, pos.Column, expected)
	}
	return errors.NewUnexpectedTokenError(pos.Line, pos.Column, expected, p.tok.Describe())
}

// enter opens a composite whose opening delimiter has been consumed.
func (p *parser) enter() *errors.ParseError {
	if p.depth >= MaxDepth {
		pos := p.tok.Pos
		return errors.NewDepthError(pos.Line, pos.Column, MaxDepth, p.tok.Describe())
	}
	p.depth++
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) value() (models.Value, *errors.ParseError) {
	switch p.tok.Kind {
	case lexer.TypeWrapperName:
		name := p.tok
		p.next()
		if p.tok.IsPunct('{') {
			return p.structBody(name)
		}
		return p.wrapper(name)
	case lexer.Identifier:
		v := &models.Scalar{Kind: models.Symbol, Text: p.tok.Text}
		p.next()
		return v, nil
	case lexer.Punct:
		switch {
		case p.tok.IsPunct('['):
			return p.sequence('[', ']')
		case p.tok.IsPunct('('):
			return p.sequence('(', ')')
		case p.tok.IsPunct('{'):
			return p.mapBody()
		}
	}

	if p.tok.Kind.Literal() {
		v := scalar(p.tok)
		p.next()
		return v, nil
	}
	return nil, p.unexpected("value")
}

func scalar(tok lexer.Token) *models.Scalar {
	switch tok.Kind {
	case lexer.String:
		return &models.Scalar{Kind: models.String, Text: tok.Text}
	case lexer.Number:
		return &models.Scalar{Kind: models.Number, Text: tok.Text}
	case lexer.Hex:
		return &models.Scalar{Kind: models.Hex, Text: tok.Text}
	case lexer.Bool:
		return &models.Scalar{Kind: models.Bool, Text: tok.Text}
	default:
		return &models.Scalar{Kind: models.Null}
	}
}

// list parses comma separated elements up to the closing delimiter, which it
// consumes. A trailing comma is allowed.
func (p *parser) list(end byte, elem func() *errors.ParseError) *errors.ParseError {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.leave()

	for !p.tok.IsPunct(end) {
		if err := elem(); err != nil {
			return err
		}
		if !p.got(',') && !p.tok.IsPunct(end) {
			return p.unexpected("',' or '" + string(end) + "'")
		}
	}
	p.next()
	return nil
}

func (p *parser) structBody(name lexer.Token) (models.Value, *errors.ParseError) {
	p.next()

	s := &models.Struct{Name: name.Text}
	seen := make(map[string]struct{})

	err := p.list('}', func() *errors.ParseError {
		if p.tok.Kind != lexer.Identifier {
			return p.unexpected("field name")
		}
		field := p.tok
		if _, dup := seen[field.Text]; dup {
			return errors.NewDuplicateFieldError(field.Pos.Line, field.Pos.Column, name.Text, field.Text)
		}
		seen[field.Text] = struct{}{}
		p.next()

		if err := p.want(':'); err != nil {
			return err
		}
		v, err := p.value()
		if err != nil {
			return err
		}
		s.Fields = append(s.Fields, models.Field{Name: field.Text, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.rec.RecordTypeWrapper(name.Text)
	return s, nil
}

func (p *parser) wrapper(name lexer.Token) (models.Value, *errors.ParseError) {
	if err := p.want('('); err != nil {
		return nil, err
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	inner, err := p.value()
	if err != nil {
		return nil, err
	}
	p.got(',')
	if err := p.want(')'); err != nil {
		return nil, err
	}

	p.rec.RecordTypeWrapper(name.Text)
	return &models.TypeWrapper{Name: name.Text, Inner: inner}, nil
}

func (p *parser) sequence(open, end byte) (models.Value, *errors.ParseError) {
	if err := p.want(open); err != nil {
		return nil, err
	}

	seq := &models.Sequence{Items: []models.Value{}}
	err := p.list(end, func() *errors.ParseError {
		v, err := p.value()
		if err != nil {
			return err
		}
		seq.Items = append(seq.Items, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seq, nil
}

func (p *parser) mapBody() (models.Value, *errors.ParseError) {
	p.next()

	m := &models.Map{Entries: []models.Entry{}}
	seen := make(map[string]struct{})

	err := p.list('}', func() *errors.ParseError {
		key, ok := mapKey(p.tok)
		if !ok {
			return p.unexpected("map key")
		}
		keyTok := p.tok
		if _, dup := seen[key]; dup {
			return errors.NewDuplicateFieldError(keyTok.Pos.Line, keyTok.Pos.Column, "map", key)
		}
		seen[key] = struct{}{}
		p.next()

		if err := p.want(':'); err != nil {
			return err
		}
		v, err := p.value()
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, models.Entry{Key: key, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// mapKey returns the JSON object key for a map key token.
func mapKey(tok lexer.Token) (string, bool) {
	switch tok.Kind {
	case lexer.String, lexer.Number, lexer.Hex, lexer.Bool, lexer.Identifier:
		return tok.Text, true
	case lexer.None:
		return "null", true
	}
	return "", false
}
