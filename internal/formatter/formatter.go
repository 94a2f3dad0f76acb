// Package formatter renders a parsed txpool value tree as canonical JSON.
package formatter

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/metrics"
	"github.com/mcncl/txpool2json/internal/models"
)

// MaxSafeInteger is the largest integer a float64 JSON consumer can hold
// exactly (2^53-1). Integers beyond it are rendered as strings.
const MaxSafeInteger = 1<<53 - 1

const maxSafeDigits = "9007199254740991"

// HexMode selects how hex literals are rendered.
type HexMode string

const (
	// HexString keeps every hex literal as its "0x..." source text.
	HexString HexMode = "string"
	// HexNumber renders hex literals within MaxSafeInteger as JSON numbers
	// and larger ones as strings.
	HexNumber HexMode = "number"
)

// Options controls rendering.
type Options struct {
	// Pretty indents the output with Indent.
	Pretty bool
	Indent string
	Hex    HexMode
	// Transparent lists wrapper names rendered as their inner value.
	Transparent []string
}

// DefaultOptions returns compact output with hex kept as strings and Some
// unwrapped.
func DefaultOptions() Options {
	return Options{
		Indent:      "  ",
		Hex:         HexString,
		Transparent: []string{"Some"},
	}
}

// Recorder receives rendering measurements.
type Recorder interface {
	RecordFieldReplacement()
	RecordBytes(dir metrics.Direction, n int)
}

// Formatter is responsible for turning a value tree into JSON text
type Formatter struct {
	opts        Options
	transparent map[string]struct{}
}

// NewFormatter creates a new Formatter instance
func NewFormatter(opts Options) *Formatter {
	if opts.Hex == "" {
		opts.Hex = HexString
	}
	if opts.Indent == "" {
		opts.Indent = "  "
	}

	f := &Formatter{
		opts:        opts,
		transparent: make(map[string]struct{}, len(opts.Transparent)),
	}
	for _, name := range opts.Transparent {
		f.transparent[name] = struct{}{}
	}
	return f
}

// Format renders v. Struct field names become quoted keys, each counted as
// one field replacement; the length of the returned text is recorded as
// output bytes. The only possible error is an InternalConsistencyError for a
// tree the parser should never have produced. rec may be nil.
func (f *Formatter) Format(v models.Value, rec Recorder) (string, error) {
	if rec == nil {
		rec = nopRecorder{}
	}

	var buf bytes.Buffer
	if err := f.value(&buf, v, rec); err != nil {
		return "", err
	}

	out := buf.String()
	if f.opts.Pretty {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, buf.Bytes(), "", f.opts.Indent); err != nil {
			return "", errors.NewInternalConsistencyError("rendered invalid JSON: %v", err)
		}
		out = pretty.String()
	}

	rec.RecordBytes(metrics.Output, len(out))
	return out, nil
}

type nopRecorder struct{}

func (nopRecorder) RecordFieldReplacement()            {}
func (nopRecorder) RecordBytes(metrics.Direction, int) {}

func (f *Formatter) value(buf *bytes.Buffer, v models.Value, rec Recorder) error {
	switch n := v.(type) {
	case *models.Scalar:
		return f.scalar(buf, n)

	case *models.Sequence:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := f.value(buf, item, rec); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case *models.Struct:
		seen := make(map[string]struct{}, len(n.Fields))
		buf.WriteByte('{')
		for i, field := range n.Fields {
			if _, dup := seen[field.Name]; dup {
				return errors.NewInternalConsistencyError("duplicate field %q in %s", field.Name, n.Name)
			}
			seen[field.Name] = struct{}{}

			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, field.Name)
			rec.RecordFieldReplacement()
			buf.WriteByte(':')
			if err := f.value(buf, field.Value, rec); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case *models.TypeWrapper:
		if _, ok := f.transparent[n.Name]; ok {
			return f.value(buf, n.Inner, rec)
		}
		buf.WriteByte('{')
		writeString(buf, n.Name)
		buf.WriteByte(':')
		if err := f.value(buf, n.Inner, rec); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil

	case *models.Map:
		seen := make(map[string]struct{}, len(n.Entries))
		buf.WriteByte('{')
		for i, e := range n.Entries {
			if _, dup := seen[e.Key]; dup {
				return errors.NewInternalConsistencyError("duplicate map key %q", e.Key)
			}
			seen[e.Key] = struct{}{}

			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, e.Key)
			buf.WriteByte(':')
			if err := f.value(buf, e.Value, rec); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case nil:
		return errors.NewInternalConsistencyError("nil value in tree")
	}
	return errors.NewInternalConsistencyError("unknown value type %T", v)
}

func (f *Formatter) scalar(buf *bytes.Buffer, s *models.Scalar) error {
	switch s.Kind {
	case models.Null:
		buf.WriteString("null")
	case models.Bool:
		if s.Text != "true" && s.Text != "false" {
			return errors.NewInternalConsistencyError("bad bool literal %q", s.Text)
		}
		buf.WriteString(s.Text)
	case models.String, models.Symbol:
		writeString(buf, s.Text)
	case models.Number:
		f.number(buf, s.Text)
	case models.Hex:
		f.hex(buf, s.Text)
	default:
		return errors.NewInternalConsistencyError("unknown scalar kind %d", s.Kind)
	}
	return nil
}

// number writes a decimal literal. Values whose magnitude exceeds
// MaxSafeInteger, or that a float64 cannot hold, are quoted verbatim.
func (f *Formatter) number(buf *bytes.Buffer, text string) {
	neg := strings.HasPrefix(text, "-")
	digits := strings.TrimPrefix(text, "-")

	intPart, rest := digits, ""
	if i := strings.IndexAny(digits, ".eE"); i >= 0 {
		intPart, rest = digits[:i], digits[i:]
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	b.WriteString(rest)

	text = b.String()
	if rest == "" && exceedsSafe(intPart) || rest != "" && !floatWithinSafe(text) {
		writeString(buf, text)
		return
	}
	buf.WriteString(text)
}

var maxSafeFloat = new(big.Float).SetInt64(MaxSafeInteger)

// floatWithinSafe reports whether a fraction or exponent literal has a
// magnitude of at most MaxSafeInteger and does not underflow a float64.
func floatWithinSafe(text string) bool {
	f, _, err := big.ParseFloat(text, 10, 256, big.ToNearestEven)
	if err != nil || f.IsInf() {
		return false
	}
	f.Abs(f)
	if f.Cmp(maxSafeFloat) > 0 {
		return false
	}
	if f.Sign() != 0 {
		if v, _ := f.Float64(); v == 0 {
			return false
		}
	}
	return true
}

func (f *Formatter) hex(buf *bytes.Buffer, text string) {
	if f.opts.Hex != HexNumber {
		writeString(buf, text)
		return
	}

	digits := strings.TrimLeft(text[2:], "0")
	if len(text) == 2 || len(digits) > 14 {
		writeString(buf, text)
		return
	}
	if digits == "" {
		buf.WriteByte('0')
		return
	}

	n, err := strconv.ParseUint(digits, 16, 64)
	if err != nil || n > MaxSafeInteger {
		writeString(buf, text)
		return
	}
	buf.WriteString(strconv.FormatUint(n, 10))
}

// exceedsSafe compares a decimal digit string without leading zeros
// against MaxSafeInteger.
func exceedsSafe(digits string) bool {
	if len(digits) != len(maxSafeDigits) {
		return len(digits) > len(maxSafeDigits)
	}
	return digits > maxSafeDigits
}

const hexDigits = "0123456789abcdef"

// writeString writes s as a JSON string. Unlike encoding/json it leaves
// <, > and & alone.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				buf.WriteByte('\\')
				buf.WriteByte(c)
			case c == '\n':
				buf.WriteString(`\n`)
			case c == '\r':
				buf.WriteString(`\r`)
			case c == '\t':
				buf.WriteString(`\t`)
			case c < 0x20 || c == 0x7f:
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
			default:
				buf.WriteByte(c)
			}
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			buf.WriteString(`\ufffd`)
		case r == '\u2028' || r == '\u2029':
			buf.WriteString(`\u202`)
			buf.WriteByte(hexDigits[r&0xf])
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
