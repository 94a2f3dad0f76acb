// Package models defines the value tree built from a txpool Debug dump.
package models

// Value is a node of the parsed tree. The set of implementations is closed:
// Scalar, Sequence, Struct, TypeWrapper and Map.
type Value interface {
	isValue()
}

// ScalarKind identifies the literal form a Scalar came from.
type ScalarKind uint8

const (
	Null ScalarKind = iota
	String
	Number
	Hex
	Bool
	// Symbol is a bare identifier in value position, such as the unit
	// variant Create.
	Symbol
)

func (k ScalarKind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Hex:
		return "hex"
	case Bool:
		return "bool"
	case Symbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Scalar is a leaf literal. Text holds the decoded form: string contents,
// decimal digits, "0x"-prefixed hex, "true"/"false" or the symbol name.
type Scalar struct {
	Kind ScalarKind
	Text string
}

// Sequence is an ordered list, from [...] or a bare (...) tuple.
type Sequence struct {
	Items []Value
}

// Field is one name/value pair of a Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is a named composite, Name { field: value, ... }. Fields keep
// source order and names are unique within one Struct.
type Struct struct {
	Name   string
	Fields []Field
}

// TypeWrapper is a named single-argument composite, Name(inner).
type TypeWrapper struct {
	Name  string
	Inner Value
}

// Entry is one key/value pair of a Map. Key is already in its JSON string form.
type Entry struct {
	Key   string
	Value Value
}

// Map is an anonymous { key: value, ... } composite, as printed for hash maps.
type Map struct {
	Entries []Entry
}

func (*Scalar) isValue()      {}
func (*Sequence) isValue()    {}
func (*Struct) isValue()      {}
func (*TypeWrapper) isValue() {}
func (*Map) isValue()         {}

// Field returns the value of the named field.
func (s *Struct) Field(name string) (Value, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// CountNamed returns, per name, how many Struct and TypeWrapper nodes the
// tree rooted at v contains.
func CountNamed(v Value) map[string]int {
	counts := make(map[string]int)
	Walk(v, func(n Value) {
		switch n := n.(type) {
		case *Struct:
			counts[n.Name]++
		case *TypeWrapper:
			counts[n.Name]++
		}
	})
	return counts
}

// CountFields returns the number of field occurrences over all Struct nodes.
func CountFields(v Value) int {
	total := 0
	Walk(v, func(n Value) {
		if s, ok := n.(*Struct); ok {
			total += len(s.Fields)
		}
	})
	return total
}

// Walk calls fn for v and every descendant, parents before children.
func Walk(v Value, fn func(Value)) {
	if v == nil {
		return
	}
	fn(v)
	switch n := v.(type) {
	case *Sequence:
		for _, item := range n.Items {
			Walk(item, fn)
		}
	case *Struct:
		for _, f := range n.Fields {
			Walk(f.Value, fn)
		}
	case *TypeWrapper:
		Walk(n.Inner, fn)
	case *Map:
		for _, e := range n.Entries {
			Walk(e.Value, fn)
		}
	}
}
