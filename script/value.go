package script

import (
	"bytes"
	"strconv"

	"github.com/chazu/loadpath/interp"
)

type valueKind int

const (
	kindNil valueKind = iota
	kindBool
	kindInt
	kindString
)

// Value is a script value. The zero Value is nil.
type Value struct {
	kind valueKind
	b    bool
	i    int64
	s    []byte
}

var _ interp.Value = Value{}

// Nil is the nil value.
var Nil = Value{}

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: kindInt, i: i} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: kindBool, b: b} }

// String returns a string value holding a copy of s.
func String(s []byte) Value { return Value{kind: kindString, s: bytes.Clone(s)} }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == kindNil }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == kindInt }

// AsBytes returns the bytes held by a string value.
func (v Value) AsBytes() ([]byte, bool) { return v.s, v.kind == kindString }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == kindBool }

// Truthy reports whether v counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.kind {
	case kindNil:
		return false
	case kindBool:
		return v.b
	default:
		return true
	}
}

// ToS returns the string conversion used by puts and string interpolation.
func (v Value) ToS() []byte {
	switch v.kind {
	case kindString:
		return bytes.Clone(v.s)
	case kindNil:
		return []byte{}
	default:
		return v.Inspect()
	}
}

// Inspect returns a developer-facing representation.
func (v Value) Inspect() []byte {
	switch v.kind {
	case kindBool:
		return []byte(strconv.FormatBool(v.b))
	case kindInt:
		return []byte(strconv.FormatInt(v.i, 10))
	case kindString:
		out := []byte{'"'}
		for _, c := range v.s {
			switch c {
			case '"', '\\':
				out = append(out, '\\', c)
			case '\n':
				out = append(out, '\\', 'n')
			default:
				out = append(out, c)
			}
		}
		return append(out, '"')
	default:
		return []byte("nil")
	}
}

// IsUnreachable is always false; the script engine has no internal
// values.
func (v Value) IsUnreachable() bool { return false }

func (v Value) className() string {
	switch v.kind {
	case kindBool:
		if v.b {
			return "TrueClass"
		}
		return "FalseClass"
	case kindInt:
		return "Integer"
	case kindString:
		return "String"
	default:
		return "NilClass"
	}
}
