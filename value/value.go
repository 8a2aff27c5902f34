// Package value implements the tagged dynamic value (spec component B):
// a type tag, a payload, and a taint-or-absent slot that travels with the
// value itself rather than with whatever it references.
//
// Grounded on _examples/original_source/src/liblua/lmanip.h (the TValue
// struct implied by setnvalue/setsvalue/... all stamping dst->taint) and
// src/lstate.h's value-tag enumeration. Equality/hashing ignoring taint is
// spec §4.B.
package value

import (
	"fmt"
	"math"

	"github.com/taintscript/seclua/label"
)

// Type is the tag drawn from spec §3's value-tag set.
type Type uint8

const (
	TypeNil Type = iota
	TypeBoolean
	TypeNumber
	TypeLightUserData
	TypeString
	TypeTable
	TypeFunction
	TypeUserData
	TypeThread
	// TypePrototype and TypeUpvalue are the two internal tags named in §3;
	// scripts never observe them directly.
	TypePrototype
	TypeUpvalue
)

// String names the type the way a script would see it.
func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeLightUserData:
		return "userdata"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeUserData:
		return "userdata"
	case TypeThread:
		return "thread"
	case TypePrototype:
		return "prototype"
	case TypeUpvalue:
		return "upvalue"
	default:
		return "unknown"
	}
}

// Ref is the interface satisfied by every heap-allocated referent
// (strings, tables, closures, userdata, prototypes, upvalues, threads).
// The object header (spec component C) lives behind this interface so
// that `value` does not need to import `object` or any of its users,
// avoiding an import cycle with vm/vmstate.
type Ref interface {
	// ObjectTaint returns the referent's header taint (independent of any
	// Value.Taint pointing at it).
	ObjectTaint() *label.Label
	// SetObjectTaint overwrites the referent's header taint.
	SetObjectTaint(*label.Label)
}

// Value is the three-field tagged value from spec §4.B: tag, payload,
// taint-or-absent. The payload is stored split across a handful of typed
// fields rather than as an interface{} so that constructing nil/boolean/
// number values never allocates.
type Value struct {
	Type   Type
	Number float64
	Bool   bool
	Ptr    unsafePointer // light userdata payload only
	Ref    Ref           // heap referent for String/Table/Function/UserData/Thread/Prototype/Upvalue
	Str    string        // string payload (also cached on Ref for TypeString)
	Taint  *label.Label
}

// unsafePointer avoids importing "unsafe" in the exported surface while
// still letting light userdata round-trip an opaque host pointer.
type unsafePointer = uintptr

// Nil is the zero Value; it is always secure.
var Nil = Value{Type: TypeNil}

// Boolean constructs a boolean value with no taint. Callers needing taint
// propagation must go through a barrier.* setter instead of this
// constructor (spec §4.E): value.Boolean is for building immediate constants
// the compiler places in a constant pool, which carry no ambient taint by
// construction.
func Boolean(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// Num constructs a number value with no taint (constant-pool use; see Boolean).
func Num(n float64) Value { return Value{Type: TypeNumber, Number: n} }

// Str constructs a string value with no taint (constant-pool use; see Boolean).
func Str(s string) Value { return Value{Type: TypeString, Str: s} }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.Type == TypeNil }

// IsSecure reports whether v's taint slot is absent (spec §3 invariant 1).
func (v Value) IsSecure() bool { return v.Taint == nil }

// Truthy implements the language's truthiness rule: everything except nil
// and false is true. Taint never affects truthiness.
func (v Value) Truthy() bool {
	return !(v.Type == TypeNil || (v.Type == TypeBoolean && !v.Bool))
}

// Equal implements the VM's equality comparison (used by ==, table key
// lookup, and `next`). Taint is explicitly excluded from the comparison
// (spec §4.B): a tainted 42 and a clean 42 are the same key and the same
// value.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		// Lua-family semantics: no cross-type equality except nil==nil
		// (handled above) and no implicit number<->string coercion for ==.
		return false
	}
	switch a.Type {
	case TypeNil:
		return true
	case TypeBoolean:
		return a.Bool == b.Bool
	case TypeNumber:
		return a.Number == b.Number
	case TypeString:
		return a.Str == b.Str
	case TypeLightUserData:
		return a.Ptr == b.Ptr
	default:
		// Reference types compare by identity of the referent.
		return a.Ref == b.Ref
	}
}

// HashKey returns a key suitable for use as a Go map key representing v's
// value identity for table indexing, ignoring taint (spec §4.B: "Hashing
// likewise ignores taint").
func HashKey(v Value) any {
	switch v.Type {
	case TypeNil:
		return nil
	case TypeBoolean:
		return v.Bool
	case TypeNumber:
		// Normalize integral floats so 1 and 1.0 hash identically, matching
		// the reference language's number model.
		if v.Number == math.Trunc(v.Number) && !math.IsInf(v.Number, 0) {
			return int64(v.Number)
		}
		return v.Number
	case TypeString:
		return v.Str
	case TypeLightUserData:
		return v.Ptr
	default:
		return v.Ref
	}
}

// String renders v for diagnostics/print(); it never reveals taint, which
// is intentional — taint is an integrity label, not something ordinary
// script output exposes (spec Explicit non-goals).
func (v Value) String() string {
	switch v.Type {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeNumber:
		return fmt.Sprintf("%g", v.Number)
	case TypeString:
		return v.Str
	default:
		return fmt.Sprintf("%s: %p", v.Type, v.Ref)
	}
}
