// Package canon implements the RFC 8785 JSON Canonicalization Scheme as
// required for Provara's content-addressed hashing and signing payloads:
// sorted object keys (by UTF-16 code unit, not byte value), minimal
// whitespace, minimal string escaping, and shortest-round-trip number
// formatting. Every other package that derives an ID or a signature goes
// through this codec so two conforming implementations produce byte-
// identical output from the same logical document.
package canon

import "unicode/utf16"

// Kind discriminates the members of Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindFloat64
	KindString
	KindArray
	KindObject
)

// Value is a parsed JSON document that retains the tightest numeric
// category JSON syntax allows: an integer literal that fits in an int64
// or uint64 is never widened to float64, so the canonical encoder can
// round-trip "7" back to "7" instead of "7.0". A JSON literal written
// with a decimal point or exponent is always Float64, even when its
// value happens to be integral (e.g. 7.0 stays Float64 and prints as
// "7.0" per the forced-fraction rule in Canonicalize).
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	Str    string
	Array  []Value
	Object []Member
}

// Member is one key/value pair of an object, in original insertion order.
// Canonicalize re-sorts Members by key; Parse does not need to, since
// duplicate keys are a documented precondition violation rather than an
// enforced error (the last occurrence silently wins, matching how
// encoding/json resolves duplicates when decoding into a map).
type Member struct {
	Key   string
	Value Value
}

// Null is the canonical null Value.
var Null = Value{Kind: KindNull}

// Bool returns a Value wrapping b.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns a Value wrapping a signed integer literal.
func Int(i int64) Value { return Value{Kind: KindInt64, Int: i} }

// Uint returns a Value wrapping an unsigned integer literal outside the
// int64 range.
func Uint(u uint64) Value { return Value{Kind: KindUint64, Uint: u} }

// Float returns a Value wrapping a number with a fractional or
// exponential literal form.
func Float(f float64) Value { return Value{Kind: KindFloat64, Float: f} }

// String returns a Value wrapping a UTF-8 string.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Array returns a Value wrapping an ordered list of elements.
func Array(elems ...Value) Value { return Value{Kind: KindArray, Array: elems} }

// Object returns a Value wrapping key/value members. Members are sorted
// by UTF-16 code-unit order during Canonicalize, not at construction.
func Object(members ...Member) Value { return Value{Kind: KindObject, Object: members} }

// compareUTF16 orders a, b the way RFC 8785 §3.2.3 requires: by the
// numeric value of each UTF-16 code unit, not by Unicode code point and
// not by raw UTF-8 byte value. These differ for strings mixing BMP
// characters above U+E000 with supplementary-plane characters, since a
// surrogate pair's code units (0xD800-0xDFFF) sort below U+E000 even
// though the code point they encode is above it.
func compareUTF16(a, b string) int {
	au := utf16.Encode([]rune(a))
	bu := utf16.Encode([]rune(b))
	for i := 0; i < len(au) && i < len(bu); i++ {
		if au[i] != bu[i] {
			if au[i] < bu[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(au) < len(bu):
		return -1
	case len(au) > len(bu):
		return 1
	default:
		return 0
	}
}
