// Package value implements the dynamic, tagged-union value model shared by
// every stage of the template pipeline (spec §3). Values are reference
// types: a Value is conceptually immutable once it has more than one
// owner, matching minijinja's value.rs (original_source).
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the active representation held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNone
	KindBool
	KindU64
	KindI64
	KindU128
	KindI128
	KindF64
	KindChar
	KindString
	KindBytes
	KindSeq
	KindMap
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindU64, KindI64, KindU128, KindI128:
		return "number"
	case KindF64:
		return "number"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "mapping"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// StringType distinguishes a plain string from one already marked safe
// (pre-escaped) per spec §3.
type StringType uint8

const (
	StringNormal StringType = iota
	StringSafe
)

// MapType distinguishes a normal mapping from a keyword-argument bundle.
type MapType uint8

const (
	MapNormal MapType = iota
	MapKwargs
)

// UndefinedKind distinguishes the silent undefined used for ternary
// `if`-without-`else` short-circuiting from a regular missing lookup.
type UndefinedKind uint8

const (
	UndefinedRegular UndefinedKind = iota
	UndefinedSilent
)

// Value is the dynamic value every opcode and filter/test/function
// operates on. The zero Value is Undefined.
type Value struct {
	kind  Kind
	undef UndefinedKind

	b      bool
	u64    uint64
	i64    int64
	u128hi uint64 // high 64 bits for u128/i128, low half shares u64/i64
	f64    float64
	ch     rune

	str     string
	strType StringType

	bytes []byte

	seq []Value

	m       *OrderedMap
	mapType MapType

	obj Object
}

// Undefined is the sentinel for a missing regular lookup.
var Undefined = Value{kind: KindUndefined, undef: UndefinedRegular}

// SilentUndefined is returned by constructs (e.g. a ternary without else)
// that must not trigger strict-mode undefined errors when discarded.
var SilentUndefined = Value{kind: KindUndefined, undef: UndefinedSilent}

// None is the null value.
var None = Value{kind: KindNone}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// I64 constructs a signed 64-bit integer value.
func I64(v int64) Value { return Value{kind: KindI64, i64: v} }

// U64 constructs an unsigned 64-bit integer value.
func U64(v uint64) Value { return Value{kind: KindU64, u64: v} }

// F64 constructs a floating point value.
func F64(v float64) Value { return Value{kind: KindF64, f64: v} }

// Char constructs a single-rune value.
func Char(r rune) Value { return Value{kind: KindChar, ch: r} }

// String constructs a normal (escapable) string value.
func String(s string) Value { return Value{kind: KindString, str: s, strType: StringNormal} }

// SafeString constructs a string marked as already-escaped.
func SafeString(s string) Value { return Value{kind: KindString, str: s, strType: StringSafe} }

// Bytes constructs a byte-string value.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// Seq constructs an ordered-sequence value.
func Seq(items []Value) Value { return Value{kind: KindSeq, seq: items} }

// Map constructs a mapping value from an OrderedMap.
func Map(m *OrderedMap) Value { return Value{kind: KindMap, m: m, mapType: MapNormal} }

// Kwargs constructs a keyword-argument bundle mapping value.
func Kwargs(m *OrderedMap) Value { return Value{kind: KindMap, m: m, mapType: MapKwargs} }

// FromObject wraps a dynamic Object as a Value.
func FromObject(o Object) Value { return Value{kind: KindObject, obj: o} }

// Kind reports the active representation tag.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the Undefined sentinel (any subtype).
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsSilentUndefined reports the silent-undefined subtype used by ternary
// expressions (spec §3, §7).
func (v Value) IsSilentUndefined() bool {
	return v.kind == KindUndefined && v.undef == UndefinedSilent
}

// IsNone reports whether v is None.
func (v Value) IsNone() bool { return v.kind == KindNone }

// IsSafe reports whether v is a string marked Safe.
func (v Value) IsSafe() bool { return v.kind == KindString && v.strType == StringSafe }

// StringType returns the current StringType (meaningless outside KindString).
func (v Value) StringType() StringType { return v.strType }

// MapType returns the current MapType (meaningless outside KindMap).
func (v Value) MapType() MapType { return v.mapType }

// Object returns the wrapped Object, or nil if v is not KindObject.
func (v Value) Object() Object {
	if v.kind == KindObject {
		return v.obj
	}
	return nil
}

// IsNumber reports whether v holds any numeric kind.
func (v Value) IsNumber() bool {
	switch v.kind {
	case KindU64, KindI64, KindU128, KindI128, KindF64:
		return true
	default:
		return false
	}
}

// String-ish accessors ------------------------------------------------

// AsStr returns the raw Go string for a KindString value, or "" otherwise.
func (v Value) AsStr() (string, bool) {
	if v.kind == KindString {
		return v.str, true
	}
	return "", false
}

// AsSeq returns the backing slice for a KindSeq value.
func (v Value) AsSeq() ([]Value, bool) {
	if v.kind == KindSeq {
		return v.seq, true
	}
	return nil, false
}

// AsMap returns the backing OrderedMap for a KindMap value.
func (v Value) AsMap() (*OrderedMap, bool) {
	if v.kind == KindMap {
		return v.m, true
	}
	return nil, false
}

// AsBytes returns the backing byte slice for a KindBytes value.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind == KindBytes {
		return v.bytes, true
	}
	return nil, false
}

// Truthy coerces v to a boolean using Jinja truthiness rules (spec §3/§9:
// undefined/none/false/0/""/empty-sequence/empty-mapping are falsy).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindUndefined, KindNone:
		return false
	case KindBool:
		return v.b
	case KindU64:
		return v.u64 != 0
	case KindI64:
		return v.i64 != 0
	case KindU128, KindI128:
		return v.u64 != 0 || v.u128hi != 0
	case KindF64:
		return v.f64 != 0
	case KindChar:
		return v.ch != 0
	case KindString:
		return v.str != ""
	case KindBytes:
		return len(v.bytes) != 0
	case KindSeq:
		return len(v.seq) != 0
	case KindMap:
		return v.m != nil && v.m.Len() != 0
	case KindObject:
		if v.obj == nil {
			return false
		}
		if n, ok := v.obj.Len(); ok {
			return n != 0
		}
		return true
	default:
		return false
	}
}

// Float returns v's numeric value widened to float64, plus whether v is
// numeric at all.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindU64:
		return float64(v.u64), true
	case KindI64:
		return float64(v.i64), true
	case KindF64:
		return v.f64, true
	case KindU128, KindI128:
		return i128ToFloat(v), true
	default:
		return 0, false
	}
}

// Int returns v's numeric value narrowed to int64 when exactly
// representable, plus whether that narrowing succeeded.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindI64:
		return v.i64, true
	case KindU64:
		if v.u64 <= math.MaxInt64 {
			return int64(v.u64), true
		}
		return 0, false
	case KindF64:
		if v.f64 == math.Trunc(v.f64) && !math.IsInf(v.f64, 0) {
			return int64(v.f64), true
		}
		return 0, false
	case KindU128, KindI128:
		if v.u128hi == 0 {
			return int64(v.u64), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Len reports the natural length of v (string rune count, bytes length,
// sequence length, map key count, or an Object's advertised length).
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindString:
		return len([]rune(v.str)), true
	case KindBytes:
		return len(v.bytes), true
	case KindSeq:
		return len(v.seq), true
	case KindMap:
		if v.m == nil {
			return 0, true
		}
		return v.m.Len(), true
	case KindObject:
		if v.obj == nil {
			return 0, false
		}
		return v.obj.Len()
	default:
		return 0, false
	}
}

// Equal implements Jinja's `==` semantics: numbers compare across kind by
// value, strings/bytes/bools/none/undefined compare by identity of
// representation, sequences/maps compare element-wise.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		af, _ := a.Float()
		bf, _ := b.Float()
		return af == bf
	}
	if a.kind != b.kind {
		if a.kind == KindUndefined && b.kind == KindUndefined {
			return true
		}
		return false
	}
	switch a.kind {
	case KindUndefined, KindNone:
		return true
	case KindBool:
		return a.b == b.b
	case KindChar:
		return a.ch == b.ch
	case KindString:
		return a.str == b.str
	case KindBytes:
		return string(a.bytes) == string(b.bytes)
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.m == nil || b.m == nil {
			return a.m == b.m
		}
		if a.m.Len() != b.m.Len() {
			return false
		}
		for _, k := range a.m.Keys() {
			av, _ := a.m.Get(k)
			bv, ok := b.m.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindObject:
		return a.obj == b.obj
	default:
		return false
	}
}

// Less implements Jinja's `<` semantics for orderable kinds: numbers
// compare numerically, strings lexicographically by byte.
func Less(a, b Value) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		af, _ := a.Float()
		bf, _ := b.Float()
		return af < bf, nil
	}
	if a.kind == KindString && b.kind == KindString {
		return a.str < b.str, nil
	}
	if a.kind == KindChar && b.kind == KindChar {
		return a.ch < b.ch, nil
	}
	return false, fmt.Errorf("cannot compare %s with %s", a.kind, b.kind)
}

// Repr returns a debug representation of v (used by `repr`-ish filters and
// error messages), not a re-parseable literal.
func (v Value) Repr() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindU64:
		return strconv.FormatUint(v.u64, 10)
	case KindI64:
		return strconv.FormatInt(v.i64, 10)
	case KindU128, KindI128:
		return i128Repr(v)
	case KindF64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindChar:
		return strconv.QuoteRune(v.ch)
	case KindString:
		return strconv.Quote(v.str)
	case KindBytes:
		return fmt.Sprintf("b%q", v.bytes)
	case KindSeq:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.Repr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		if v.m == nil {
			return "{}"
		}
		parts := make([]string, 0, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			parts = append(parts, k.Repr()+": "+val.Repr())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindObject:
		if v.obj == nil {
			return "<object>"
		}
		return v.obj.Repr().String(v.obj)
	default:
		return "?"
	}
}

// String implements fmt.Stringer with the rendered (non-debug) form: this
// is what Emit uses before escaping is applied.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return ""
	case KindNone:
		return "none"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindU64:
		return strconv.FormatUint(v.u64, 10)
	case KindI64:
		return strconv.FormatInt(v.i64, 10)
	case KindU128, KindI128:
		return i128Repr(v)
	case KindF64:
		return formatFloat(v.f64)
	case KindChar:
		return string(v.ch)
	case KindString:
		return v.str
	case KindBytes:
		return string(v.bytes)
	case KindSeq:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.Repr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		return v.Repr()
	case KindObject:
		if v.obj == nil {
			return ""
		}
		return v.obj.Render(RenderDefault)
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Kwargs-aware helper: GetKwarg looks up a keyword by name on a Kwargs map
// value, reporting whether it was present.
func (v Value) GetKwarg(name string) (Value, bool) {
	if v.kind != KindMap || v.m == nil {
		return Undefined, false
	}
	return v.m.Get(KeyString(name))
}

// sortKeys is the helper behind OrderedMap.SortedKeys.
func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
