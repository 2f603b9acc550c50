package value

import "strconv"

// KeyKind tags the representation held by a Key (spec §3: Key is the
// Bool | I64 | Char | String subset of Value usable as a map key).
type KeyKind uint8

const (
	KeyKindBool KeyKind = iota
	KeyKindI64
	KeyKindChar
	KeyKindString
)

// Key is the restricted value type usable as an OrderedMap key.
type Key struct {
	kind KeyKind
	b    bool
	i    int64
	ch   rune
	s    string
}

// KeyBool constructs a boolean key.
func KeyBool(b bool) Key { return Key{kind: KeyKindBool, b: b} }

// KeyI64 constructs an integer key.
func KeyI64(i int64) Key { return Key{kind: KeyKindI64, i: i} }

// KeyChar constructs a character key.
func KeyChar(r rune) Key { return Key{kind: KeyKindChar, ch: r} }

// KeyString constructs a string key.
func KeyString(s string) Key { return Key{kind: KeyKindString, s: s} }

// Kind reports the key's representation tag.
func (k Key) Kind() KeyKind { return k.kind }

// AsStr returns the key's string form if it is a string key.
func (k Key) AsStr() (string, bool) {
	if k.kind == KeyKindString {
		return k.s, true
	}
	return "", false
}

// ToValue widens a Key back into a full Value.
func (k Key) ToValue() Value {
	switch k.kind {
	case KeyKindBool:
		return Bool(k.b)
	case KeyKindI64:
		return I64(k.i)
	case KeyKindChar:
		return Char(k.ch)
	case KeyKindString:
		return String(k.s)
	default:
		return Undefined
	}
}

// Repr renders the key the way it would appear inside a Map Repr.
func (k Key) Repr() string {
	switch k.kind {
	case KeyKindBool:
		if k.b {
			return "true"
		}
		return "false"
	case KeyKindI64:
		return strconv.FormatInt(k.i, 10)
	case KeyKindChar:
		return strconv.QuoteRune(k.ch)
	case KeyKindString:
		return strconv.Quote(k.s)
	default:
		return "?"
	}
}

// Less provides a total order over keys for deterministic (non
// insertion-order) iteration, ordering first by kind then by value.
func (k Key) Less(o Key) bool {
	if k.kind != o.kind {
		return k.kind < o.kind
	}
	switch k.kind {
	case KeyKindBool:
		return !k.b && o.b
	case KeyKindI64:
		return k.i < o.i
	case KeyKindChar:
		return k.ch < o.ch
	case KeyKindString:
		return k.s < o.s
	default:
		return false
	}
}

// ToKey converts a Value into a map Key when possible. A float key coerces
// silently to an integer key when the float is integral, per spec §3.
func ToKey(v Value) (Key, bool) {
	switch v.kind {
	case KindBool:
		return KeyBool(v.b), true
	case KindI64:
		return KeyI64(v.i64), true
	case KindU64:
		return KeyI64(int64(v.u64)), true
	case KindChar:
		return KeyChar(v.ch), true
	case KindString:
		return KeyString(v.str), true
	case KindF64:
		if v.f64 == float64(int64(v.f64)) {
			return KeyI64(int64(v.f64)), true
		}
		return Key{}, false
	default:
		return Key{}, false
	}
}
