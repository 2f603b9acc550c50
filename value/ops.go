// Package value: arithmetic, containment and iteration operators backing
// the VM's Add/Sub/Mul/Div/IntDiv/Rem/Pow/Neg/StringConcat/In opcodes
// (spec §4.5), grounded on minijinja/src/value/ops.rs (original_source).
package value

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// OpError is raised for an arithmetic/containment operation on
// incompatible kinds (maps to jinjaerr.InvalidOperation upstream).
type OpError struct{ Msg string }

func (e *OpError) Error() string { return e.Msg }

func opErr(op string, a, b Value) error {
	return &OpError{Msg: fmt.Sprintf("unable to %s %s and %s", op, a.kind, b.kind)}
}

// Add implements `+` (numeric addition; string/seq concatenation is via
// StringConcat or the `+` filter on lists in minijinja — this engine
// follows spec §4.2's grammar where `+`/`-` are numeric-only and `~` is the
// dedicated string-concat operator).
func Add(a, b Value) (Value, error) {
	if a.IsNumber() && b.IsNumber() {
		return numericBinop(a, b, func(x, y *big.Int) *big.Int { return new(big.Int).Add(x, y) },
			func(x, y float64) float64 { return x + y })
	}
	return Undefined, opErr("add", a, b)
}

// Sub implements `-`.
func Sub(a, b Value) (Value, error) {
	if a.IsNumber() && b.IsNumber() {
		return numericBinop(a, b, func(x, y *big.Int) *big.Int { return new(big.Int).Sub(x, y) },
			func(x, y float64) float64 { return x - y })
	}
	return Undefined, opErr("subtract", a, b)
}

// Mul implements `*`.
func Mul(a, b Value) (Value, error) {
	if a.IsNumber() && b.IsNumber() {
		return numericBinop(a, b, func(x, y *big.Int) *big.Int { return new(big.Int).Mul(x, y) },
			func(x, y float64) float64 { return x * y })
	}
	if a.kind == KindString && b.IsNumber() {
		n, _ := b.Int()
		if n < 0 {
			n = 0
		}
		return String(strings.Repeat(a.str, int(n))), nil
	}
	return Undefined, opErr("multiply", a, b)
}

// Div implements `/`, which is always floating point in Jinja semantics
// (spec §4.5).
func Div(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Undefined, opErr("divide", a, b)
	}
	af, _ := a.Float()
	bf, _ := b.Float()
	if bf == 0 {
		return Undefined, &OpError{Msg: "division by zero"}
	}
	return F64(af / bf), nil
}

// IntDiv implements `//`, using Euclidean floor-division (spec §9's
// documented deviation: this engine chooses Euclidean semantics rather
// than the reference implementation's plain flooring).
func IntDiv(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Undefined, opErr("floor-divide", a, b)
	}
	if isFloatKind(a) || isFloatKind(b) {
		af, _ := a.Float()
		bf, _ := b.Float()
		if bf == 0 {
			return Undefined, &OpError{Msg: "division by zero"}
		}
		return F64(math.Floor(euclidDivFloat(af, bf))), nil
	}
	x, y := a.big(), b.big()
	if y.Sign() == 0 {
		return Undefined, &OpError{Msg: "division by zero"}
	}
	q, _ := euclidDivModBig(x, y)
	return narrow(fromBig(q)), nil
}

// Rem implements `%`, Euclidean remainder consistent with IntDiv (spec
// §4.5/§9: "floor-division uses Euclidean semantics consistently with
// remainder").
func Rem(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Undefined, opErr("take the remainder of", a, b)
	}
	if isFloatKind(a) || isFloatKind(b) {
		af, _ := a.Float()
		bf, _ := b.Float()
		if bf == 0 {
			return Undefined, &OpError{Msg: "division by zero"}
		}
		r := math.Mod(af, bf)
		if r < 0 {
			r += math.Abs(bf)
		}
		return F64(r), nil
	}
	x, y := a.big(), b.big()
	if y.Sign() == 0 {
		return Undefined, &OpError{Msg: "division by zero"}
	}
	_, r := euclidDivModBig(x, y)
	return narrow(fromBig(r)), nil
}

// Pow implements `**`.
func Pow(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Undefined, opErr("raise", a, b)
	}
	if isFloatKind(a) || isFloatKind(b) {
		af, _ := a.Float()
		bf, _ := b.Float()
		return F64(math.Pow(af, bf)), nil
	}
	exp, ok := b.Int()
	if !ok || exp < 0 {
		af, _ := a.Float()
		bf, _ := b.Float()
		return F64(math.Pow(af, bf)), nil
	}
	return narrow(fromBig(new(big.Int).Exp(a.big(), big.NewInt(exp), nil))), nil
}

// Neg implements unary `-`.
func Neg(a Value) (Value, error) {
	switch a.kind {
	case KindI64:
		return I64(-a.i64), nil
	case KindU64:
		return narrow(fromBig(new(big.Int).Neg(a.big()))), nil
	case KindU128, KindI128:
		return narrow(fromBig(new(big.Int).Neg(a.big()))), nil
	case KindF64:
		return F64(-a.f64), nil
	default:
		return Undefined, &OpError{Msg: fmt.Sprintf("unable to negate %s", a.kind)}
	}
}

// StringConcat implements `~`, Jinja's dedicated string-concatenation
// operator: both sides are stringified with Value.String and joined.
func StringConcat(a, b Value) Value {
	return String(a.String() + b.String())
}

func isFloatKind(v Value) bool { return v.kind == KindF64 }

func numericBinop(a, b Value, bigOp func(x, y *big.Int) *big.Int, floatOp func(x, y float64) float64) (Value, error) {
	if isFloatKind(a) || isFloatKind(b) {
		af, _ := a.Float()
		bf, _ := b.Float()
		return F64(floatOp(af, bf)), nil
	}
	return narrow(fromBig(bigOp(a.big(), b.big()))), nil
}

// euclidDivModBig computes Euclidean quotient/remainder: 0 <= r < |y|.
func euclidDivModBig(x, y *big.Int) (*big.Int, *big.Int) {
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(x, y, r)
	if r.Sign() < 0 {
		if y.Sign() > 0 {
			q.Sub(q, big.NewInt(1))
			r.Add(r, y)
		} else {
			q.Add(q, big.NewInt(1))
			r.Sub(r, y)
		}
	}
	return q, r
}

func euclidDivFloat(x, y float64) float64 {
	if y < 0 {
		return math.Ceil(x / y)
	}
	return math.Floor(x / y)
}

// In implements the `in` operator / `In` opcode: sequence membership by
// equality, map membership by key, string substring (spec §4.5/§8).
func In(needle, haystack Value) (bool, error) {
	switch haystack.kind {
	case KindSeq:
		for _, item := range haystack.seq {
			if Equal(needle, item) {
				return true, nil
			}
		}
		return false, nil
	case KindMap:
		if haystack.m == nil {
			return false, nil
		}
		k, ok := ToKey(needle)
		if !ok {
			return false, nil
		}
		_, found := haystack.m.Get(k)
		return found, nil
	case KindString:
		s, ok := needle.AsStr()
		if !ok {
			return false, &OpError{Msg: "cannot check string containment of a non-string"}
		}
		return strings.Contains(haystack.str, s), nil
	case KindObject:
		if haystack.obj == nil {
			return false, nil
		}
		if _, ok := haystack.obj.GetValue(needle); ok {
			return true, nil
		}
		for it := iterateObject(haystack.obj); ; {
			v, ok := it.Next()
			if !ok {
				break
			}
			if Equal(needle, v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, &OpError{Msg: fmt.Sprintf("cannot check containment in %s", haystack.kind)}
	}
}

// sliceIndex resolves a possibly-negative index against a length, per
// spec §4.5's GetItem/Slice coercion rules.
func sliceIndex(idx, length int) int {
	if idx < 0 {
		idx += length
	}
	return idx
}

// GetItem implements the `GetItem` opcode: map key lookup, negative
// sequence indexing, dynamic-object dispatch (spec §4.5).
func GetItem(container, key Value) (Value, bool) {
	switch container.kind {
	case KindSeq:
		idx, ok := key.Int()
		if !ok {
			return Undefined, false
		}
		i := sliceIndex(int(idx), len(container.seq))
		if i < 0 || i >= len(container.seq) {
			return Undefined, false
		}
		return container.seq[i], true
	case KindString:
		idx, ok := key.Int()
		if !ok {
			return Undefined, false
		}
		runes := []rune(container.str)
		i := sliceIndex(int(idx), len(runes))
		if i < 0 || i >= len(runes) {
			return Undefined, false
		}
		return Char(runes[i]), true
	case KindMap:
		if container.m == nil {
			return Undefined, false
		}
		k, ok := ToKey(key)
		if !ok {
			return Undefined, false
		}
		return container.m.Get(k)
	case KindObject:
		if container.obj == nil {
			return Undefined, false
		}
		return container.obj.GetValue(key)
	default:
		return Undefined, false
	}
}

// Slice implements the `Slice` opcode over strings (by rune) and
// sequences, with Euclidean-agnostic plain Python/Jinja slice semantics
// (spec §4.5: negative bounds resolved against length, step of 0 errors).
func Slice(container Value, start, stop, step *int64) (Value, error) {
	getLen := func() (int, bool) {
		switch container.kind {
		case KindSeq:
			return len(container.seq), true
		case KindString:
			return len([]rune(container.str)), true
		default:
			return 0, false
		}
	}
	length, ok := getLen()
	if !ok {
		return Undefined, &OpError{Msg: fmt.Sprintf("cannot slice %s", container.kind)}
	}
	st := int64(1)
	if step != nil {
		st = *step
	}
	if st == 0 {
		return Undefined, &OpError{Msg: "slice step cannot be zero"}
	}
	lo, hi := sliceBounds(start, stop, st, length)

	if container.kind == KindString {
		runes := []rune(container.str)
		var out []rune
		if st > 0 {
			for i := lo; i < hi; i += int(st) {
				out = append(out, runes[i])
			}
		} else {
			for i := lo; i > hi; i += int(st) {
				out = append(out, runes[i])
			}
		}
		return String(string(out)), nil
	}
	var out []Value
	if st > 0 {
		for i := lo; i < hi; i += int(st) {
			out = append(out, container.seq[i])
		}
	} else {
		for i := lo; i > hi; i += int(st) {
			out = append(out, container.seq[i])
		}
	}
	return Seq(out), nil
}

func sliceBounds(start, stop *int64, step int64, length int) (int, int) {
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	var lo, hi int
	if step > 0 {
		lo, hi = 0, length
		if start != nil {
			s := int(*start)
			if s < 0 {
				s += length
			}
			lo = clamp(s, 0, length)
		}
		if stop != nil {
			s := int(*stop)
			if s < 0 {
				s += length
			}
			hi = clamp(s, 0, length)
		}
	} else {
		lo, hi = length-1, -1
		if start != nil {
			s := int(*start)
			if s < 0 {
				s += length
			}
			lo = clamp(s, -1, length-1)
		}
		if stop != nil {
			s := int(*stop)
			if s < 0 {
				s += length
			}
			hi = clamp(s, -1, length-1)
		}
	}
	return lo, hi
}
