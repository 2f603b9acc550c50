package value

import (
	"math"
	"math/big"
)

// 128-bit integers are represented with the low 64 bits in u64/i64 and the
// high 64 bits in u128hi; this module only needs enough of the 128-bit
// domain to absorb u64 overflow during wrapping arithmetic (spec §4.5),
// not a full bignum implementation, so we lean on math/big for the rare
// carry/promote paths instead of hand-rolling 128-bit multiply/divide.

func (v Value) big() *big.Int {
	switch v.kind {
	case KindI64:
		return big.NewInt(v.i64)
	case KindU64:
		return new(big.Int).SetUint64(v.u64)
	case KindU128:
		hi := new(big.Int).Lsh(new(big.Int).SetUint64(v.u128hi), 64)
		return hi.Or(hi, new(big.Int).SetUint64(v.u64))
	case KindI128:
		hi := new(big.Int).Lsh(new(big.Int).SetUint64(v.u128hi), 64)
		n := hi.Or(hi, new(big.Int).SetUint64(v.u64))
		if v.u128hi&(1<<63) != 0 {
			// two's complement sign extension across the 128-bit domain
			mod := new(big.Int).Lsh(big.NewInt(1), 128)
			n.Sub(n, mod)
		}
		return n
	default:
		return big.NewInt(0)
	}
}

func fromBig(n *big.Int) Value {
	if n.IsInt64() {
		return I64(n.Int64())
	}
	if n.Sign() >= 0 && n.IsUint64() {
		return U64(n.Uint64())
	}
	mod := new(big.Int).Lsh(big.NewInt(1), 64)
	hi := new(big.Int).Rsh(n, 64)
	lo := new(big.Int).And(n, new(big.Int).Sub(mod, big.NewInt(1)))
	if n.Sign() < 0 {
		return Value{kind: KindI128, u128hi: hi.Uint64(), u64: lo.Uint64()}
	}
	return Value{kind: KindU128, u128hi: hi.Uint64(), u64: lo.Uint64()}
}

func i128ToFloat(v Value) float64 {
	f, _ := new(big.Float).SetInt(v.big()).Float64()
	return f
}

func i128Repr(v Value) string {
	return v.big().String()
}

// narrow collapses a 128-bit Value back down to I64/U64 when it fits,
// matching spec §4.5's "auto-narrowing back to 64-bit when possible".
func narrow(v Value) Value {
	if v.kind != KindU128 && v.kind != KindI128 {
		return v
	}
	n := v.big()
	if n.IsInt64() {
		return I64(n.Int64())
	}
	if n.Sign() >= 0 && n.IsUint64() {
		return U64(n.Uint64())
	}
	return v
}

func isInf(f float64) bool { return math.IsInf(f, 0) }
