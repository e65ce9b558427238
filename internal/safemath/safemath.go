package safemath

import (
	"math"
	"math/big"
	"sync"

	"wagerledger/internal/errs"
)

// AddU64 returns a + b, rejecting wraparound.
func AddU64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, errs.New(errs.KindOverflow, "add overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// SubU64 returns a - b, rejecting underflow.
func SubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, errs.New(errs.KindOverflow, "sub underflow: %d - %d", a, b)
	}
	return a - b, nil
}

// MulU64 returns a * b, rejecting wraparound.
func MulU64(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, errs.New(errs.KindOverflow, "mul overflow: %d * %d", a, b)
	}
	return a * b, nil
}

// big.Int pool for widened intermediates.
var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// MulDivU64 computes a * b / d in widened arithmetic, truncating toward zero.
// Rejects d == 0 and results that do not fit in uint64. Truncation is the
// only permitted rounding for share issuance and payouts.
func MulDivU64(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, errs.New(errs.KindValidation, "division by zero")
	}

	num := getBig()
	bb := getBig()
	defer putBig(num)
	defer putBig(bb)

	num.SetUint64(a)
	bb.SetUint64(b)
	num.Mul(num, bb)
	bb.SetUint64(d)
	num.Quo(num, bb)

	if !num.IsUint64() {
		return 0, errs.New(errs.KindOverflow, "muldiv result exceeds uint64: %d * %d / %d", a, b, d)
	}
	return num.Uint64(), nil
}

// ToI64 narrows a uint64 amount for the signed balance book.
func ToI64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errs.New(errs.KindOverflow, "amount exceeds int64: %d", v)
	}
	return int64(v), nil
}
