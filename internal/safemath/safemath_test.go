package safemath_test

import (
	"math"
	"testing"

	"wagerledger/internal/errs"
	"wagerledger/internal/safemath"
)

func TestAddU64(t *testing.T) {
	got, err := safemath.AddU64(300, 700)
	if err != nil || got != 1_000 {
		t.Errorf("AddU64(300, 700) = %d, %v, want 1000", got, err)
	}

	_, err = safemath.AddU64(math.MaxUint64, 1)
	if !errs.IsKind(err, errs.KindOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}

	if got, err := safemath.AddU64(math.MaxUint64, 0); err != nil || got != math.MaxUint64 {
		t.Errorf("AddU64(max, 0) = %d, %v", got, err)
	}
}

func TestSubU64(t *testing.T) {
	got, err := safemath.SubU64(1_000, 300)
	if err != nil || got != 700 {
		t.Errorf("SubU64(1000, 300) = %d, %v, want 700", got, err)
	}

	_, err = safemath.SubU64(300, 1_000)
	if !errs.IsKind(err, errs.KindOverflow) {
		t.Errorf("expected underflow, got %v", err)
	}
}

func TestMulU64(t *testing.T) {
	got, err := safemath.MulU64(1_000, 1_000)
	if err != nil || got != 1_000_000 {
		t.Errorf("MulU64 = %d, %v, want 1000000", got, err)
	}

	if _, err := safemath.MulU64(math.MaxUint64, 2); err == nil {
		t.Error("expected mul overflow")
	}
	if got, err := safemath.MulU64(0, math.MaxUint64); err != nil || got != 0 {
		t.Errorf("MulU64(0, max) = %d, %v", got, err)
	}
}

func TestMulDivU64(t *testing.T) {
	tests := []struct {
		a, b, d uint64
		want    uint64
	}{
		{30, 1_000, 300, 100},
		{10, 1_000, 300, 33}, // truncates toward zero
		{100, 1_000, 300, 333},
		{0, 1_000, 300, 0},
		// Intermediate exceeds uint64, result fits.
		{math.MaxUint64, 2, 4, math.MaxUint64 / 2},
	}

	for _, tt := range tests {
		got, err := safemath.MulDivU64(tt.a, tt.b, tt.d)
		if err != nil {
			t.Errorf("MulDivU64(%d, %d, %d): %v", tt.a, tt.b, tt.d, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MulDivU64(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.d, got, tt.want)
		}
	}

	if _, err := safemath.MulDivU64(1, 1, 0); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("expected division by zero rejection, got %v", err)
	}
	if _, err := safemath.MulDivU64(math.MaxUint64, 2, 1); !errs.IsKind(err, errs.KindOverflow) {
		t.Errorf("expected result overflow, got %v", err)
	}
}

func TestToI64(t *testing.T) {
	got, err := safemath.ToI64(1_000)
	if err != nil || got != 1_000 {
		t.Errorf("ToI64(1000) = %d, %v", got, err)
	}

	if got, err := safemath.ToI64(math.MaxInt64); err != nil || got != math.MaxInt64 {
		t.Errorf("ToI64(MaxInt64) = %d, %v", got, err)
	}
	if _, err := safemath.ToI64(math.MaxInt64 + 1); !errs.IsKind(err, errs.KindOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}
