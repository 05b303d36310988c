package common

import (
	"errors"
	"math"
	"testing"
)

type pausedAll struct{}

func (pausedAll) IsPaused(string) bool { return true }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "campaign"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(pausedAll{}, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
	if err := Guard(NewPauseSet("campaign"), "campaign"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(NewPauseSet("bank"), "campaign"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if v, err := AddUint64(2, 3); err != nil || v != 5 {
		t.Fatalf("add: %d %v", v, err)
	}
	if _, err := AddUint64(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if v, err := SubUint64(5, 5); err != nil || v != 0 {
		t.Fatalf("sub: %d %v", v, err)
	}
	if _, err := SubUint64(0, 1); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if v, err := MulUint64(90, 86400); err != nil || v != 7776000 {
		t.Fatalf("mul: %d %v", v, err)
	}
	if _, err := MulUint64(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
