package errs

import (
	"fmt"
	"math"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err   error
		kind  Kind
		fatal bool
	}{
		{Configf("TimeStep", "Cfl", "must be positive"), Config, true},
		{&ConvergenceError{"MAC", 1, 1e-11, 200}, Convergence, true},
		{&NumericalError{"vel_g", 0, 3, [3]int{1, 2, 3}, math.NaN()},
			Numerical, true},
		{&DomainViolation{10, 3}, Domain, false},
		{&RestartMismatchError{"chk00010", "bad"}, RestartMismatch, true},
		{fmt.Errorf("step 3: %w", &DomainViolation{3, 1}), Domain, false},
		{fmt.Errorf("nodal: %w",
			&ConvergenceError{"nodal", 1, 1, 1}), Convergence, true},
		{fmt.Errorf("plain"), Unknown, true},
	}

	for i := range tests {
		if k := KindOf(tests[i].err); k != tests[i].kind {
			t.Errorf("%d) Expected KindOf(%v) = %s, got %s.", i,
				tests[i].err, tests[i].kind, k)
		}
		if f := IsFatal(tests[i].err); f != tests[i].fatal {
			t.Errorf("%d) Expected IsFatal(%v) = %v, got %v.", i,
				tests[i].err, tests[i].fatal, f)
		}
	}

	if IsFatal(nil) {
		t.Errorf("Expected IsFatal(nil) = false.")
	}
}

func TestCheckFinite(t *testing.T) {
	tests := []struct {
		x        float64
		positive bool
		ok       bool
	}{
		{1, true, true},
		{0, false, true},
		{0, true, false},
		{-1, true, false},
		{math.NaN(), false, false},
		{math.Inf(1), false, false},
		{math.Inf(-1), false, false},
	}

	for i := range tests {
		err := CheckFinite("dt", tests[i].x, tests[i].positive)
		if (err == nil) != tests[i].ok {
			t.Errorf("%d) Expected ok = %v for x = %g, got err = %v.", i,
				tests[i].ok, tests[i].x, err)
		}
		if err != nil && KindOf(err) != Numerical {
			t.Errorf("%d) Expected a numerical error, got %v.", i, err)
		}
	}
}
