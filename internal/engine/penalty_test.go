package engine

import (
	"math"
	"testing"

	"github.com/opensource-credit/kestrel/internal/domain"
)

func TestFlatPenaltyFields(t *testing.T) {
	fields := []string{
		domain.FieldHasActiveBankruptcy,
		domain.FieldHasUnpaidLiens,
		domain.FieldBusinessState,
		domain.FieldEntityType,
		domain.FieldIsHomeowner,
		domain.FieldEquipmentType,
		domain.FieldVendorType,
		domain.FieldEquipmentCondition,
	}
	for _, f := range fields {
		if got := penaltyFor(f, "x", "y", domain.OpEQ); got != 0.85 {
			t.Errorf("penaltyFor(%s) = %v, want 0.85", f, got)
		}
	}
}

func TestUnclassifiedFieldNoPenalty(t *testing.T) {
	if got := penaltyFor("ownership_percentage", 50, 80, domain.OpGTE); got != 1 {
		t.Errorf("unclassified field penalty = %v, want 1", got)
	}
}

func TestSigmoidPenaltyNearMiss(t *testing.T) {
	// DSCR >= 1.2, actual 1.0: midpoint 1.08, just below it.
	got := sigmoidPenalty(1.0, 1.2, domain.OpGTE)
	want := 1 / (1 + math.Exp(-0.5*(1.0-1.08)))
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("sigmoidPenalty = %v, want %v", got, want)
	}
	if got <= 0 || got >= 1 {
		t.Errorf("sigmoid penalty out of (0,1): %v", got)
	}
}

func TestSigmoidPenaltyMonotonic(t *testing.T) {
	// Increasing in actual for >= rules.
	lo := sigmoidPenalty(1.0, 1.2, domain.OpGTE)
	hi := sigmoidPenalty(1.1, 1.2, domain.OpGTE)
	if hi <= lo {
		t.Errorf(">= sigmoid not increasing: f(1.0)=%v f(1.1)=%v", lo, hi)
	}

	// Decreasing in actual for <= rules.
	lo = sigmoidPenalty(0.9, 0.8, domain.OpLTE)
	hi = sigmoidPenalty(1.0, 0.8, domain.OpLTE)
	if hi >= lo {
		t.Errorf("<= sigmoid not decreasing: f(0.9)=%v f(1.0)=%v", lo, hi)
	}
}

func TestSigmoidPenaltyLimits(t *testing.T) {
	if got := sigmoidPenalty(900.0, 700.0, domain.OpGTE); got < 0.99 {
		t.Errorf("far past midpoint should approach 1, got %v", got)
	}
	if got := sigmoidPenalty(500.0, 700.0, domain.OpGTE); got > 0.01 {
		t.Errorf("far below midpoint should approach 0, got %v", got)
	}
}

func TestSigmoidPenaltyNonNumeric(t *testing.T) {
	if got := sigmoidPenalty("low", 1.2, domain.OpGTE); got != 0.5 {
		t.Errorf("non-numeric actual = %v, want 0.5", got)
	}
}

func TestSigmoidPenaltyDirectionlessOperator(t *testing.T) {
	if got := sigmoidPenalty(1.0, 1.2, domain.OpEQ); got != 1 {
		t.Errorf("== sigmoid = %v, want 1", got)
	}
}

func TestDecayPenaltyShortfall(t *testing.T) {
	// DSCR >= 1.2, actual 1.0: diff = 0.2/1.2, e^(-10*diff) ~ 0.189.
	got := decayPenalty(1.0, 1.2, domain.OpGTE)
	if math.Abs(got-0.18888) > 0.001 {
		t.Errorf("decayPenalty = %v, want ~0.189", got)
	}
}

func TestDecayPenaltyOvershoot(t *testing.T) {
	// nsf_count <= 2, actual 3: diff = 0.5.
	got := decayPenalty(3, 2, domain.OpLTE)
	want := math.Exp(-10 * 0.5)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("decayPenalty = %v, want %v", got, want)
	}
}

func TestDecayPenaltyEquality(t *testing.T) {
	got := decayPenalty(4, 5, domain.OpEQ)
	want := math.Exp(-10 * 0.2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("decayPenalty == = %v, want %v", got, want)
	}
}

func TestDecayPenaltyZeroTarget(t *testing.T) {
	// Target 0 is normalized to 1 to keep the ratio defined.
	got := decayPenalty(2, 0, domain.OpLTE)
	want := math.Exp(-10 * 1.0) // diff = (2-1)/1 with target coerced to 1
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("decayPenalty zero target = %v, want %v", got, want)
	}
}

func TestDecayPenaltyNonNumeric(t *testing.T) {
	if got := decayPenalty(3, "few", domain.OpLTE); got != 0.5 {
		t.Errorf("non-numeric target = %v, want 0.5", got)
	}
}

func TestDecayPenaltyMonotonic(t *testing.T) {
	p1 := decayPenalty(1.1, 1.2, domain.OpGTE)
	p2 := decayPenalty(1.0, 1.2, domain.OpGTE)
	p3 := decayPenalty(0.8, 1.2, domain.OpGTE)
	if !(p1 > p2 && p2 > p3) {
		t.Errorf("decay not decreasing in violation magnitude: %v %v %v", p1, p2, p3)
	}
	for _, p := range []float64{p1, p2, p3} {
		if p < 0 || p > 1 {
			t.Errorf("decay penalty out of [0,1]: %v", p)
		}
	}
}
