package engine

import (
	"math"
	"testing"

	"github.com/opensource-credit/kestrel/internal/domain"
)

func TestBaseScoreDefaultWeights(t *testing.T) {
	b := &domain.Borrower{
		GuarantorFICO:   750,
		AnnualRevenue:   2_000_000,
		YearsInBusiness: 5,
	}

	// 0.4*83.33 + 0.3*40 + 0.3*50
	got := BaseScore(b, nil)
	want := 60.333333
	if math.Abs(got-want) > 0.001 {
		t.Errorf("BaseScore = %.4f, want %.4f", got, want)
	}
}

func TestBaseScoreSaturation(t *testing.T) {
	b := &domain.Borrower{
		GuarantorFICO:   820,
		AnnualRevenue:   9_000_000,
		YearsInBusiness: 25,
	}

	got := BaseScore(b, nil)
	if got != 100 {
		t.Errorf("saturated profile: BaseScore = %.4f, want 100", got)
	}
}

func TestBaseScoreZeroProfile(t *testing.T) {
	got := BaseScore(&domain.Borrower{}, nil)
	if got != 0 {
		t.Errorf("zero profile: BaseScore = %.4f, want 0", got)
	}
}

func TestBaseScoreFICOBelowFloor(t *testing.T) {
	b := &domain.Borrower{GuarantorFICO: 480}
	got := BaseScore(b, nil)
	if got != 0 {
		t.Errorf("FICO below 500 should contribute nothing, got %.4f", got)
	}
}

func TestBaseScoreCustomWeights(t *testing.T) {
	b := &domain.Borrower{GuarantorFICO: 800}
	weights := map[string]float64{
		domain.WeightFICO:           1.0,
		domain.WeightRevenue:        0,
		domain.WeightTimeInBusiness: 0,
	}

	got := BaseScore(b, weights)
	if got != 100 {
		t.Errorf("fico-only weighting: BaseScore = %.4f, want 100", got)
	}
}

func TestBaseScoreMonotonic(t *testing.T) {
	base := &domain.Borrower{GuarantorFICO: 650, AnnualRevenue: 1_000_000, YearsInBusiness: 3}
	low := BaseScore(base, nil)

	better := *base
	better.GuarantorFICO = 700
	if BaseScore(&better, nil) <= low {
		t.Error("score should increase with FICO")
	}

	better = *base
	better.AnnualRevenue = 2_000_000
	if BaseScore(&better, nil) <= low {
		t.Error("score should increase with revenue")
	}

	better = *base
	better.YearsInBusiness = 6
	if BaseScore(&better, nil) <= low {
		t.Error("score should increase with years in business")
	}
}
