package engine

import (
	"math"

	"github.com/opensource-credit/kestrel/internal/domain"
)

// Normalization bounds for the three scored metrics. FICO below 500 and
// years-in-business above 10 saturate rather than extrapolate.
const (
	scoringMinFICO    = 500.0
	scoringMaxFICO    = 800.0
	scoringMaxRevenue = 5_000_000.0
	scoringMaxYears   = 10.0
)

// BaseScore computes the weighted financial fit score on a 0-100 scale.
// Each metric is linearly normalized into [0,100], then blended by the
// program's weights (or the defaults when a key is omitted). Weights are
// taken as given; a program whose weights sum past 1 simply scores hot, and
// the final value is clamped into [0,100].
func BaseScore(b *domain.Borrower, weights map[string]float64) float64 {
	wFICO := weightOr(weights, domain.WeightFICO, domain.DefaultWeightFICO)
	wRev := weightOr(weights, domain.WeightRevenue, domain.DefaultWeightRevenue)
	wTIB := weightOr(weights, domain.WeightTimeInBusiness, domain.DefaultWeightTimeInBusiness)

	uFICO := normalizeLinear(float64(b.GuarantorFICO), scoringMinFICO, scoringMaxFICO)
	uRev := normalizeLinear(b.AnnualRevenue, 0, scoringMaxRevenue)
	uTIB := normalizeLinear(b.YearsInBusiness, 0, scoringMaxYears)

	score := wFICO*uFICO + wRev*uRev + wTIB*uTIB
	return math.Min(100, math.Max(0, score))
}

func weightOr(weights map[string]float64, key string, def float64) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	return def
}

// normalizeLinear maps value into [0,100] across [min,max], saturating at
// the bounds. A zero or missing value scores 0 regardless of the bounds.
func normalizeLinear(value, min, max float64) float64 {
	if value == 0 {
		return 0
	}
	if value <= min {
		return 0
	}
	if value >= max {
		return 100
	}
	return (value - min) / (max - min) * 100
}
