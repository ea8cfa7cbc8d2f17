package engine

import (
	"math"

	"github.com/opensource-credit/kestrel/internal/domain"
)

// Penalty model constants.
const (
	// flatPenalty is the fixed discount for a violated categorical or
	// binary-risk rule.
	flatPenalty = 0.85

	// sigmoidSteepness controls how sharply the sigmoid penalty falls off
	// around its midpoint.
	sigmoidSteepness = 0.5

	// decaySensitivity scales the exponential decay: a 10% relative
	// violation costs a factor of e^-1.
	decaySensitivity = 10.0

	// fallbackPenalty applies when a graduated penalty cannot coerce its
	// operands to numbers.
	fallbackPenalty = 0.5
)

type penaltyKind int

const (
	penaltyNone penaltyKind = iota
	penaltyFlat
	penaltySigmoid
	penaltyDecay
)

// penaltyKinds assigns each criterion field its penalty shape. Categorical
// and binary-risk fields take the flat discount; continuous credit metrics
// where "close" still carries signal take the sigmoid; magnitude-of-miss
// fields take exponential decay. Fields outside the table never penalize.
var penaltyKinds = map[string]penaltyKind{
	domain.FieldHasActiveBankruptcy: penaltyFlat,
	domain.FieldHasUnpaidLiens:      penaltyFlat,
	domain.FieldBusinessState:       penaltyFlat,
	domain.FieldEntityType:          penaltyFlat,
	domain.FieldIsHomeowner:         penaltyFlat,
	domain.FieldEquipmentType:       penaltyFlat,
	domain.FieldVendorType:          penaltyFlat,
	domain.FieldEquipmentCondition:  penaltyFlat,

	domain.FieldGuarantorFICO:   penaltySigmoid,
	domain.FieldPaynetScore:     penaltySigmoid,
	domain.FieldAnnualRevenue:   penaltySigmoid,
	domain.FieldAvgDailyBalance: penaltySigmoid,
	domain.FieldDSCRRatio:       penaltySigmoid,
	domain.FieldYearsInBusiness: penaltySigmoid,

	domain.FieldEquipmentAge:         penaltyDecay,
	domain.FieldLTVRatio:             penaltyDecay,
	domain.FieldNSFCount:             penaltyDecay,
	domain.FieldYearsSinceBankruptcy: penaltyDecay,
	domain.FieldYearsSinceJudgment:   penaltyDecay,
	domain.FieldLoanAmount:           penaltyDecay,
}

// penaltyFor returns the multiplicative penalty for one violated non-strict
// rule, chosen by the field's category.
func penaltyFor(field string, actual, target any, op string) float64 {
	switch penaltyKinds[field] {
	case penaltyFlat:
		return flatPenalty
	case penaltySigmoid:
		return sigmoidPenalty(actual, target, op)
	case penaltyDecay:
		return decayPenalty(actual, target, op)
	}
	return 1
}

// sigmoidPenalty grades a near-miss on a continuous metric. The midpoint
// sits 10% inside the target in the forgiving direction, so a borrower just
// short of the threshold keeps most of their score while a distant miss
// approaches zero. Operators without a direction take no penalty.
func sigmoidPenalty(actual, target any, op string) float64 {
	af, aok := toFloat(actual)
	tf, tok := toFloat(target)
	if !aok || !tok {
		return fallbackPenalty
	}

	switch op {
	case domain.OpGTE, domain.OpGT:
		midpoint := tf * 0.90
		return 1 / (1 + math.Exp(-sigmoidSteepness*(af-midpoint)))
	case domain.OpLTE, domain.OpLT:
		midpoint := tf * 1.10
		return 1 / (1 + math.Exp(sigmoidSteepness*(af-midpoint)))
	}
	return 1
}

// decayPenalty punishes by relative violation magnitude: e^(-10*diff) where
// diff is the shortfall (or overshoot) as a fraction of the target. A zero
// target is normalized to 1 to keep the ratio defined. A satisfied rule
// never reaches here, so diff stays 0 only for directionless operators.
func decayPenalty(actual, target any, op string) float64 {
	af, aok := toFloat(actual)
	tf, tok := toFloat(target)
	if !aok || !tok {
		return fallbackPenalty
	}
	if tf == 0 {
		tf = 1
	}

	var diff float64
	switch {
	case (op == domain.OpGTE || op == domain.OpGT) && af < tf:
		diff = (tf - af) / tf
	case (op == domain.OpLTE || op == domain.OpLT) && af > tf:
		diff = (af - tf) / tf
	case op == domain.OpEQ:
		diff = math.Abs(af-tf) / tf
	}
	return math.Max(0, math.Exp(-decaySensitivity*diff))
}
