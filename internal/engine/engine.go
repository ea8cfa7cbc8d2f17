// Package engine implements the matching and scoring core: hard-constraint
// filtering, weighted base scoring, graduated soft penalties, and tier
// selection. It is pure computation over domain types; persistence and
// orchestration live elsewhere.
package engine

import (
	"log/slog"
	"math"

	"github.com/opensource-credit/kestrel/internal/domain"
)

// Engine evaluates borrowers against lender policies.
type Engine struct {
	logger *slog.Logger
}

// New creates a matching engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// EvaluateBorrower scores one borrower against every supplied policy and
// returns at most one match per policy.
func (e *Engine) EvaluateBorrower(b *domain.Borrower, policies []*domain.LenderPolicy) []*domain.LoanMatch {
	var matches []*domain.LoanMatch
	for _, p := range policies {
		if m := e.EvaluatePolicy(b, p); m != nil {
			matches = append(matches, m)
		}
	}
	return matches
}

// EvaluatePolicy runs the full pipeline for one (borrower, policy) pair:
// global policy filter, then per-program hard constraints, base score, and
// soft penalties. Returns the best-scoring eligible program as a match, or
// nil when nothing clears the acceptance floor. Ties on score keep the
// first program in declaration order.
func (e *Engine) EvaluatePolicy(b *domain.Borrower, p *domain.LenderPolicy) *domain.LoanMatch {
	if !globalPolicyAllows(b, p) {
		return nil
	}

	bestScore := -1.0
	var best *domain.LoanMatch

	for i := range p.Programs {
		prog := &p.Programs[i]
		if !hardConstraintsPass(b, prog) {
			continue
		}

		base := BaseScore(b, prog.Weights)
		multiplier := softMultiplier(b, prog.Rules)
		final := base * multiplier

		if final > domain.AcceptanceFloor && final > bestScore {
			bestScore = final
			best = &domain.LoanMatch{
				LenderID:    p.LenderID,
				BorrowerID:  b.ID,
				Score:       math.Round(final*100) / 100,
				Tier:        domain.TierFor(final),
				ProgramName: programName(prog),
				Active:      true,
			}
		}
	}

	if best != nil {
		e.logger.Debug("program matched",
			"borrowerId", b.ID,
			"lenderId", p.LenderID,
			"program", best.ProgramName,
			"score", best.Score,
			"tier", best.Tier)
	}
	return best
}

// globalPolicyAllows applies the lender-level gates that precede any program
// evaluation: the policy must be active, the borrower's state must not be
// restricted, and the borrower's industry must not be excluded. Industry
// exclusion matches either by NAICS code prefix or by the borrower's
// industry tier appearing verbatim in the list.
func globalPolicyAllows(b *domain.Borrower, p *domain.LenderPolicy) bool {
	if !p.Active {
		return false
	}
	for _, state := range p.RestrictedStates {
		if b.BusinessState == state {
			return false
		}
	}
	if industryExcluded(b.IndustryNAICS, p.ExcludedIndustries) {
		return false
	}
	if b.IndustryTier != 0 {
		tier := toText(int(b.IndustryTier))
		for _, excluded := range p.ExcludedIndustries {
			if excluded == tier {
				return false
			}
		}
	}
	return true
}

func industryExcluded(naics string, excluded []string) bool {
	if naics == "" {
		return false
	}
	for _, code := range excluded {
		if code != "" && len(naics) >= len(code) && naics[:len(code)] == code {
			return true
		}
	}
	return false
}

// hardConstraintsPass checks the loan-size bounds and every strict rule.
// An absent field value on a strict rule rejects: unknown does not qualify.
// A strict rule that cannot be evaluated (missing field, operator, or
// value) also rejects rather than silently passing.
func hardConstraintsPass(b *domain.Borrower, prog *domain.Program) bool {
	if b.LoanAmount < prog.MinLoanAmount {
		return false
	}
	if prog.MaxLoanAmount != nil && b.LoanAmount > *prog.MaxLoanAmount {
		return false
	}

	for _, rule := range prog.Rules {
		if !rule.Strict {
			continue
		}
		if rule.FieldName == "" || rule.Operator == "" || rule.Value == nil {
			return false
		}
		actual, ok := FieldValue(b, rule.FieldName)
		if !ok {
			return false
		}
		if !Compare(actual, rule.Value, rule.Operator) {
			return false
		}
	}
	return true
}

// softMultiplier folds the penalties of all violated non-strict rules into
// one multiplier, starting from 1.0. Rules whose field value is absent are
// skipped: unknown soft fields are not penalized. Malformed rules are
// likewise skipped here since they cannot be meaningfully violated.
func softMultiplier(b *domain.Borrower, rules []domain.Rule) float64 {
	multiplier := 1.0
	for _, rule := range rules {
		if rule.Strict {
			continue
		}
		if rule.FieldName == "" || rule.Operator == "" || rule.Value == nil {
			continue
		}
		actual, ok := FieldValue(b, rule.FieldName)
		if !ok {
			continue
		}
		if Compare(actual, rule.Value, rule.Operator) {
			continue
		}
		multiplier *= penaltyFor(rule.FieldName, actual, rule.Value, rule.Operator)
	}
	return multiplier
}

func programName(prog *domain.Program) string {
	if prog.Name == "" {
		return "Standard"
	}
	return prog.Name
}

// MinimumFICOTarget derives the lowest guarantor FICO floor demanded by any
// >= rule across the policy's programs. Used to bound the candidate scan on
// lender-initiated recomputes. Returns ok=false when no such rule exists or
// a threshold value fails to coerce, in which case callers fall back to a
// full scan.
func MinimumFICOTarget(p *domain.LenderPolicy) (float64, bool) {
	var min float64
	found := false
	for i := range p.Programs {
		for _, rule := range p.Programs[i].Rules {
			if rule.FieldName != domain.FieldGuarantorFICO || rule.Operator != domain.OpGTE {
				continue
			}
			f, ok := toFloat(rule.Value)
			if !ok {
				return 0, false
			}
			if !found || f < min {
				min = f
				found = true
			}
		}
	}
	return min, found
}
