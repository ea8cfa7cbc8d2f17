package engine

import (
	"math"

	"github.com/opensource-credit/kestrel/internal/domain"
)

// equalityEpsilon tolerates floating rounding when comparing numeric values
// for equality.
const equalityEpsilon = 0.001

// Compare evaluates one operator between a borrower's actual value and a
// rule's target value. Both operands are coerced to float first; when both
// coerce, the comparison is numeric. Otherwise ==/!= fall back to string
// equality and in/not_in to stringified set membership. An unsupported
// operator or a comparison that cannot be evaluated returns false, never an
// error.
func Compare(actual, target any, op string) bool {
	af, aok := toFloat(actual)
	tf, tok := toFloat(target)
	if aok && tok {
		switch op {
		case domain.OpEQ:
			return math.Abs(af-tf) < equalityEpsilon
		case domain.OpNEQ:
			return math.Abs(af-tf) >= equalityEpsilon
		case domain.OpGTE:
			return af >= tf
		case domain.OpLTE:
			return af <= tf
		case domain.OpGT:
			return af > tf
		case domain.OpLT:
			return af < tf
		}
		// in/not_in on a numeric actual still resolve by membership below.
	}

	switch op {
	case domain.OpEQ:
		return toText(actual) == toText(target)
	case domain.OpNEQ:
		return toText(actual) != toText(target)
	case domain.OpIn:
		list, ok := toList(target)
		return ok && containsText(list, toText(actual))
	case domain.OpNotIn:
		list, ok := toList(target)
		return ok && !containsText(list, toText(actual))
	}
	return false
}

func containsText(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
