package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-credit/kestrel/internal/domain"
)

// defaultMaxLoanAmount caps a program whose payload omits the upper bound.
const defaultMaxLoanAmount = 1_000_000.0

// operatorAliases maps the spellings accepted on ingest onto the canonical
// operator tokens. Unknown or empty operators default to >=.
var operatorAliases = map[string]string{
	"gte": domain.OpGTE, "greater_than_or_equal": domain.OpGTE, ">=": domain.OpGTE,
	"lte": domain.OpLTE, "less_than_or_equal": domain.OpLTE, "<=": domain.OpLTE,
	"gt": domain.OpGT, "greater_than": domain.OpGT, ">": domain.OpGT,
	"lt": domain.OpLT, "less_than": domain.OpLT, "<": domain.OpLT,
	"eq": domain.OpEQ, "equal": domain.OpEQ, "==": domain.OpEQ, "=": domain.OpEQ,
	"neq": domain.OpNEQ, "not_equal": domain.OpNEQ, "!=": domain.OpNEQ,
	"in": domain.OpIn, "contains": domain.OpIn,
	"not_in": domain.OpNotIn, "not in": domain.OpNotIn,
}

// NormalizePolicy coerces a raw policy payload into canonical form before it
// is stored: exclusion lists are never nil, programs get default names and
// loan bounds, operator spellings collapse onto the canonical tokens, and
// rules missing a field name or value are dropped. Rule values arriving as
// numeric or boolean strings are converted to their typed form. The strict
// flag is taken as given and defaults to false.
func NormalizePolicy(p *domain.LenderPolicy) {
	if p.ExcludedIndustries == nil {
		p.ExcludedIndustries = []string{}
	}
	if p.RestrictedStates == nil {
		p.RestrictedStates = []string{}
	}

	programs := p.Programs[:0]
	for i := range p.Programs {
		prog := p.Programs[i]
		normalizeProgram(&prog)
		programs = append(programs, prog)
	}
	p.Programs = programs
}

func normalizeProgram(prog *domain.Program) {
	if strings.TrimSpace(prog.Name) == "" {
		prog.Name = "Standard Program"
	}
	if prog.MinLoanAmount < 0 {
		prog.MinLoanAmount = 0
	}
	if prog.MaxLoanAmount == nil {
		max := defaultMaxLoanAmount
		prog.MaxLoanAmount = &max
	}

	rules := prog.Rules[:0]
	for _, rule := range prog.Rules {
		if strings.TrimSpace(rule.FieldName) == "" || rule.Value == nil {
			continue
		}
		rule.FieldName = strings.TrimSpace(rule.FieldName)
		rule.Operator = normalizeOperator(rule.Operator)
		rule.Value = normalizeValue(rule.Value)
		if rule.FailureReason == "" {
			rule.FailureReason = fmt.Sprintf("Criterion %s not met.", rule.FieldName)
		}
		rules = append(rules, rule)
	}
	prog.Rules = rules
}

func normalizeOperator(op string) string {
	canonical, ok := operatorAliases[strings.ToLower(strings.TrimSpace(op))]
	if !ok {
		return domain.OpGTE
	}
	return canonical
}

// normalizeValue converts numeric and boolean strings to their typed form so
// the comparator's numeric-first coercion sees real numbers. Lists and
// already-typed scalars pass through unchanged.
func normalizeValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
