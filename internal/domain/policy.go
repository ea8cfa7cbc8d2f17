package domain

import "time"

// Criterion field names. Rules reference borrower attributes through this
// fixed enumeration; anything outside it resolves to "absent".
const (
	FieldGuarantorFICO   = "guarantor_fico"
	FieldPaynetScore     = "paynet_score"
	FieldYearsInBusiness = "years_in_business"
	FieldEntityType      = "business_entity_type"
	FieldIsHomeowner     = "is_homeowner"
	FieldBusinessState   = "business_state"

	FieldAnnualRevenue   = "annual_revenue"
	FieldAvgDailyBalance = "avg_daily_balance"
	FieldNSFCount        = "nsf_count"
	FieldDSCRRatio       = "dscr_ratio"
	FieldIndustryTier    = "industry_tier"

	FieldHasActiveBankruptcy  = "has_active_bankruptcy"
	FieldYearsSinceBankruptcy = "years_since_bankruptcy_discharge"
	FieldHasUnpaidLiens       = "has_unpaid_tax_liens"
	FieldYearsSinceJudgment   = "years_since_last_judgment"

	FieldLoanAmount         = "loan_amount"
	FieldLTVRatio           = "ltv_ratio"
	FieldEquipmentType      = "equipment_type"
	FieldEquipmentAge       = "equipment_age"
	FieldEquipmentCondition = "equipment_condition"
	FieldVendorType         = "vendor_type"
)

// Comparison operator tokens. not_in is the canonical negative-membership
// spelling; normalization maps the "not in" variant onto it.
const (
	OpGTE   = ">="
	OpLTE   = "<="
	OpEQ    = "=="
	OpNEQ   = "!="
	OpGT    = ">"
	OpLT    = "<"
	OpIn    = "in"
	OpNotIn = "not_in"
)

// Operators lists every supported comparison token.
var Operators = []string{OpGTE, OpLTE, OpEQ, OpNEQ, OpGT, OpLT, OpIn, OpNotIn}

// Rule is one underwriting criterion. Value is loosely typed: a number,
// string, bool, or list of scalars, exactly as it arrives in the policy JSON.
// Strict rules are hard gates; non-strict rules only discount score.
type Rule struct {
	FieldName     string `json:"field_name"`
	Operator      string `json:"operator"`
	Value         any    `json:"value"`
	FailureReason string `json:"failure_reason,omitempty"`
	Strict        bool   `json:"strict"`
}

// Program is a named underwriting track within a policy: loan bounds,
// optional scoring weights, and an ordered rule list.
type Program struct {
	Name          string             `json:"program_name"`
	MinLoanAmount float64            `json:"min_loan_amount"`
	MaxLoanAmount *float64           `json:"max_loan_amount,omitempty"` // nil = unbounded
	Weights       map[string]float64 `json:"weights,omitempty"`
	Rules         []Rule             `json:"rules"`
}

// Scoring weight keys and their defaults when a program omits them.
// Weights are configuration: the engine neither validates nor normalizes them.
const (
	WeightFICO           = "fico"
	WeightRevenue        = "revenue"
	WeightTimeInBusiness = "time_in_business"
)

const (
	DefaultWeightFICO           = 0.4
	DefaultWeightRevenue        = 0.3
	DefaultWeightTimeInBusiness = 0.3
)

// LenderPolicy is one version of a lender's underwriting configuration.
// Versions are append-only: creating a new version deactivates all prior
// versions for the lender, and at most one version per lender is active.
type LenderPolicy struct {
	ID       string `json:"id"` // uuid
	LenderID string `json:"lenderId"`

	VersionName string `json:"versionName"`
	Active      bool   `json:"active"`

	ExcludedIndustries []string `json:"excludedIndustries"`
	RestrictedStates   []string `json:"restrictedStates"`

	Programs []Program `json:"programs"`

	UpdatedAt time.Time `json:"updatedAt"`
}
